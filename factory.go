// Factory functions for rxcore
// 创建 Observable 的工厂函数
package rxcore

import (
	"context"
	"time"
)

// ============================================================================
// 基础创建函数
// ============================================================================

// Create 订阅函数返回清理函数，可以为 nil
func Create(subscribe func(observer Observer) func()) Observable {
	return NewObservable(func(observer Observer) Disposable {
		cleanup := subscribe(observer)
		if cleanup == nil {
			return EmptyDisposable
		}
		return NewDisposable(cleanup)
	})
}

// CreateWithDisposable 订阅函数直接返回可释放资源
func CreateWithDisposable(subscribe func(observer Observer) Disposable) Observable {
	return NewObservable(subscribe)
}

// Defer 每次订阅时调用 factory 创建新的 Observable，factory 的错误投递给观察者
func Defer(factory func() (Observable, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		result, err := factory()
		if err != nil {
			return Throw(err).Subscribe(observer)
		}
		return result.Subscribe(observer)
	})
}

// Empty 直接完成，默认使用立即调度器
func Empty(options ...Option) Observable {
	scheduler := schedulerOrDefault(options, ImmediateScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return Schedule(scheduler, observer.OnComplete)
	})
}

// Never 永不发射也永不结束
func Never() Observable {
	return NewObservable(func(Observer) Disposable {
		return EmptyDisposable
	})
}

// Return 发射单个值后完成，默认使用立即调度器
func Return(value interface{}, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, ImmediateScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return Schedule(scheduler, func() {
			observer.OnNext(value)
			observer.OnComplete()
		})
	})
}

// Just 依次发射给定的值
func Just(values ...interface{}) Observable {
	return FromSlice(values)
}

// Throw 直接以错误结束，默认使用立即调度器
func Throw(err error, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, ImmediateScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return Schedule(scheduler, func() {
			observer.OnError(err)
		})
	})
}

// FromSlice 依次发射切片元素，默认使用蹦床调度器
func FromSlice(values []interface{}, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, CurrentThreadScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return ScheduleRecursiveWithState(scheduler, 0, func(state interface{}, self func(interface{})) {
			i := state.(int)
			if i < len(values) {
				observer.OnNext(values[i])
				self(i + 1)
				return
			}
			observer.OnComplete()
		})
	})
}

// FromChannel 在独立的 goroutine 中读取通道，通道关闭时完成
func FromChannel(ch <-chan interface{}) Observable {
	return NewObservable(func(observer Observer) Disposable {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case value, ok := <-ch:
					if !ok {
						observer.OnComplete()
						return
					}
					observer.OnNext(value)
				}
			}
		}()

		return NewDisposable(cancel)
	})
}

// Range 发射 [start, start+count) 的整数，默认使用蹦床调度器
func Range(start, count int, options ...Option) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	scheduler := schedulerOrDefault(options, CurrentThreadScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return ScheduleRecursiveWithState(scheduler, 0, func(state interface{}, self func(interface{})) {
			i := state.(int)
			if i < count {
				observer.OnNext(start + i)
				self(i + 1)
				return
			}
			observer.OnComplete()
		})
	})
}

// RepeatValue 重复发射 value count 次，count 为负时无限重复
func RepeatValue(value interface{}, count int, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, CurrentThreadScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return ScheduleRecursiveWithState(scheduler, 0, func(state interface{}, self func(interface{})) {
			i := state.(int)
			if count < 0 || i < count {
				observer.OnNext(value)
				self(i + 1)
				return
			}
			observer.OnComplete()
		})
	})
}

// Generate 以状态机方式生成序列，默认使用蹦床调度器
func Generate(initialState interface{}, condition Predicate, iterate Transformer, resultSelector Transformer, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, CurrentThreadScheduler)
	return NewObservable(func(observer Observer) Disposable {
		first := true
		state := initialState
		return ScheduleRecursive(scheduler, func(self func()) {
			if first {
				first = false
			} else {
				next, err := iterate(state)
				if err != nil {
					observer.OnError(err)
					return
				}
				state = next
			}

			hasResult, err := condition(state)
			if err != nil {
				observer.OnError(err)
				return
			}
			if !hasResult {
				observer.OnComplete()
				return
			}

			result, err := resultSelector(state)
			if err != nil {
				observer.OnError(err)
				return
			}
			observer.OnNext(result)
			self()
		})
	})
}

// Using 订阅期间持有一个资源，订阅结束时释放
func Using(resourceFactory func() (Disposable, error), observableFactory func(resource Disposable) (Observable, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		resource, err := resourceFactory()
		if err != nil {
			return Throw(err).Subscribe(observer)
		}
		disposable := orEmpty(resource)

		source, err := observableFactory(resource)
		if err != nil {
			return NewCompositeDisposable(Throw(err).Subscribe(observer), disposable)
		}
		return NewCompositeDisposable(source.Subscribe(observer), disposable)
	})
}

// ============================================================================
// 异步调用
// ============================================================================

// Start 在调度器上异步调用 fn，默认使用定时器调度器
func Start(fn func() (interface{}, error), options ...Option) Observable {
	return ToAsync(func(...interface{}) (interface{}, error) {
		return fn()
	}, options...)()
}

// ToAsync 把函数转换为返回 Observable 的异步函数，结果由 AsyncSubject 缓存
func ToAsync(fn func(args ...interface{}) (interface{}, error), options ...Option) func(args ...interface{}) Observable {
	scheduler := schedulerOrDefault(options, TimeoutScheduler)
	return func(args ...interface{}) Observable {
		subject := NewAsyncSubject()
		Schedule(scheduler, func() {
			result, err := fn(args...)
			if err != nil {
				subject.OnError(err)
				return
			}
			subject.OnNext(result)
			subject.OnComplete()
		})
		return subject.AsObservable()
	}
}

// ============================================================================
// 时间相关创建函数
// ============================================================================

// Interval 每隔 period 发射递增整数，默认使用定时器调度器
func Interval(period time.Duration, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, TimeoutScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return SchedulePeriodicWithState(scheduler, 0, period, func(state interface{}) interface{} {
			n := state.(int)
			observer.OnNext(n)
			return n + 1
		})
	})
}

// Timer 延迟 dueTime 后发射 0 并完成，默认使用定时器调度器
func Timer(dueTime time.Duration, options ...Option) Observable {
	scheduler := schedulerOrDefault(options, TimeoutScheduler)
	return NewObservable(func(observer Observer) Disposable {
		return ScheduleWithRelative(scheduler, dueTime, func() {
			observer.OnNext(0)
			observer.OnComplete()
		})
	})
}
