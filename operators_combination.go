// Combination operators for rxcore
// 组合操作符实现，包含 Merge, Concat, Switch, Zip, CombineLatest, Amb 等
package rxcore

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ============================================================================
// Merge
// ============================================================================

// Merge 合并多个序列；全部完成后完成，任一错误立即终止
func Merge(sources ...Observable) Observable {
	values := make([]interface{}, len(sources))
	for i, source := range sources {
		values[i] = source
	}
	return FromSlice(values).MergeAll()
}

// Merge 与其它序列合并
func (o *observableImpl) Merge(others ...Observable) Observable {
	return Merge(append([]Observable{o}, others...)...)
}

// MergeAll 展平高阶序列，同时订阅所有内部序列
func (o *observableImpl) MergeAll() Observable {
	return o.mergeInner(-1)
}

// MergeConcurrent 展平高阶序列，同时订阅的内部序列不超过 maxConcurrent 个，多余的排队等待空位
func (o *observableImpl) MergeConcurrent(maxConcurrent int) Observable {
	if maxConcurrent <= 0 {
		panic(ErrArgumentOutOfRange)
	}
	return o.mergeInner(maxConcurrent)
}

// mergeInner maxConcurrent 为负表示不限并发
func (o *observableImpl) mergeInner(maxConcurrent int) Observable {
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var queue []Observable
		active := 0
		isStopped := false
		group := NewCompositeDisposable()

		var subscribe func(inner Observable)
		subscribe = func(inner Observable) {
			d := NewSingleAssignmentDisposable()
			group.Add(d)
			d.SetDisposable(inner.SubscribeWithCallbacks(observer.OnNext, observer.OnError, func() {
				group.Remove(d)

				mu.Lock()
				if len(queue) > 0 {
					next := queue[0]
					queue[0] = nil
					queue = queue[1:]
					mu.Unlock()
					subscribe(next)
					return
				}
				active--
				done := isStopped && active == 0
				mu.Unlock()

				if done {
					observer.OnComplete()
				}
			}))
		}

		outer := NewSingleAssignmentDisposable()
		group.Add(outer)
		outer.SetDisposable(o.SubscribeWithCallbacks(func(value interface{}) {
			inner, ok := value.(Observable)
			if !ok || inner == nil {
				observer.OnError(fmt.Errorf("%w: %T", ErrNotObservable, value))
				return
			}

			mu.Lock()
			if maxConcurrent >= 0 && active >= maxConcurrent {
				queue = append(queue, inner)
				mu.Unlock()
				return
			}
			active++
			mu.Unlock()
			subscribe(inner)
		}, observer.OnError, func() {
			mu.Lock()
			isStopped = true
			done := active == 0
			mu.Unlock()

			if done {
				observer.OnComplete()
			}
		}))
		return group
	})
}

// FlatMap 把每个值映射为序列并合并
func (o *observableImpl) FlatMap(selector func(value interface{}) (Observable, error)) Observable {
	return o.Map(func(value interface{}) (interface{}, error) {
		return selector(value)
	}).MergeAll()
}

// ============================================================================
// Concat 与顺序订阅
// ============================================================================

// sequenceMode 顺序订阅时遇到终止通知的处理方式
type sequenceMode int

const (
	// continueOnComplete 当前序列完成时订阅下一个
	continueOnComplete sequenceMode = 1 << iota
	// continueOnError 当前序列出错时订阅下一个
	continueOnError
)

// subscribeInSequence 依次订阅 next(0), next(1), ... 直到 next 返回 false；
// 序列用尽时，若最后一次终止是被跳过的错误且完成不会继续，则投递该错误，否则完成
func subscribeInSequence(observer Observer, mode sequenceMode, next func(i int) (Observable, bool)) Disposable {
	subscription := NewSerialDisposable()
	var mu sync.Mutex
	isDisposed := false
	var lastErr error

	cancelable := ScheduleRecursiveWithState(CurrentThreadScheduler, 0, func(state interface{}, self func(interface{})) {
		mu.Lock()
		if isDisposed {
			mu.Unlock()
			return
		}
		err := lastErr
		mu.Unlock()

		i := state.(int)
		current, ok := next(i)
		if !ok {
			if err != nil && mode&continueOnComplete == 0 {
				observer.OnError(err)
				return
			}
			observer.OnComplete()
			return
		}

		d := NewSingleAssignmentDisposable()
		subscription.SetDisposable(d)
		d.SetDisposable(current.SubscribeWithCallbacks(observer.OnNext, func(err error) {
			if mode&continueOnError == 0 {
				observer.OnError(err)
				return
			}
			mu.Lock()
			lastErr = err
			mu.Unlock()
			self(i + 1)
		}, func() {
			if mode&continueOnComplete == 0 {
				observer.OnComplete()
				return
			}
			self(i + 1)
		}))
	})

	return NewCompositeDisposable(subscription, cancelable, NewDisposable(func() {
		mu.Lock()
		isDisposed = true
		mu.Unlock()
	}))
}

// Concat 依次连接多个序列，前一个完成后才订阅下一个
func Concat(sources ...Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return subscribeInSequence(observer, continueOnComplete, func(i int) (Observable, bool) {
			if i < len(sources) {
				return sources[i], true
			}
			return nil, false
		})
	})
}

// Concat 在当前序列之后连接其它序列
func (o *observableImpl) Concat(others ...Observable) Observable {
	return Concat(append([]Observable{o}, others...)...)
}

// ConcatAll 依次展平高阶序列
func (o *observableImpl) ConcatAll() Observable {
	return o.mergeInner(1)
}

// StartWith 先发射给定的值
func (o *observableImpl) StartWith(values ...interface{}) Observable {
	return Concat(FromSlice(values), o)
}

// Repeat 完成后重新订阅，总共订阅 count 次；count 为负时无限重复
func (o *observableImpl) Repeat(count int) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return subscribeInSequence(observer, continueOnComplete, func(i int) (Observable, bool) {
			return o, count < 0 || i < count
		})
	})
}

// ============================================================================
// SwitchLatest
// ============================================================================

// SwitchLatest 只转发最近一个内部序列的通知；外部完成且最近的内部序列完成后完成
func (o *observableImpl) SwitchLatest() Observable {
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var latest uint64
		hasLatest := false
		isStopped := false
		innerSubscription := NewSerialDisposable()

		isLatest := func(id uint64) bool {
			mu.Lock()
			defer mu.Unlock()
			return latest == id
		}

		outer := NewSingleAssignmentDisposable()
		outer.SetDisposable(o.SubscribeWithCallbacks(func(value interface{}) {
			inner, ok := value.(Observable)
			if !ok || inner == nil {
				observer.OnError(fmt.Errorf("%w: %T", ErrNotObservable, value))
				return
			}

			d := NewSingleAssignmentDisposable()
			mu.Lock()
			latest++
			id := latest
			hasLatest = true
			mu.Unlock()
			innerSubscription.SetDisposable(d)

			d.SetDisposable(inner.SubscribeWithCallbacks(func(value interface{}) {
				if isLatest(id) {
					observer.OnNext(value)
				}
			}, func(err error) {
				if isLatest(id) {
					observer.OnError(err)
				}
			}, func() {
				mu.Lock()
				if latest != id {
					mu.Unlock()
					return
				}
				hasLatest = false
				done := isStopped
				mu.Unlock()

				if done {
					observer.OnComplete()
				}
			}))
		}, observer.OnError, func() {
			mu.Lock()
			isStopped = true
			done := !hasLatest
			mu.Unlock()

			if done {
				observer.OnComplete()
			}
		}))
		return NewCompositeDisposable(outer, innerSubscription)
	})
}

// ============================================================================
// Zip
// ============================================================================

// Zip 每个输入都有未消费的值时各取一个组合发射；
// 一个已完成的输入缓冲为空时整体完成
func Zip(sources []Observable, resultSelector func(values ...interface{}) (interface{}, error)) Observable {
	n := len(sources)
	if n == 0 {
		return Empty()
	}
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		queues := make([][]interface{}, n)
		isDone := bitset.New(uint(n))

		group := NewCompositeDisposable()
		subscriptions := make([]*SingleAssignmentDisposable, n)
		for i := range subscriptions {
			subscriptions[i] = NewSingleAssignmentDisposable()
			group.Add(subscriptions[i])
		}

		for i, source := range sources {
			subscriptions[i].SetDisposable(source.SubscribeWithCallbacks(func(value interface{}) {
				mu.Lock()
				queues[i] = append(queues[i], value)
				for _, q := range queues {
					if len(q) == 0 {
						mu.Unlock()
						return
					}
				}

				values := make([]interface{}, n)
				for j := range queues {
					values[j] = queues[j][0]
					queues[j][0] = nil
					queues[j] = queues[j][1:]
				}
				exhausted := false
				for j := range queues {
					if isDone.Test(uint(j)) && len(queues[j]) == 0 {
						exhausted = true
						break
					}
				}
				mu.Unlock()

				result, err := resultSelector(values...)
				if err != nil {
					observer.OnError(err)
					return
				}
				observer.OnNext(result)
				if exhausted {
					observer.OnComplete()
				}
			}, observer.OnError, func() {
				mu.Lock()
				isDone.Set(uint(i))
				exhausted := len(queues[i]) == 0
				mu.Unlock()

				if exhausted {
					observer.OnComplete()
				}
			}))
		}
		return group
	})
}

// Zip 与另一个序列按位置配对
func (o *observableImpl) Zip(other Observable, resultSelector func(a, b interface{}) (interface{}, error)) Observable {
	return Zip([]Observable{o, other}, func(values ...interface{}) (interface{}, error) {
		return resultSelector(values[0], values[1])
	})
}

// ZipSlice 与切片按位置配对，切片用尽时完成
func (o *observableImpl) ZipSlice(values []interface{}, resultSelector func(a, b interface{}) (interface{}, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		index := 0
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if index >= len(values) {
				observer.OnComplete()
				return
			}
			result, err := resultSelector(value, values[index])
			if err != nil {
				observer.OnError(err)
				return
			}
			index++
			observer.OnNext(result)
			if index == len(values) {
				observer.OnComplete()
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// ============================================================================
// CombineLatest
// ============================================================================

// CombineLatest 所有输入都产生过值之后，任一输入发射时组合各输入的最新值；
// 从未产生值的输入完成时整体完成
func CombineLatest(sources []Observable, resultSelector func(values ...interface{}) (interface{}, error)) Observable {
	n := len(sources)
	if n == 0 {
		return Empty()
	}
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		latest := make([]interface{}, n)
		hasValue := bitset.New(uint(n))
		isDone := bitset.New(uint(n))

		group := NewCompositeDisposable()
		subscriptions := make([]*SingleAssignmentDisposable, n)
		for i := range subscriptions {
			subscriptions[i] = NewSingleAssignmentDisposable()
			group.Add(subscriptions[i])
		}

		for i, source := range sources {
			subscriptions[i].SetDisposable(source.SubscribeWithCallbacks(func(value interface{}) {
				mu.Lock()
				latest[i] = value
				hasValue.Set(uint(i))
				if !hasValue.All() {
					mu.Unlock()
					return
				}
				values := append([]interface{}{}, latest...)
				mu.Unlock()

				result, err := resultSelector(values...)
				if err != nil {
					observer.OnError(err)
					return
				}
				observer.OnNext(result)
			}, observer.OnError, func() {
				mu.Lock()
				isDone.Set(uint(i))
				done := isDone.All() || !hasValue.Test(uint(i))
				mu.Unlock()

				if done {
					observer.OnComplete()
				}
			}))
		}
		return group
	})
}

// CombineLatest 与另一个序列组合最新值
func (o *observableImpl) CombineLatest(other Observable, resultSelector func(a, b interface{}) (interface{}, error)) Observable {
	return CombineLatest([]Observable{o, other}, func(values ...interface{}) (interface{}, error) {
		return resultSelector(values[0], values[1])
	})
}

// ============================================================================
// Amb
// ============================================================================

// Amb 只跟随最先发出任何通知的序列，其余序列被退订
func Amb(sources ...Observable) Observable {
	if len(sources) == 0 {
		return Never()
	}
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		choice := -1

		group := NewCompositeDisposable()
		subscriptions := make([]*SingleAssignmentDisposable, len(sources))
		for i := range subscriptions {
			subscriptions[i] = NewSingleAssignmentDisposable()
			group.Add(subscriptions[i])
		}

		// win 第一个调用者成为胜者并释放其余订阅
		win := func(i int) bool {
			mu.Lock()
			if choice >= 0 {
				won := choice == i
				mu.Unlock()
				return won
			}
			choice = i
			mu.Unlock()

			for j, d := range subscriptions {
				if j != i {
					d.Dispose()
				}
			}
			return true
		}

		for i, source := range sources {
			subscriptions[i].SetDisposable(source.SubscribeWithCallbacks(func(value interface{}) {
				if win(i) {
					observer.OnNext(value)
				}
			}, func(err error) {
				if win(i) {
					observer.OnError(err)
				}
			}, func() {
				if win(i) {
					observer.OnComplete()
				}
			}))
		}
		return group
	})
}

// Amb 与另一个序列竞争
func (o *observableImpl) Amb(other Observable) Observable {
	return Amb(o, other)
}
