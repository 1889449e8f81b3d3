// Observable implementation for rxcore
// 可观察序列的核心实现与基础操作符
package rxcore

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"
)

// ============================================================================
// Observable 接口
// ============================================================================

// DurationSelector 把元素映射为一个序列，该序列的第一个事件标志元素有效期结束
type DurationSelector func(value interface{}) (Observable, error)

// Observable 可观察序列；每次订阅都是一次独立的执行
type Observable interface {
	// 订阅
	Subscribe(observer Observer) Disposable
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable
	SubscribeOn(scheduler Scheduler) Observable
	ObserveOn(scheduler Scheduler) Observable
	AsObservable() Observable

	// 转换
	Map(transformer Transformer) Observable
	FlatMap(selector func(value interface{}) (Observable, error)) Observable
	Filter(predicate Predicate) Observable
	Scan(reducer Reducer) Observable
	ScanWithSeed(seed interface{}, reducer Reducer) Observable
	Distinct(keySelector KeySelector) Observable
	DistinctUntilChanged(keySelector KeySelector, comparer Comparer) Observable

	// 截取
	Take(count int) Observable
	TakeWhile(predicate Predicate) Observable
	TakeLast(count int) Observable
	TakeLastBuffer(count int) Observable
	TakeUntil(other Observable) Observable
	Skip(count int) Observable
	SkipWhile(predicate Predicate) Observable
	SkipLast(count int) Observable
	SkipUntil(other Observable) Observable

	// 工具
	Materialize() Observable
	Dematerialize() Observable
	IgnoreElements() Observable
	DefaultIfEmpty(defaultValue interface{}) Observable
	ToSlice() Observable
	FinalValue() Observable
	StartWith(values ...interface{}) Observable
	Repeat(count int) Observable

	// 副作用
	DoAction(onNext OnNext, onError OnError, onComplete OnComplete) Observable
	DoOnNext(action OnNext) Observable
	DoOnError(action OnError) Observable
	DoOnComplete(action OnComplete) Observable
	Finally(action func()) Observable
	Log(logger *slog.Logger, msg string) Observable

	// 组合
	Merge(others ...Observable) Observable
	MergeAll() Observable
	MergeConcurrent(maxConcurrent int) Observable
	Concat(others ...Observable) Observable
	ConcatAll() Observable
	SwitchLatest() Observable
	Zip(other Observable, resultSelector func(a, b interface{}) (interface{}, error)) Observable
	ZipSlice(values []interface{}, resultSelector func(a, b interface{}) (interface{}, error)) Observable
	CombineLatest(other Observable, resultSelector func(a, b interface{}) (interface{}, error)) Observable
	Amb(other Observable) Observable

	// 错误处理
	Catch(handler func(err error) (Observable, error)) Observable
	CatchWith(other Observable) Observable
	Retry(count int) Observable
	OnErrorResumeNext(other Observable) Observable

	// 分组、窗口与连接
	GroupBy(keySelector KeySelector, elementSelector Transformer) Observable
	GroupByUntil(keySelector KeySelector, elementSelector Transformer, durationSelector func(group *GroupedObservable) (Observable, error)) Observable
	Window(boundaries Observable) Observable
	WindowWithClosingSelector(closingSelector func() (Observable, error)) Observable
	WindowWithOpenings(openings Observable, closingSelector DurationSelector) Observable
	WindowWithCount(count, skip int) Observable
	WindowWithTime(timeSpan time.Duration, scheduler Scheduler) Observable
	Buffer(boundaries Observable) Observable
	BufferWithClosingSelector(closingSelector func() (Observable, error)) Observable
	BufferWithOpenings(openings Observable, closingSelector DurationSelector) Observable
	BufferWithCount(count, skip int) Observable
	BufferWithTime(timeSpan time.Duration, scheduler Scheduler) Observable
	Join(right Observable, leftDuration, rightDuration DurationSelector, resultSelector func(left, right interface{}) (interface{}, error)) Observable
	GroupJoin(right Observable, leftDuration, rightDuration DurationSelector, resultSelector func(left interface{}, rights Observable) (interface{}, error)) Observable

	// 时间
	Debounce(dueTime time.Duration, scheduler Scheduler) Observable
	Throttle(duration time.Duration, scheduler Scheduler) Observable
	Delay(dueTime time.Duration, scheduler Scheduler) Observable
	Timeout(dueTime time.Duration, other Observable, scheduler Scheduler) Observable
	Sample(interval time.Duration, scheduler Scheduler) Observable

	// 聚合
	Aggregate(seed interface{}, reducer Reducer) Observable
	Count() Observable
	Any(predicate Predicate) Observable
	All(predicate Predicate) Observable
	Contains(value interface{}) Observable

	// 多播
	Multicast(subject Subject) ConnectableObservable
	Publish() ConnectableObservable
	PublishLast() ConnectableObservable
	Replay(bufferSize int) ConnectableObservable
	Share() Observable

	// 阻塞
	ToChannel(ctx context.Context) <-chan Notification
	BlockingFirst(ctx context.Context) (interface{}, error)
	BlockingLast(ctx context.Context) (interface{}, error)
	BlockingToSlice(ctx context.Context) ([]interface{}, error)
}

// ============================================================================
// Observable 实现
// ============================================================================

// observableImpl Observable 的唯一实现，包装一个订阅过程
type observableImpl struct {
	subscribe func(observer Observer) Disposable
}

// newObservable 直接使用订阅过程，不做自动释放与蹦床包装
func newObservable(subscribe func(observer Observer) Disposable) *observableImpl {
	return &observableImpl{subscribe: subscribe}
}

// NewObservable 通用构造器：观察者被自动释放包装，订阅过程在蹦床上执行，
// 订阅过程中的 panic（契约违规除外）会作为错误投递给观察者
func NewObservable(subscribe func(observer Observer) Disposable) Observable {
	return newObservable(func(observer Observer) Disposable {
		ado := newAutoDetachObserver(observer)
		CurrentThreadScheduler.EnsureTrampoline(func() {
			defer func() {
				if r := recover(); r != nil {
					err := panicToError(r)
					if IsContractViolation(err) || !ado.Fail(err) {
						panic(r)
					}
				}
			}()
			ado.SetDisposable(orEmpty(subscribe(ado)))
		})
		return ado
	})
}

// Subscribe 订阅观察者
func (o *observableImpl) Subscribe(observer Observer) Disposable {
	return o.subscribe(observer)
}

// SubscribeWithCallbacks 使用回调函数订阅；onError 为 nil 时错误会 panic
func (o *observableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return o.Subscribe(NewObserver(onNext, onError, onComplete))
}

// SubscribeOn 在指定调度器上执行订阅与退订
func (o *observableImpl) SubscribeOn(scheduler Scheduler) Observable {
	return NewObservable(func(observer Observer) Disposable {
		m := NewSingleAssignmentDisposable()
		d := NewSerialDisposable()
		d.SetDisposable(m)
		m.SetDisposable(Schedule(scheduler, func() {
			d.SetDisposable(NewScheduledDisposable(scheduler, o.Subscribe(observer)))
		}))
		return d
	})
}

// ObserveOn 在指定调度器上投递通知
func (o *observableImpl) ObserveOn(scheduler Scheduler) Observable {
	return NewObservable(func(observer Observer) Disposable {
		oo := newObserveOnObserver(scheduler, observer)
		return NewCompositeDisposable(o.Subscribe(oo), oo)
	})
}

// AsObservable 隐藏具体类型
func (o *observableImpl) AsObservable() Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.Subscribe(observer)
	})
}

// ============================================================================
// 转换操作符
// ============================================================================

// Map 映射每个值
func (o *observableImpl) Map(transformer Transformer) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			result, err := transformer(value)
			if err != nil {
				observer.OnError(err)
				return
			}
			observer.OnNext(result)
		}, observer.OnError, observer.OnComplete)
	})
}

// Filter 过滤值
func (o *observableImpl) Filter(predicate Predicate) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			ok, err := predicate(value)
			if err != nil {
				observer.OnError(err)
				return
			}
			if ok {
				observer.OnNext(value)
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// Scan 累加并发射每个中间结果，第一个值原样作为初始累加值
func (o *observableImpl) Scan(reducer Reducer) Observable {
	return NewObservable(func(observer Observer) Disposable {
		var accumulation interface{}
		hasAccumulation := false
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if !hasAccumulation {
				accumulation = value
				hasAccumulation = true
				observer.OnNext(accumulation)
				return
			}
			next, err := reducer(accumulation, value)
			if err != nil {
				observer.OnError(err)
				return
			}
			accumulation = next
			observer.OnNext(accumulation)
		}, observer.OnError, observer.OnComplete)
	})
}

// ScanWithSeed 从种子开始累加
func (o *observableImpl) ScanWithSeed(seed interface{}, reducer Reducer) Observable {
	return NewObservable(func(observer Observer) Disposable {
		accumulation := seed
		return o.SubscribeWithCallbacks(func(value interface{}) {
			next, err := reducer(accumulation, value)
			if err != nil {
				observer.OnError(err)
				return
			}
			accumulation = next
			observer.OnNext(accumulation)
		}, observer.OnError, observer.OnComplete)
	})
}

// Distinct 只发射键首次出现的值。
// 已见过的键会一直保留到订阅结束，长时间运行的序列内存会持续增长。
func (o *observableImpl) Distinct(keySelector KeySelector) Observable {
	return NewObservable(func(observer Observer) Disposable {
		seen := make(map[interface{}]struct{})
		return o.SubscribeWithCallbacks(func(value interface{}) {
			key, err := selectKey(keySelector, value)
			if err != nil {
				observer.OnError(err)
				return
			}
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
			observer.OnNext(value)
		}, observer.OnError, observer.OnComplete)
	})
}

// DistinctUntilChanged 去掉与前一个键相等的连续值
func (o *observableImpl) DistinctUntilChanged(keySelector KeySelector, comparer Comparer) Observable {
	if comparer == nil {
		comparer = func(a, b interface{}) (bool, error) { return defaultEquals(a, b), nil }
	}
	return NewObservable(func(observer Observer) Disposable {
		var currentKey interface{}
		hasCurrentKey := false
		return o.SubscribeWithCallbacks(func(value interface{}) {
			key := value
			if keySelector != nil {
				var err error
				if key, err = keySelector(value); err != nil {
					observer.OnError(err)
					return
				}
			}
			if hasCurrentKey {
				equal, err := comparer(currentKey, key)
				if err != nil {
					observer.OnError(err)
					return
				}
				if equal {
					return
				}
			}
			hasCurrentKey = true
			currentKey = key
			observer.OnNext(value)
		}, observer.OnError, observer.OnComplete)
	})
}

// selectKey 计算并校验映射键
func selectKey(keySelector KeySelector, value interface{}) (interface{}, error) {
	key := value
	if keySelector != nil {
		var err error
		if key, err = keySelector(value); err != nil {
			return nil, err
		}
	}
	if key != nil && !reflect.ValueOf(key).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrKeyNotComparable, key)
	}
	return key, nil
}

// defaultEquals 可比较时使用 ==，否则退回 reflect.DeepEqual
func defaultEquals(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// ============================================================================
// 截取操作符
// ============================================================================

// Take 只取前 count 个值；count 为负是契约违规
func (o *observableImpl) Take(count int) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	if count == 0 {
		return Empty()
	}
	return NewObservable(func(observer Observer) Disposable {
		remaining := count
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if remaining <= 0 {
				return
			}
			remaining--
			observer.OnNext(value)
			if remaining == 0 {
				observer.OnComplete()
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// TakeWhile 谓词为真时发射，第一次为假时完成
func (o *observableImpl) TakeWhile(predicate Predicate) Observable {
	return NewObservable(func(observer Observer) Disposable {
		running := true
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if !running {
				return
			}
			ok, err := predicate(value)
			if err != nil {
				observer.OnError(err)
				return
			}
			if !ok {
				running = false
				observer.OnComplete()
				return
			}
			observer.OnNext(value)
		}, observer.OnError, observer.OnComplete)
	})
}

// TakeLast 完成时发射最后 count 个值
func (o *observableImpl) TakeLast(count int) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	return NewObservable(func(observer Observer) Disposable {
		q := newBoundedQueue(count)
		return o.SubscribeWithCallbacks(q.push, observer.OnError, func() {
			for _, value := range q.items {
				observer.OnNext(value)
			}
			observer.OnComplete()
		})
	})
}

// TakeLastBuffer 完成时以切片形式发射最后 count 个值
func (o *observableImpl) TakeLastBuffer(count int) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	return NewObservable(func(observer Observer) Disposable {
		q := newBoundedQueue(count)
		return o.SubscribeWithCallbacks(q.push, observer.OnError, func() {
			observer.OnNext(append([]interface{}{}, q.items...))
			observer.OnComplete()
		})
	})
}

// TakeUntil other 发射第一个值时完成
func (o *observableImpl) TakeUntil(other Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return NewCompositeDisposable(
			o.Subscribe(observer),
			other.SubscribeWithCallbacks(func(interface{}) { observer.OnComplete() }, observer.OnError, nil),
		)
	})
}

// Skip 跳过前 count 个值
func (o *observableImpl) Skip(count int) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	return NewObservable(func(observer Observer) Disposable {
		remaining := count
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if remaining > 0 {
				remaining--
				return
			}
			observer.OnNext(value)
		}, observer.OnError, observer.OnComplete)
	})
}

// SkipWhile 谓词为真时跳过
func (o *observableImpl) SkipWhile(predicate Predicate) Observable {
	return NewObservable(func(observer Observer) Disposable {
		running := false
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if !running {
				skip, err := predicate(value)
				if err != nil {
					observer.OnError(err)
					return
				}
				running = !skip
			}
			if running {
				observer.OnNext(value)
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// SkipLast 跳过最后 count 个值
func (o *observableImpl) SkipLast(count int) Observable {
	if count < 0 {
		panic(ErrArgumentOutOfRange)
	}
	return NewObservable(func(observer Observer) Disposable {
		var q []interface{}
		return o.SubscribeWithCallbacks(func(value interface{}) {
			q = append(q, value)
			if len(q) > count {
				head := q[0]
				q[0] = nil
				q = q[1:]
				observer.OnNext(head)
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// SkipUntil other 发射第一个值之前的值都被丢弃
func (o *observableImpl) SkipUntil(other Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		var isOpen atomic.Bool
		disposables := NewCompositeDisposable(o.SubscribeWithCallbacks(func(value interface{}) {
			if isOpen.Load() {
				observer.OnNext(value)
			}
		}, observer.OnError, func() {
			if isOpen.Load() {
				observer.OnComplete()
			}
		}))

		rightSubscription := NewSingleAssignmentDisposable()
		disposables.Add(rightSubscription)
		rightSubscription.SetDisposable(other.SubscribeWithCallbacks(func(interface{}) {
			isOpen.Store(true)
			rightSubscription.Dispose()
		}, observer.OnError, func() {
			rightSubscription.Dispose()
		}))
		return disposables
	})
}

// boundedQueue 只保留最近 size 个值
type boundedQueue struct {
	size  int
	items []interface{}
}

func newBoundedQueue(size int) *boundedQueue {
	if size < 0 {
		panic(ErrArgumentOutOfRange)
	}
	return &boundedQueue{size: size}
}

func (q *boundedQueue) push(value interface{}) {
	if q.size == 0 {
		return
	}
	q.items = append(q.items, value)
	if len(q.items) > q.size {
		q.items[0] = nil
		q.items = q.items[1:]
	}
}
