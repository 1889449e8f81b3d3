// Window and buffer operators for rxcore
// 窗口与缓冲操作符：窗口以子序列形式发射，缓冲是窗口内容收集成的切片
package rxcore

import (
	"sync"
	"time"
)

// ============================================================================
// 窗口
// ============================================================================

// windowState 当前窗口，源序列与边界序列可能在不同 goroutine 上访问
type windowState struct {
	mu     sync.Mutex
	window *PublishSubject
}

func (w *windowState) current() *PublishSubject {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.window
}

// swap 换上新窗口并返回旧窗口
func (w *windowState) swap() (old, next *PublishSubject) {
	w.mu.Lock()
	defer w.mu.Unlock()
	old = w.window
	w.window = NewPublishSubject()
	return old, w.window
}

// Window boundaries 每发射一次就关闭当前窗口并开启新窗口
func (o *observableImpl) Window(boundaries Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		state := &windowState{window: NewPublishSubject()}
		d := NewCompositeDisposable()
		r := NewRefCountDisposable(d)

		observer.OnNext(addRef(state.window, r))

		fail := func(err error) {
			state.current().OnError(err)
			observer.OnError(err)
		}
		complete := func() {
			state.current().OnComplete()
			observer.OnComplete()
		}

		d.Add(o.SubscribeWithCallbacks(func(value interface{}) {
			state.current().OnNext(value)
		}, fail, complete))

		d.Add(boundaries.SubscribeWithCallbacks(func(interface{}) {
			old, next := state.swap()
			old.OnComplete()
			observer.OnNext(addRef(next, r))
		}, fail, complete))

		return r
	})
}

// WindowWithClosingSelector 每个窗口在 closingSelector 返回的序列第一次发射或完成时关闭，随即开启下一个窗口
func (o *observableImpl) WindowWithClosingSelector(closingSelector func() (Observable, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		state := &windowState{window: NewPublishSubject()}
		m := NewSerialDisposable()
		d := NewCompositeDisposable(m)
		r := NewRefCountDisposable(d)

		observer.OnNext(addRef(state.window, r))

		fail := func(err error) {
			state.current().OnError(err)
			observer.OnError(err)
		}

		d.Add(o.SubscribeWithCallbacks(func(value interface{}) {
			state.current().OnNext(value)
		}, fail, func() {
			state.current().OnComplete()
			observer.OnComplete()
		}))

		var createWindowClose func()
		createWindowClose = func() {
			windowClose, err := closingSelector()
			if err != nil {
				observer.OnError(err)
				return
			}

			m1 := NewSingleAssignmentDisposable()
			m.SetDisposable(m1)
			m1.SetDisposable(windowClose.Take(1).SubscribeWithCallbacks(func(interface{}) {}, fail, func() {
				old, next := state.swap()
				old.OnComplete()
				observer.OnNext(addRef(next, r))
				createWindowClose()
			}))
		}
		createWindowClose()

		return r
	})
}

// WindowWithOpenings openings 每发射一个值开启一个窗口，该窗口在 closingSelector 返回的序列第一次发射或完成时关闭
func (o *observableImpl) WindowWithOpenings(openings Observable, closingSelector DurationSelector) Observable {
	return openings.GroupJoin(o, closingSelector, func(interface{}) (Observable, error) {
		return Empty(), nil
	}, func(_ interface{}, window Observable) (interface{}, error) {
		return window, nil
	})
}

// WindowWithCount 每 skip 个元素开启一个窗口，每个窗口包含 count 个元素
func (o *observableImpl) WindowWithCount(count, skip int) Observable {
	if count <= 0 || skip <= 0 {
		panic(ErrArgumentOutOfRange)
	}
	return NewObservable(func(observer Observer) Disposable {
		var q []*PublishSubject
		n := 0
		m := NewSingleAssignmentDisposable()
		refCount := NewRefCountDisposable(m)

		createWindow := func() {
			s := NewPublishSubject()
			q = append(q, s)
			observer.OnNext(addRef(s, refCount))
		}
		createWindow()

		m.SetDisposable(o.SubscribeWithCallbacks(func(value interface{}) {
			for _, s := range q {
				s.OnNext(value)
			}
			if c := n - count + 1; c >= 0 && c%skip == 0 {
				head := q[0]
				q = q[1:]
				head.OnComplete()
			}
			n++
			if n%skip == 0 {
				createWindow()
			}
		}, func(err error) {
			for _, s := range q {
				s.OnError(err)
			}
			q = nil
			observer.OnError(err)
		}, func() {
			for _, s := range q {
				s.OnComplete()
			}
			q = nil
			observer.OnComplete()
		}))

		return refCount
	})
}

// WindowWithTime 每隔 timeSpan 切换一次窗口；scheduler 为 nil 时使用定时器调度器
func (o *observableImpl) WindowWithTime(timeSpan time.Duration, scheduler Scheduler) Observable {
	if scheduler == nil {
		scheduler = TimeoutScheduler
	}
	return o.Window(Interval(timeSpan, WithScheduler(scheduler)))
}

// ============================================================================
// 缓冲
// ============================================================================

// collect 把每个窗口收集为切片
func collect(windows Observable) Observable {
	return windows.FlatMap(func(value interface{}) (Observable, error) {
		return value.(Observable).ToSlice(), nil
	})
}

// Buffer boundaries 每发射一次就发射当前缓冲
func (o *observableImpl) Buffer(boundaries Observable) Observable {
	return collect(o.Window(boundaries))
}

// BufferWithClosingSelector 按 closingSelector 切分缓冲
func (o *observableImpl) BufferWithClosingSelector(closingSelector func() (Observable, error)) Observable {
	return collect(o.WindowWithClosingSelector(closingSelector))
}

// BufferWithOpenings openings 开启缓冲，closingSelector 关闭缓冲
func (o *observableImpl) BufferWithOpenings(openings Observable, closingSelector DurationSelector) Observable {
	return collect(o.WindowWithOpenings(openings, closingSelector))
}

// BufferWithCount 每 skip 个元素开启一个最多 count 个元素的缓冲，空缓冲不发射
func (o *observableImpl) BufferWithCount(count, skip int) Observable {
	return collect(o.WindowWithCount(count, skip)).Filter(func(value interface{}) (bool, error) {
		return len(value.([]interface{})) > 0, nil
	})
}

// BufferWithTime 每隔 timeSpan 发射一次缓冲
func (o *observableImpl) BufferWithTime(timeSpan time.Duration, scheduler Scheduler) Observable {
	return collect(o.WindowWithTime(timeSpan, scheduler))
}
