package rxcore

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// 观察者接口
// ============================================================================

// Observer 观察者：OnNext 可以调用任意次，OnError 与 OnComplete 至多调用其一且只调用一次
type Observer interface {
	OnNext(value interface{})
	OnError(err error)
	OnComplete()
}

// stopState 观察者共享的终止状态机：终止调用只接受第一次
type stopState struct {
	stopped int32
}

// tryStop 首次终止返回 true
func (s *stopState) tryStop() bool {
	return atomic.CompareAndSwapInt32(&s.stopped, 0, 1)
}

func (s *stopState) stop() {
	atomic.StoreInt32(&s.stopped, 1)
}

// IsStopped 是否已终止
func (s *stopState) IsStopped() bool {
	return atomic.LoadInt32(&s.stopped) == 1
}

// defaultOnError 未提供错误处理时的默认行为：大声失败
func defaultOnError(err error) {
	panic(err)
}

// ============================================================================
// AnonymousObserver
// ============================================================================

// AnonymousObserver 由回调函数构成的观察者
type AnonymousObserver struct {
	stopState
	onNext     OnNext
	onError    OnError
	onComplete OnComplete
}

// NewObserver 用回调创建观察者；onError 为 nil 时收到错误会 panic
func NewObserver(onNext OnNext, onError OnError, onComplete OnComplete) *AnonymousObserver {
	if onError == nil {
		onError = defaultOnError
	}
	return &AnonymousObserver{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
}

// OnNext 未终止时转发值
func (o *AnonymousObserver) OnNext(value interface{}) {
	if o.IsStopped() || o.onNext == nil {
		return
	}
	o.onNext(value)
}

// OnError 首次终止时转发错误
func (o *AnonymousObserver) OnError(err error) {
	if o.tryStop() {
		o.onError(err)
	}
}

// OnComplete 首次终止时转发完成
func (o *AnonymousObserver) OnComplete() {
	if o.tryStop() && o.onComplete != nil {
		o.onComplete()
	}
}

// Dispose 停止接收通知
func (o *AnonymousObserver) Dispose() {
	o.stop()
}

// Fail 未终止时投递错误并返回 true
func (o *AnonymousObserver) Fail(err error) bool {
	if o.tryStop() {
		o.onError(err)
		return true
	}
	return false
}

// ============================================================================
// AutoDetachObserver
// ============================================================================

// autoDetachObserver 持有对上游的订阅；终止或下游 panic 时自动释放
type autoDetachObserver struct {
	stopState
	observer Observer
	m        *SingleAssignmentDisposable
}

func newAutoDetachObserver(observer Observer) *autoDetachObserver {
	return &autoDetachObserver{
		observer: observer,
		m:        NewSingleAssignmentDisposable(),
	}
}

func (a *autoDetachObserver) OnNext(value interface{}) {
	if a.IsStopped() {
		return
	}
	ok := false
	defer func() {
		if !ok {
			a.Dispose()
		}
	}()
	a.observer.OnNext(value)
	ok = true
}

func (a *autoDetachObserver) OnError(err error) {
	if !a.tryStop() {
		return
	}
	defer a.Dispose()
	a.observer.OnError(err)
}

func (a *autoDetachObserver) OnComplete() {
	if !a.tryStop() {
		return
	}
	defer a.Dispose()
	a.observer.OnComplete()
}

// Fail 未终止时投递错误，已终止返回 false
func (a *autoDetachObserver) Fail(err error) bool {
	if !a.tryStop() {
		return false
	}
	defer a.Dispose()
	a.observer.OnError(err)
	return true
}

func (a *autoDetachObserver) SetDisposable(d Disposable) {
	a.m.SetDisposable(d)
}

func (a *autoDetachObserver) Dispose() {
	a.stop()
	a.m.Dispose()
}

// ============================================================================
// CheckedObserver
// ============================================================================

const (
	checkedIdle int32 = iota
	checkedBusy
	checkedDone
)

// CheckedObserver 检测重入调用与终止后调用，两者都以契约违规 panic
type CheckedObserver struct {
	observer Observer
	state    int32
}

// Checked 为观察者加上调用语法检查
func Checked(observer Observer) *CheckedObserver {
	return &CheckedObserver{observer: observer}
}

func (c *CheckedObserver) checkAccess() {
	if atomic.CompareAndSwapInt32(&c.state, checkedIdle, checkedBusy) {
		return
	}
	if atomic.LoadInt32(&c.state) == checkedDone {
		panic(ErrObserverTerminated)
	}
	panic(ErrReentrancy)
}

func (c *CheckedObserver) OnNext(value interface{}) {
	c.checkAccess()
	defer atomic.StoreInt32(&c.state, checkedIdle)
	c.observer.OnNext(value)
}

func (c *CheckedObserver) OnError(err error) {
	c.checkAccess()
	defer atomic.StoreInt32(&c.state, checkedDone)
	c.observer.OnError(err)
}

func (c *CheckedObserver) OnComplete() {
	c.checkAccess()
	defer atomic.StoreInt32(&c.state, checkedDone)
	c.observer.OnComplete()
}

// ============================================================================
// 观察者辅助函数
// ============================================================================

// AsObserver 隐藏观察者的具体类型
func AsObserver(observer Observer) Observer {
	return NewObserver(observer.OnNext, observer.OnError, observer.OnComplete)
}

// ToNotifier 把观察者转换为通知处理函数
func ToNotifier(observer Observer) func(Notification) {
	return func(n Notification) {
		n.Accept(observer)
	}
}

// FromNotifier 用通知处理函数创建观察者
func FromNotifier(handler func(Notification)) Observer {
	return NewObserver(
		func(value interface{}) { handler(NewNextNotification(value)) },
		func(err error) { handler(NewErrorNotification(err)) },
		func() { handler(NewCompleteNotification()) },
	)
}

// ============================================================================
// ObserveOn 观察者
// ============================================================================

// observeOnObserver 把通知排队，并在指定调度器上逐个投递
type observeOnObserver struct {
	scheduler Scheduler
	observer  Observer

	mu         sync.Mutex
	queue      []Notification
	isAcquired bool
	hasFaulted bool
	epoch      uint64
	disposable *SerialDisposable
}

func newObserveOnObserver(scheduler Scheduler, observer Observer) *observeOnObserver {
	return &observeOnObserver{
		scheduler:  scheduler,
		observer:   observer,
		disposable: NewSerialDisposable(),
	}
}

func (o *observeOnObserver) OnNext(value interface{}) {
	o.enqueue(NewNextNotification(value))
}

func (o *observeOnObserver) OnError(err error) {
	o.enqueue(NewErrorNotification(err))
}

func (o *observeOnObserver) OnComplete() {
	o.enqueue(NewCompleteNotification())
}

func (o *observeOnObserver) enqueue(n Notification) {
	o.mu.Lock()
	if o.hasFaulted {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, n)
	if o.isAcquired {
		o.mu.Unlock()
		return
	}
	o.isAcquired = true
	o.epoch++
	epoch := o.epoch
	o.mu.Unlock()

	d := ScheduleRecursive(o.scheduler, o.run)

	// 调度返回前排空循环可能已结束并被新的循环取代
	o.mu.Lock()
	if epoch == o.epoch {
		o.disposable.SetDisposable(d)
	}
	o.mu.Unlock()
}

func (o *observeOnObserver) run(self func()) {
	o.mu.Lock()
	if len(o.queue) == 0 || o.hasFaulted {
		o.isAcquired = false
		o.mu.Unlock()
		return
	}
	n := o.queue[0]
	o.queue[0] = Notification{}
	o.queue = o.queue[1:]
	o.mu.Unlock()

	ok := false
	defer func() {
		if !ok {
			o.mu.Lock()
			o.queue = nil
			o.hasFaulted = true
			o.mu.Unlock()
		}
	}()
	n.Accept(o.observer)
	ok = true
	self()
}

func (o *observeOnObserver) Dispose() {
	o.disposable.Dispose()
}
