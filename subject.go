// Subject implementations for rxcore
// 主题：同时是观察者与可观察序列，把收到的通知广播给当前订阅者
package rxcore

import (
	"sync"
)

// Subject 主题接口
type Subject interface {
	Observable
	Observer
}

// ============================================================================
// 订阅者表
// ============================================================================

// subjectEntry 订阅者条目，按指针身份移除
type subjectEntry struct {
	observer Observer
}

// subjectCore 各种主题共享的订阅者表与终止状态
type subjectCore struct {
	mu         sync.Mutex
	entries    []*subjectEntry
	isStopped  bool
	isDisposed bool
	err        error
}

// checkDisposedLocked 已释放时解锁并 panic
func (c *subjectCore) checkDisposedLocked() {
	if c.isDisposed {
		c.mu.Unlock()
		panic(ErrObjectDisposed)
	}
}

// addLocked 添加订阅者，返回移除它的资源
func (c *subjectCore) addLocked(observer Observer) Disposable {
	entry := &subjectEntry{observer: observer}
	c.entries = append(c.entries, entry)
	return NewDisposable(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.isDisposed {
			return
		}
		for i, e := range c.entries {
			if e == entry {
				c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
				return
			}
		}
	})
}

// snapshotLocked 广播前复制订阅者表
func (c *subjectCore) snapshotLocked() []Observer {
	observers := make([]Observer, len(c.entries))
	for i, e := range c.entries {
		observers[i] = e.observer
	}
	return observers
}

// stopLocked 进入终止状态并清空订阅者表，返回终止前的订阅者
func (c *subjectCore) stopLocked(err error) []Observer {
	observers := c.snapshotLocked()
	c.isStopped = true
	c.err = err
	c.entries = nil
	return observers
}

// replayTerminal 向迟到的订阅者重放终止通知
func (c *subjectCore) replayTerminal(observer Observer, err error) {
	if err != nil {
		observer.OnError(err)
		return
	}
	observer.OnComplete()
}

// HasObservers 是否有订阅者
func (c *subjectCore) HasObservers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) > 0
}

// ObserverCount 订阅者数量
func (c *subjectCore) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IsDisposed 检查是否已释放
func (c *subjectCore) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isDisposed
}

// replayGate 重放期间暂存实时通知，重放结束后按到达顺序补发
type replayGate struct {
	mu        sync.Mutex
	observer  Observer
	replaying bool
	pending   []Notification
}

func newReplayGate(observer Observer) *replayGate {
	return &replayGate{observer: observer, replaying: true}
}

func (g *replayGate) deliver(n Notification) {
	g.mu.Lock()
	if g.replaying {
		g.pending = append(g.pending, n)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	n.Accept(g.observer)
}

func (g *replayGate) OnNext(value interface{}) { g.deliver(NewNextNotification(value)) }

func (g *replayGate) OnError(err error) { g.deliver(NewErrorNotification(err)) }

func (g *replayGate) OnComplete() { g.deliver(NewCompleteNotification()) }

// open 先重放 values，再排空暂存的实时通知，最后切换为直接转发
func (g *replayGate) open(values []interface{}) {
	for _, value := range values {
		g.observer.OnNext(value)
	}
	for {
		g.mu.Lock()
		pending := g.pending
		g.pending = nil
		if len(pending) == 0 {
			g.replaying = false
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()
		for _, n := range pending {
			n.Accept(g.observer)
		}
	}
}

// ============================================================================
// PublishSubject - 发布主题
// ============================================================================

// PublishSubject 发布主题，只向当前订阅者发送新的值；终止后向迟到者重放终止通知
type PublishSubject struct {
	Observable
	core subjectCore
}

// NewPublishSubject 创建发布主题
func NewPublishSubject() *PublishSubject {
	s := &PublishSubject{}
	s.Observable = newObservable(s.subscribeCore)
	return s
}

func (s *PublishSubject) subscribeCore(observer Observer) Disposable {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if !s.core.isStopped {
		d := s.core.addLocked(observer)
		s.core.mu.Unlock()
		return d
	}
	err := s.core.err
	s.core.mu.Unlock()

	s.core.replayTerminal(observer, err)
	return EmptyDisposable
}

// OnNext 向订阅者快照广播
func (s *PublishSubject) OnNext(value interface{}) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	observers := s.core.snapshotLocked()
	s.core.mu.Unlock()

	for _, observer := range observers {
		observer.OnNext(value)
	}
}

// OnError 广播错误并终止
func (s *PublishSubject) OnError(err error) {
	s.terminate(err)
}

// OnComplete 广播完成并终止
func (s *PublishSubject) OnComplete() {
	s.terminate(nil)
}

func (s *PublishSubject) terminate(err error) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	observers := s.core.stopLocked(err)
	s.core.mu.Unlock()

	for _, observer := range observers {
		s.core.replayTerminal(observer, err)
	}
}

// HasObservers 是否有订阅者
func (s *PublishSubject) HasObservers() bool { return s.core.HasObservers() }

// ObserverCount 订阅者数量
func (s *PublishSubject) ObserverCount() int { return s.core.ObserverCount() }

// IsDisposed 检查是否已释放
func (s *PublishSubject) IsDisposed() bool { return s.core.IsDisposed() }

// Dispose 释放主题，之后的任何操作都是契约违规
func (s *PublishSubject) Dispose() {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.isDisposed = true
	s.core.entries = nil
}

// ============================================================================
// AsyncSubject - 异步主题
// ============================================================================

// AsyncSubject 只在完成时发射最后一个值
type AsyncSubject struct {
	Observable
	core     subjectCore
	value    interface{}
	hasValue bool
}

// NewAsyncSubject 创建异步主题
func NewAsyncSubject() *AsyncSubject {
	s := &AsyncSubject{}
	s.Observable = newObservable(s.subscribeCore)
	return s
}

func (s *AsyncSubject) subscribeCore(observer Observer) Disposable {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if !s.core.isStopped {
		d := s.core.addLocked(observer)
		s.core.mu.Unlock()
		return d
	}
	err, value, hasValue := s.core.err, s.value, s.hasValue
	s.core.mu.Unlock()

	s.replay(observer, err, value, hasValue)
	return EmptyDisposable
}

func (s *AsyncSubject) replay(observer Observer, err error, value interface{}, hasValue bool) {
	if err != nil {
		observer.OnError(err)
		return
	}
	if hasValue {
		observer.OnNext(value)
	}
	observer.OnComplete()
}

// OnNext 记住最后一个值
func (s *AsyncSubject) OnNext(value interface{}) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if !s.core.isStopped {
		s.value = value
		s.hasValue = true
	}
	s.core.mu.Unlock()
}

// OnError 广播错误
func (s *AsyncSubject) OnError(err error) {
	s.terminate(err)
}

// OnComplete 发射最后一个值（如果有）然后完成
func (s *AsyncSubject) OnComplete() {
	s.terminate(nil)
}

func (s *AsyncSubject) terminate(err error) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	observers := s.core.stopLocked(err)
	value, hasValue := s.value, s.hasValue
	s.core.mu.Unlock()

	for _, observer := range observers {
		s.replay(observer, err, value, hasValue)
	}
}

// HasObservers 是否有订阅者
func (s *AsyncSubject) HasObservers() bool { return s.core.HasObservers() }

// IsDisposed 检查是否已释放
func (s *AsyncSubject) IsDisposed() bool { return s.core.IsDisposed() }

// Dispose 释放主题
func (s *AsyncSubject) Dispose() {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.isDisposed = true
	s.core.entries = nil
	s.value = nil
}

// ============================================================================
// BehaviorSubject - 行为主题
// ============================================================================

// BehaviorSubject 保存当前值，新订阅者先收到当前值
type BehaviorSubject struct {
	Observable
	core  subjectCore
	value interface{}
}

// NewBehaviorSubject 以初始值创建行为主题
func NewBehaviorSubject(initialValue interface{}) *BehaviorSubject {
	s := &BehaviorSubject{value: initialValue}
	s.Observable = newObservable(s.subscribeCore)
	return s
}

func (s *BehaviorSubject) subscribeCore(observer Observer) Disposable {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if !s.core.isStopped {
		gate := newReplayGate(observer)
		d := s.core.addLocked(gate)
		value := s.value
		s.core.mu.Unlock()
		gate.open([]interface{}{value})
		return d
	}
	err := s.core.err
	s.core.mu.Unlock()

	s.core.replayTerminal(observer, err)
	return EmptyDisposable
}

// Value 当前值
func (s *BehaviorSubject) Value() interface{} {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	return s.value
}

// OnNext 更新当前值并广播
func (s *BehaviorSubject) OnNext(value interface{}) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	s.value = value
	observers := s.core.snapshotLocked()
	s.core.mu.Unlock()

	for _, observer := range observers {
		observer.OnNext(value)
	}
}

// OnError 广播错误
func (s *BehaviorSubject) OnError(err error) {
	s.terminate(err)
}

// OnComplete 广播完成
func (s *BehaviorSubject) OnComplete() {
	s.terminate(nil)
}

func (s *BehaviorSubject) terminate(err error) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	observers := s.core.stopLocked(err)
	s.core.mu.Unlock()

	for _, observer := range observers {
		s.core.replayTerminal(observer, err)
	}
}

// HasObservers 是否有订阅者
func (s *BehaviorSubject) HasObservers() bool { return s.core.HasObservers() }

// Dispose 释放主题
func (s *BehaviorSubject) Dispose() {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.isDisposed = true
	s.core.entries = nil
	s.value = nil
}

// ============================================================================
// ReplaySubject - 重放主题
// ============================================================================

// ReplaySubject 缓存最近 bufferSize 个值（负数表示不限），向新订阅者重放
type ReplaySubject struct {
	Observable
	core       subjectCore
	bufferSize int
	buffer     []interface{}
}

// NewReplaySubject 创建重放主题
func NewReplaySubject(bufferSize int) *ReplaySubject {
	s := &ReplaySubject{bufferSize: bufferSize}
	s.Observable = newObservable(s.subscribeCore)
	return s
}

func (s *ReplaySubject) subscribeCore(observer Observer) Disposable {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	values := append([]interface{}{}, s.buffer...)
	if !s.core.isStopped {
		gate := newReplayGate(observer)
		d := s.core.addLocked(gate)
		s.core.mu.Unlock()
		gate.open(values)
		return d
	}
	err := s.core.err
	s.core.mu.Unlock()

	for _, value := range values {
		observer.OnNext(value)
	}
	s.core.replayTerminal(observer, err)
	return EmptyDisposable
}

// OnNext 缓存并广播
func (s *ReplaySubject) OnNext(value interface{}) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	if s.bufferSize != 0 {
		s.buffer = append(s.buffer, value)
		if s.bufferSize > 0 && len(s.buffer) > s.bufferSize {
			s.buffer[0] = nil
			s.buffer = s.buffer[1:]
		}
	}
	observers := s.core.snapshotLocked()
	s.core.mu.Unlock()

	for _, observer := range observers {
		observer.OnNext(value)
	}
}

// OnError 广播错误
func (s *ReplaySubject) OnError(err error) {
	s.terminate(err)
}

// OnComplete 广播完成
func (s *ReplaySubject) OnComplete() {
	s.terminate(nil)
}

func (s *ReplaySubject) terminate(err error) {
	s.core.mu.Lock()
	s.core.checkDisposedLocked()
	if s.core.isStopped {
		s.core.mu.Unlock()
		return
	}
	observers := s.core.stopLocked(err)
	s.core.mu.Unlock()

	for _, observer := range observers {
		s.core.replayTerminal(observer, err)
	}
}

// HasObservers 是否有订阅者
func (s *ReplaySubject) HasObservers() bool { return s.core.HasObservers() }

// Dispose 释放主题
func (s *ReplaySubject) Dispose() {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.isDisposed = true
	s.core.entries = nil
	s.buffer = nil
}

// ============================================================================
// AnonymousSubject - 匿名主题
// ============================================================================

// AnonymousSubject 把独立的观察者与可观察序列拼成一个主题
type AnonymousSubject struct {
	Observable
	observer Observer
}

// NewAnonymousSubject 创建匿名主题
func NewAnonymousSubject(observer Observer, observable Observable) *AnonymousSubject {
	return &AnonymousSubject{Observable: observable, observer: observer}
}

func (s *AnonymousSubject) OnNext(value interface{}) { s.observer.OnNext(value) }

func (s *AnonymousSubject) OnError(err error) { s.observer.OnError(err) }

func (s *AnonymousSubject) OnComplete() { s.observer.OnComplete() }
