package rxtest

import (
	"sync"

	"github.com/xinjiayu/rxcore"
)

// subscriptionLog 记录测试序列的订阅与退订时刻
type subscriptionLog struct {
	mu            sync.Mutex
	subscriptions []Subscription
}

// begin 记录一次订阅，返回其下标
func (l *subscriptionLog) begin(clock int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions = append(l.subscriptions, Subscribe(clock))
	return len(l.subscriptions) - 1
}

func (l *subscriptionLog) end(index int, clock int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions[index].Unsubscribe = clock
}

// Subscriptions 已记录的订阅
func (l *subscriptionLog) Subscriptions() []Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Subscription(nil), l.subscriptions...)
}

// ============================================================================
// HotObservable
// ============================================================================

// HotObservable 在绝对虚拟时刻发射通知，与是否有订阅者无关
type HotObservable struct {
	rxcore.Observable
	subscriptionLog

	scheduler *TestScheduler
	mu        sync.Mutex
	observers []*hotEntry
}

type hotEntry struct {
	observer rxcore.Observer
}

// CreateHotObservable 创建热测试序列，消息时刻为绝对时刻
func (s *TestScheduler) CreateHotObservable(messages ...Recorded) *HotObservable {
	h := &HotObservable{scheduler: s}
	h.Observable = rxcore.CreateWithDisposable(h.subscribe)

	for _, message := range messages {
		n := message.Value
		s.ScheduleAbsolute(message.Time, func() {
			h.mu.Lock()
			observers := make([]rxcore.Observer, len(h.observers))
			for i, e := range h.observers {
				observers[i] = e.observer
			}
			h.mu.Unlock()

			for _, observer := range observers {
				n.Accept(observer)
			}
		})
	}
	return h
}

func (h *HotObservable) subscribe(observer rxcore.Observer) rxcore.Disposable {
	entry := &hotEntry{observer: observer}
	h.mu.Lock()
	h.observers = append(h.observers, entry)
	h.mu.Unlock()
	index := h.begin(h.scheduler.Clock())

	return rxcore.NewDisposable(func() {
		h.mu.Lock()
		for i, e := range h.observers {
			if e == entry {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		h.end(index, h.scheduler.Clock())
	})
}

// ============================================================================
// ColdObservable
// ============================================================================

// ColdObservable 每次订阅都从头发射，消息时刻是相对订阅时刻的偏移
type ColdObservable struct {
	rxcore.Observable
	subscriptionLog

	scheduler *TestScheduler
	messages  []Recorded
}

// CreateColdObservable 创建冷测试序列
func (s *TestScheduler) CreateColdObservable(messages ...Recorded) *ColdObservable {
	c := &ColdObservable{scheduler: s, messages: messages}
	c.Observable = rxcore.CreateWithDisposable(c.subscribe)
	return c
}

func (c *ColdObservable) subscribe(observer rxcore.Observer) rxcore.Disposable {
	index := c.begin(c.scheduler.Clock())
	group := rxcore.NewCompositeDisposable()

	for _, message := range c.messages {
		n := message.Value
		group.Add(c.scheduler.ScheduleRelative(message.Time, func() {
			n.Accept(observer)
		}))
	}

	return rxcore.NewDisposable(func() {
		c.end(index, c.scheduler.Clock())
		group.Dispose()
	})
}
