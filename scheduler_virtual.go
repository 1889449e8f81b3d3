package rxcore

import (
	"sync"
	"time"

	"github.com/xinjiayu/rxcore/internal/priorityqueue"
)

// ============================================================================
// 虚拟时间调度器 - Virtual Time Scheduler
// ============================================================================

// VirtualTimeConverter 在虚拟时间 A、相对虚拟时间 R 与真实时间之间转换
type VirtualTimeConverter[A, R any] interface {
	// Add 绝对时间加相对时间
	Add(absolute A, relative R) A
	// ToTime 虚拟时间对应的真实时间，用作 Now()
	ToTime(absolute A) time.Time
	// ToRelative 将真实时间间隔转换为相对虚拟时间
	ToRelative(d time.Duration) R
}

// DueTimeNormalizer 可选接口：转换器可以在入队前调整到期时间
type DueTimeNormalizer[A any] interface {
	NormalizeDueTime(dueTime, clock A) A
}

// VirtualTimeScheduler 由逻辑时钟驱动的调度器，时间只在显式调用时前进
type VirtualTimeScheduler[A, R any] struct {
	mu        sync.Mutex
	clock     A
	comparer  func(a, b A) int
	converter VirtualTimeConverter[A, R]
	isEnabled bool
	queue     *priorityqueue.Queue[*ScheduledItem[A]]
}

// NewVirtualTimeScheduler 创建虚拟时间调度器
func NewVirtualTimeScheduler[A, R any](initialClock A, comparer func(a, b A) int, converter VirtualTimeConverter[A, R]) *VirtualTimeScheduler[A, R] {
	return &VirtualTimeScheduler[A, R]{
		clock:     initialClock,
		comparer:  comparer,
		converter: converter,
		queue:     priorityqueue.New(compareItems[A]),
	}
}

// Now 当前虚拟时间对应的真实时间
func (s *VirtualTimeScheduler[A, R]) Now() time.Time {
	return s.converter.ToTime(s.Clock())
}

// Clock 当前虚拟时间
func (s *VirtualTimeScheduler[A, R]) Clock() A {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// IsEnabled 是否正在运行
func (s *VirtualTimeScheduler[A, R]) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isEnabled
}

func (s *VirtualTimeScheduler[A, R]) ScheduleWithState(state interface{}, action Action) Disposable {
	return s.ScheduleAbsoluteWithState(state, s.Clock(), action)
}

func (s *VirtualTimeScheduler[A, R]) ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable {
	return s.ScheduleRelativeWithState(state, s.converter.ToRelative(Normalize(dueTime)), action)
}

func (s *VirtualTimeScheduler[A, R]) ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, dueTime.Sub(s.Now()), action)
}

// ScheduleRelativeWithState 以虚拟相对时间调度
func (s *VirtualTimeScheduler[A, R]) ScheduleRelativeWithState(state interface{}, dueTime R, action Action) Disposable {
	return s.ScheduleAbsoluteWithState(state, s.converter.Add(s.Clock(), dueTime), action)
}

// ScheduleAbsoluteWithState 以虚拟绝对时间调度
func (s *VirtualTimeScheduler[A, R]) ScheduleAbsoluteWithState(state interface{}, dueTime A, action Action) Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.converter.(DueTimeNormalizer[A]); ok {
		dueTime = n.NormalizeDueTime(dueTime, s.clock)
	}
	si := NewScheduledItem[A](s, state, action, dueTime, s.comparer)
	s.queue.Enqueue(si)
	return si.Disposable()
}

// ScheduleAbsolute 以虚拟绝对时间调度无状态任务
func (s *VirtualTimeScheduler[A, R]) ScheduleAbsolute(dueTime A, action func()) Disposable {
	return s.ScheduleAbsoluteWithState(action, dueTime, invokeAction)
}

// ScheduleRelative 以虚拟相对时间调度无状态任务
func (s *VirtualTimeScheduler[A, R]) ScheduleRelative(dueTime R, action func()) Disposable {
	return s.ScheduleRelativeWithState(action, dueTime, invokeAction)
}

// next 取出下一个未取消的任务
func (s *VirtualTimeScheduler[A, R]) next() (*ScheduledItem[A], bool) {
	for {
		item, ok := s.queue.Peek()
		if !ok {
			return nil, false
		}
		if !item.IsCancelled() {
			return item, true
		}
		s.queue.Dequeue()
	}
}

// Start 启动并排空队列
func (s *VirtualTimeScheduler[A, R]) Start() {
	s.mu.Lock()
	if s.isEnabled {
		s.mu.Unlock()
		return
	}
	s.isEnabled = true
	s.mu.Unlock()
	defer s.Stop()

	for {
		item, ok := s.dequeueDue(nil)
		if !ok {
			return
		}
		item.Invoke()
	}
}

// Stop 停止运行
func (s *VirtualTimeScheduler[A, R]) Stop() {
	s.mu.Lock()
	s.isEnabled = false
	s.mu.Unlock()
}

// dequeueDue 在运行状态下取出下一个到期（不晚于 limit）的任务，并把时钟推进到它的到期时间
func (s *VirtualTimeScheduler[A, R]) dequeueDue(limit *A) (*ScheduledItem[A], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isEnabled {
		return nil, false
	}
	item, ok := s.next()
	if !ok || (limit != nil && s.comparer(item.DueTime(), *limit) > 0) {
		return nil, false
	}
	s.queue.Dequeue()
	if s.comparer(item.DueTime(), s.clock) > 0 {
		s.clock = item.DueTime()
	}
	return item, true
}

// AdvanceTo 执行到期时间不晚于 t 的任务，然后把时钟设为 t；t 早于当前时钟是契约违规
func (s *VirtualTimeScheduler[A, R]) AdvanceTo(t A) {
	s.mu.Lock()
	c := s.comparer(s.clock, t)
	if c > 0 {
		s.mu.Unlock()
		panic(ErrArgumentOutOfRange)
	}
	if c == 0 || s.isEnabled {
		s.mu.Unlock()
		return
	}
	s.isEnabled = true
	s.mu.Unlock()
	defer s.Stop()

	for {
		item, ok := s.dequeueDue(&t)
		if !ok {
			break
		}
		item.Invoke()
	}

	s.mu.Lock()
	s.clock = t
	s.mu.Unlock()
}

// AdvanceBy 相当于 AdvanceTo(clock + d)
func (s *VirtualTimeScheduler[A, R]) AdvanceBy(d R) {
	s.AdvanceTo(s.converter.Add(s.Clock(), d))
}

// Sleep 只推进时钟而不执行任务，必须严格向前
func (s *VirtualTimeScheduler[A, R]) Sleep(d R) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.converter.Add(s.clock, d)
	if s.comparer(s.clock, dt) >= 0 {
		panic(ErrArgumentOutOfRange)
	}
	s.clock = dt
}

// ============================================================================
// 历史调度器 - Historical Scheduler
// ============================================================================

type historicalConverter struct{}

func (historicalConverter) Add(absolute time.Time, relative time.Duration) time.Time {
	return absolute.Add(relative)
}

func (historicalConverter) ToTime(absolute time.Time) time.Time { return absolute }

func (historicalConverter) ToRelative(d time.Duration) time.Duration { return d }

// HistoricalScheduler 以 time.Time 为虚拟时间的调度器，用于回放历史数据
type HistoricalScheduler = VirtualTimeScheduler[time.Time, time.Duration]

// NewHistoricalScheduler 创建历史调度器
func NewHistoricalScheduler(initialClock time.Time) *HistoricalScheduler {
	return NewVirtualTimeScheduler[time.Time, time.Duration](initialClock, compareTime, historicalConverter{})
}
