// Scheduler implementations for rxcore
// 调度器系统：立即、蹦床（当前线程）、定时器调度器，以及递归与周期调度
package rxcore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/xinjiayu/rxcore/internal/priorityqueue"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Action 被调度的工作单元，返回值用于取消该工作派生出的资源
type Action func(scheduler Scheduler, state interface{}) Disposable

// Scheduler 调度器接口，控制任务执行时机
type Scheduler interface {
	// Now 调度器时钟
	Now() time.Time
	// ScheduleWithState 尽快执行
	ScheduleWithState(state interface{}, action Action) Disposable
	// ScheduleWithRelativeAndState 相对延迟后执行
	ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable
	// ScheduleWithAbsoluteAndState 在绝对时间执行
	ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable
}

// PeriodicScheduler 原生支持周期调度的调度器
type PeriodicScheduler interface {
	SchedulePeriodicWithState(state interface{}, period time.Duration, action func(state interface{}) interface{}) Disposable
}

// Normalize 将负的相对时间归一化为 0
func Normalize(dueTime time.Duration) time.Duration {
	if dueTime < 0 {
		return 0
	}
	return dueTime
}

func orEmpty(d Disposable) Disposable {
	if d == nil {
		return EmptyDisposable
	}
	return d
}

func invokeAction(_ Scheduler, state interface{}) Disposable {
	state.(func())()
	return EmptyDisposable
}

// Schedule 调度一个无状态任务
func Schedule(scheduler Scheduler, action func()) Disposable {
	return scheduler.ScheduleWithState(action, invokeAction)
}

// ScheduleWithRelative 延迟调度一个无状态任务
func ScheduleWithRelative(scheduler Scheduler, dueTime time.Duration, action func()) Disposable {
	return scheduler.ScheduleWithRelativeAndState(action, dueTime, invokeAction)
}

// ScheduleWithAbsolute 在指定时间调度一个无状态任务
func ScheduleWithAbsolute(scheduler Scheduler, dueTime time.Time, action func()) Disposable {
	return scheduler.ScheduleWithAbsoluteAndState(action, dueTime, invokeAction)
}

// ScheduleWithContext 调度任务，ctx 结束时取消
func ScheduleWithContext(ctx context.Context, scheduler Scheduler, action func()) Disposable {
	d := Schedule(scheduler, func() {
		if ctx.Err() == nil {
			action()
		}
	})
	stop := context.AfterFunc(ctx, d.Dispose)
	return NewDisposable(func() {
		stop()
		d.Dispose()
	})
}

// ============================================================================
// 递归调度
// ============================================================================

// invokeRecursive 执行递归调度的主体；尚未执行的后续任务记录在返回的组合资源中
func invokeRecursive(state interface{}, body func(state interface{}, recurse func(schedule func(Action) Disposable))) Disposable {
	group := NewCompositeDisposable()

	var step func(state interface{})
	recurse := func(schedule func(Action) Disposable) {
		var mu sync.Mutex
		isAdded, isDone := false, false
		var d Disposable

		d = schedule(func(_ Scheduler, next interface{}) Disposable {
			mu.Lock()
			if isAdded {
				mu.Unlock()
				group.Remove(d)
			} else {
				isDone = true
				mu.Unlock()
			}
			step(next)
			return EmptyDisposable
		})

		mu.Lock()
		if !isDone {
			group.Add(d)
			isAdded = true
		}
		mu.Unlock()
	}
	step = func(state interface{}) {
		body(state, recurse)
	}

	step(state)
	return group
}

// ScheduleRecursive 递归调度，action 通过 self 再次调度自身
func ScheduleRecursive(scheduler Scheduler, action func(self func())) Disposable {
	return ScheduleRecursiveWithState(scheduler, nil, func(_ interface{}, self func(interface{})) {
		action(func() { self(nil) })
	})
}

// ScheduleRecursiveWithState 携带状态的递归调度
func ScheduleRecursiveWithState(scheduler Scheduler, state interface{}, action func(state interface{}, self func(interface{}))) Disposable {
	return scheduler.ScheduleWithState(state, func(inner Scheduler, first interface{}) Disposable {
		return invokeRecursive(first, func(current interface{}, recurse func(func(Action) Disposable)) {
			action(current, func(next interface{}) {
				recurse(func(a Action) Disposable {
					return inner.ScheduleWithState(next, a)
				})
			})
		})
	})
}

// ScheduleRecursiveWithRelative 以相对时间递归调度
func ScheduleRecursiveWithRelative(scheduler Scheduler, dueTime time.Duration, action func(self func(time.Duration))) Disposable {
	return ScheduleRecursiveWithRelativeAndState(scheduler, nil, dueTime, func(_ interface{}, self func(interface{}, time.Duration)) {
		action(func(dt time.Duration) { self(nil, dt) })
	})
}

// ScheduleRecursiveWithRelativeAndState 携带状态、以相对时间递归调度
func ScheduleRecursiveWithRelativeAndState(scheduler Scheduler, state interface{}, dueTime time.Duration, action func(state interface{}, self func(interface{}, time.Duration))) Disposable {
	return scheduler.ScheduleWithRelativeAndState(state, dueTime, func(inner Scheduler, first interface{}) Disposable {
		return invokeRecursive(first, func(current interface{}, recurse func(func(Action) Disposable)) {
			action(current, func(next interface{}, dt time.Duration) {
				recurse(func(a Action) Disposable {
					return inner.ScheduleWithRelativeAndState(next, dt, a)
				})
			})
		})
	})
}

// ScheduleRecursiveWithAbsolute 以绝对时间递归调度
func ScheduleRecursiveWithAbsolute(scheduler Scheduler, dueTime time.Time, action func(self func(time.Time))) Disposable {
	return ScheduleRecursiveWithAbsoluteAndState(scheduler, nil, dueTime, func(_ interface{}, self func(interface{}, time.Time)) {
		action(func(dt time.Time) { self(nil, dt) })
	})
}

// ScheduleRecursiveWithAbsoluteAndState 携带状态、以绝对时间递归调度
func ScheduleRecursiveWithAbsoluteAndState(scheduler Scheduler, state interface{}, dueTime time.Time, action func(state interface{}, self func(interface{}, time.Time))) Disposable {
	return scheduler.ScheduleWithAbsoluteAndState(state, dueTime, func(inner Scheduler, first interface{}) Disposable {
		return invokeRecursive(first, func(current interface{}, recurse func(func(Action) Disposable)) {
			action(current, func(next interface{}, dt time.Time) {
				recurse(func(a Action) Disposable {
					return inner.ScheduleWithAbsoluteAndState(next, dt, a)
				})
			})
		})
	})
}

// ============================================================================
// 周期调度
// ============================================================================

// SchedulePeriodic 周期执行无状态任务
func SchedulePeriodic(scheduler Scheduler, period time.Duration, action func()) Disposable {
	return SchedulePeriodicWithState(scheduler, nil, period, func(state interface{}) interface{} {
		action()
		return state
	})
}

// SchedulePeriodicWithState 周期执行任务，每次的返回值作为下次的状态
func SchedulePeriodicWithState(scheduler Scheduler, state interface{}, period time.Duration, action func(state interface{}) interface{}) Disposable {
	if p, ok := scheduler.(PeriodicScheduler); ok {
		return p.SchedulePeriodicWithState(state, period, action)
	}
	return schedulePeriodicRecursive(scheduler, state, period, action)
}

// schedulePeriodicRecursive 用相对时间递归调度模拟周期调度
func schedulePeriodicRecursive(scheduler Scheduler, state interface{}, period time.Duration, action func(state interface{}) interface{}) Disposable {
	var mu sync.Mutex
	current := state
	cancel := NewSingleAssignmentDisposable()

	cancel.SetDisposable(ScheduleRecursiveWithRelativeAndState(scheduler, nil, period, func(_ interface{}, self func(interface{}, time.Duration)) {
		self(nil, period)

		mu.Lock()
		defer mu.Unlock()
		ok := false
		defer func() {
			if !ok {
				cancel.Dispose()
			}
		}()
		current = action(current)
		ok = true
	}))
	return cancel
}

// ============================================================================
// ScheduledItem
// ============================================================================

// ScheduledItem 队列中的一个待执行任务
type ScheduledItem[T any] struct {
	scheduler  Scheduler
	state      interface{}
	action     Action
	dueTime    T
	comparer   func(a, b T) int
	disposable *SingleAssignmentDisposable
}

// NewScheduledItem 创建待执行任务
func NewScheduledItem[T any](scheduler Scheduler, state interface{}, action Action, dueTime T, comparer func(a, b T) int) *ScheduledItem[T] {
	return &ScheduledItem[T]{
		scheduler:  scheduler,
		state:      state,
		action:     action,
		dueTime:    dueTime,
		comparer:   comparer,
		disposable: NewSingleAssignmentDisposable(),
	}
}

// Invoke 未取消时执行任务
func (si *ScheduledItem[T]) Invoke() {
	if si.IsCancelled() {
		return
	}
	si.disposable.SetDisposable(orEmpty(si.action(si.scheduler, si.state)))
}

// CompareTo 按到期时间比较
func (si *ScheduledItem[T]) CompareTo(other *ScheduledItem[T]) int {
	return si.comparer(si.dueTime, other.dueTime)
}

// IsCancelled 是否已取消
func (si *ScheduledItem[T]) IsCancelled() bool {
	return si.disposable.IsDisposed()
}

// DueTime 到期时间
func (si *ScheduledItem[T]) DueTime() T {
	return si.dueTime
}

// Disposable 取消句柄
func (si *ScheduledItem[T]) Disposable() Disposable {
	return si.disposable
}

func compareItems[T any](a, b *ScheduledItem[T]) int {
	return a.CompareTo(b)
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在调用方执行任务
type immediateScheduler struct {
	clock func() time.Time
}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler(options ...Option) Scheduler {
	return &immediateScheduler{clock: newConfig(options).Clock}
}

func (s *immediateScheduler) Now() time.Time {
	return s.clock()
}

func (s *immediateScheduler) ScheduleWithState(state interface{}, action Action) Disposable {
	return orEmpty(action(s, state))
}

// ScheduleWithRelativeAndState 正的延迟是契约违规
func (s *immediateScheduler) ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable {
	if dueTime > 0 {
		panic(ErrSchedulerWouldBlock)
	}
	return orEmpty(action(s, state))
}

func (s *immediateScheduler) ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, dueTime.Sub(s.Now()), action)
}

// ============================================================================
// 蹦床调度器 - Current Thread Scheduler
// ============================================================================

// TrampolineScheduler 每个 goroutine 拥有自己的队列：在该 goroutine 上首个调度者负责排空，
// 排空期间同一 goroutine 的调度只入队，不会加深调用栈；其他 goroutine 的调度各自排空
type TrampolineScheduler struct {
	mu     sync.Mutex
	queues map[uint64]*trampolineQueue
	clock  func() time.Time
}

// trampolineQueue 只被拥有它的 goroutine 访问
type trampolineQueue = priorityqueue.Queue[*ScheduledItem[time.Time]]

// NewCurrentThreadScheduler 创建蹦床调度器
func NewCurrentThreadScheduler(options ...Option) *TrampolineScheduler {
	return &TrampolineScheduler{
		queues: make(map[uint64]*trampolineQueue),
		clock:  newConfig(options).Clock,
	}
}

func (s *TrampolineScheduler) Now() time.Time {
	return s.clock()
}

func (s *TrampolineScheduler) queueOf(id uint64) *trampolineQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[id]
}

// ScheduleRequired 调用方 goroutine 上没有排空循环时返回 true
func (s *TrampolineScheduler) ScheduleRequired() bool {
	return s.queueOf(goroutineID()) == nil
}

// EnsureTrampoline 确保 action 在调用方 goroutine 的蹦床上执行
func (s *TrampolineScheduler) EnsureTrampoline(action func()) {
	if s.ScheduleRequired() {
		Schedule(s, action)
		return
	}
	action()
}

func (s *TrampolineScheduler) ScheduleWithState(state interface{}, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, 0, action)
}

func (s *TrampolineScheduler) ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable {
	si := NewScheduledItem[time.Time](s, state, action, s.Now().Add(Normalize(dueTime)), compareTime)
	id := goroutineID()

	if queue := s.queueOf(id); queue != nil {
		queue.Enqueue(si)
		return si.Disposable()
	}

	queue := priorityqueue.New(compareItems[time.Time])
	queue.Enqueue(si)
	s.mu.Lock()
	s.queues[id] = queue
	s.mu.Unlock()

	s.drain(id, queue)
	return si.Disposable()
}

func (s *TrampolineScheduler) ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, dueTime.Sub(s.Now()), action)
}

func (s *TrampolineScheduler) drain(id uint64, queue *trampolineQueue) {
	// 任务 panic 时丢弃剩余队列
	defer func() {
		s.mu.Lock()
		delete(s.queues, id)
		s.mu.Unlock()
	}()

	for {
		item, ok := queue.Dequeue()
		if !ok {
			return
		}
		if item.IsCancelled() {
			continue
		}
		if wait := item.DueTime().Sub(s.Now()); wait > 0 {
			time.Sleep(wait)
		}
		item.Invoke()
	}
}

// goroutineID 从栈头 "goroutine 18 [running]:" 解析当前 goroutine 的编号
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("rxcore: cannot parse goroutine id from %q", buf[:]))
	}
	return id
}

var goroutinePrefix = []byte("goroutine ")

// ============================================================================
// 定时器调度器 - Timeout Scheduler
// ============================================================================

// TimerFunc 平台定时器：delay 之后调用 callback，返回取消函数
type TimerFunc func(delay time.Duration, callback func()) (cancel func())

func afterFunc(delay time.Duration, callback func()) func() {
	t := time.AfterFunc(delay, callback)
	return func() { t.Stop() }
}

// TimerScheduler 基于平台定时器的调度器；回调逐个串行执行，
// 因此回调内不能同步等待同一调度器上的其他回调
type TimerScheduler struct {
	gate  sync.Mutex
	timer TimerFunc
	clock func() time.Time
	log   *slog.Logger
}

// NewTimeoutScheduler 创建定时器调度器
func NewTimeoutScheduler(options ...Option) *TimerScheduler {
	config := newConfig(options)
	return &TimerScheduler{
		timer: config.Timer,
		clock: config.Clock,
		log:   config.Logger,
	}
}

func (s *TimerScheduler) Now() time.Time {
	return s.clock()
}

func (s *TimerScheduler) ScheduleWithState(state interface{}, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, 0, action)
}

func (s *TimerScheduler) ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable {
	sad := NewSingleAssignmentDisposable()
	cancel := s.timer(Normalize(dueTime), func() {
		s.gate.Lock()
		defer s.gate.Unlock()

		if sad.IsDisposed() {
			return
		}
		defer s.logPanic("scheduled action")
		sad.SetDisposable(orEmpty(action(s, state)))
	})
	return NewCompositeDisposable(sad, NewDisposable(cancel))
}

func (s *TimerScheduler) ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable {
	return s.ScheduleWithRelativeAndState(state, dueTime.Sub(s.Now()), action)
}

// SchedulePeriodicWithState 用 time.Ticker 实现周期调度
func (s *TimerScheduler) SchedulePeriodicWithState(state interface{}, period time.Duration, action func(state interface{}) interface{}) Disposable {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		current := state
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.gate.Lock()
				if ctx.Err() != nil {
					s.gate.Unlock()
					return
				}
				func() {
					defer s.gate.Unlock()
					defer s.logPanic("periodic action")
					current = action(current)
				}()
			}
		}
	}()

	return NewDisposable(cancel)
}

// logPanic 记录逃逸出定时器回调的 panic，然后继续向上抛出
func (s *TimerScheduler) logPanic(what string) {
	if r := recover(); r != nil {
		s.log.Error("rxcore: "+what+" panicked", slog.Any("panic", r))
		panic(r)
	}
}

// ============================================================================
// 默认调度器实例
// ============================================================================

var (
	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// CurrentThreadScheduler 蹦床调度器实例，也是订阅过程使用的蹦床；队列按 goroutine 隔离
	CurrentThreadScheduler = NewCurrentThreadScheduler()

	// TimeoutScheduler 定时器调度器实例
	TimeoutScheduler = NewTimeoutScheduler()
)
