package rxcore

import (
	"log/slog"
	"sync"
	"time"
)

// ============================================================================
// 异常捕获调度器 - Catch Scheduler
// ============================================================================

// CatchScheduler 包装另一个调度器；被调度的任务 panic 时由 handler 决定吞掉（true）还是继续抛出（false）
type CatchScheduler struct {
	scheduler Scheduler
	handler   func(err error) bool
	log       *slog.Logger
	wrappers  *wrapperCache
}

// wrapperCache 同一族包装器共享的派生缓存
type wrapperCache struct {
	mu sync.Mutex
	m  map[Scheduler]*CatchScheduler
}

// CatchException 返回带有 panic 处理的调度器
func CatchException(scheduler Scheduler, handler func(err error) bool, options ...Option) *CatchScheduler {
	return &CatchScheduler{
		scheduler: scheduler,
		handler:   handler,
		log:       newConfig(options).Logger,
		wrappers:  &wrapperCache{m: make(map[Scheduler]*CatchScheduler)},
	}
}

func (c *CatchScheduler) Now() time.Time {
	return c.scheduler.Now()
}

func (c *CatchScheduler) ScheduleWithState(state interface{}, action Action) Disposable {
	return c.scheduler.ScheduleWithState(state, c.wrap(action))
}

func (c *CatchScheduler) ScheduleWithRelativeAndState(state interface{}, dueTime time.Duration, action Action) Disposable {
	return c.scheduler.ScheduleWithRelativeAndState(state, dueTime, c.wrap(action))
}

func (c *CatchScheduler) ScheduleWithAbsoluteAndState(state interface{}, dueTime time.Time, action Action) Disposable {
	return c.scheduler.ScheduleWithAbsoluteAndState(state, dueTime, c.wrap(action))
}

// wrap 拦截任务中的 panic；任务收到的调度器同样带有捕获语义
func (c *CatchScheduler) wrap(action Action) Action {
	return func(self Scheduler, state interface{}) (result Disposable) {
		defer func() {
			if r := recover(); r != nil {
				err := panicToError(r)
				if !c.handler(err) {
					panic(r)
				}
				c.log.Debug("rxcore: scheduled action panic handled", slog.Any("err", err))
				result = EmptyDisposable
			}
		}()
		return action(c.recursiveWrapper(self), state)
	}
}

// recursiveWrapper 每个被包装的内部调度器只派生一个包装器，避免递归调度时层层嵌套
func (c *CatchScheduler) recursiveWrapper(scheduler Scheduler) Scheduler {
	if scheduler == Scheduler(c) || scheduler == c.scheduler {
		return c
	}

	c.wrappers.mu.Lock()
	defer c.wrappers.mu.Unlock()

	if w, ok := c.wrappers.m[scheduler]; ok {
		return w
	}
	w := &CatchScheduler{
		scheduler: scheduler,
		handler:   c.handler,
		log:       c.log,
		wrappers:  c.wrappers,
	}
	c.wrappers.m[scheduler] = w
	return w
}

// SchedulePeriodicWithState 周期任务 panic 且未被吞掉时停止周期调度
func (c *CatchScheduler) SchedulePeriodicWithState(state interface{}, period time.Duration, action func(state interface{}) interface{}) Disposable {
	d := NewSingleAssignmentDisposable()
	var mu sync.Mutex
	failed := false

	d.SetDisposable(SchedulePeriodicWithState(c.scheduler, state, period, func(current interface{}) (next interface{}) {
		mu.Lock()
		if failed {
			mu.Unlock()
			return current
		}
		mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				err := panicToError(r)
				mu.Lock()
				failed = true
				mu.Unlock()
				if !c.handler(err) {
					panic(r)
				}
				c.log.Debug("rxcore: periodic action panic handled", slog.Any("err", err))
				d.Dispose()
				next = current
			}
		}()
		return action(current)
	}))
	return d
}
