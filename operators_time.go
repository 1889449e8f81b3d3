// Time-based operators for rxcore
// 时间操作符实现，包含 Debounce, Throttle, Delay, Timeout, Sample；
// 时间都取自传入的调度器，scheduler 为 nil 时使用定时器调度器
package rxcore

import (
	"sync"
	"time"
)

func timeScheduler(scheduler Scheduler) Scheduler {
	if scheduler == nil {
		return TimeoutScheduler
	}
	return scheduler
}

// ============================================================================
// 时间操作符实现
// ============================================================================

// Debounce 防抖操作符，只有在 dueTime 内没有新值时才发射最后一个值；完成时先发射挂起的值
func (o *observableImpl) Debounce(dueTime time.Duration, scheduler Scheduler) Observable {
	scheduler = timeScheduler(scheduler)
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var value interface{}
		hasValue := false
		var id uint64
		cancelable := NewSerialDisposable()

		subscription := o.SubscribeWithCallbacks(func(v interface{}) {
			mu.Lock()
			value = v
			hasValue = true
			id++
			current := id
			mu.Unlock()

			d := NewSingleAssignmentDisposable()
			cancelable.SetDisposable(d)
			d.SetDisposable(ScheduleWithRelative(scheduler, dueTime, func() {
				mu.Lock()
				if !hasValue || id != current {
					mu.Unlock()
					return
				}
				pending := value
				hasValue = false
				mu.Unlock()
				observer.OnNext(pending)
			}))
		}, func(err error) {
			cancelable.Dispose()
			mu.Lock()
			hasValue = false
			id++
			mu.Unlock()
			observer.OnError(err)
		}, func() {
			cancelable.Dispose()
			mu.Lock()
			pending, ok := value, hasValue
			hasValue = false
			id++
			mu.Unlock()
			if ok {
				observer.OnNext(pending)
			}
			observer.OnComplete()
		})

		return NewCompositeDisposable(subscription, cancelable)
	})
}

// Throttle 节流操作符，发射一个值后 duration 内的值都被丢弃
func (o *observableImpl) Throttle(duration time.Duration, scheduler Scheduler) Observable {
	scheduler = timeScheduler(scheduler)
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var lastEmit time.Time
		hasEmitted := false

		return o.SubscribeWithCallbacks(func(value interface{}) {
			now := scheduler.Now()
			mu.Lock()
			if hasEmitted && now.Sub(lastEmit) < duration {
				mu.Unlock()
				return
			}
			hasEmitted = true
			lastEmit = now
			mu.Unlock()
			observer.OnNext(value)
		}, observer.OnError, observer.OnComplete)
	})
}

// timedNotification 带到期时间的通知
type timedNotification struct {
	due          time.Time
	notification Notification
}

// Delay 把值与完成通知推迟 dueTime 投递，错误立即投递并丢弃尚未投递的通知
func (o *observableImpl) Delay(dueTime time.Duration, scheduler Scheduler) Observable {
	scheduler = timeScheduler(scheduler)
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var queue []timedNotification
		active := false
		cancelable := NewSerialDisposable()

		drain := func(self func(time.Duration)) {
			for {
				mu.Lock()
				if len(queue) == 0 {
					active = false
					mu.Unlock()
					return
				}
				head := queue[0]
				if wait := head.due.Sub(scheduler.Now()); wait > 0 {
					mu.Unlock()
					self(wait)
					return
				}
				queue[0] = timedNotification{}
				queue = queue[1:]
				mu.Unlock()

				head.notification.Accept(observer)
			}
		}

		enqueue := func(n Notification) {
			mu.Lock()
			queue = append(queue, timedNotification{due: scheduler.Now().Add(dueTime), notification: n})
			start := !active
			active = true
			mu.Unlock()

			if start {
				cancelable.SetDisposable(ScheduleRecursiveWithRelative(scheduler, dueTime, drain))
			}
		}

		subscription := o.SubscribeWithCallbacks(func(value interface{}) {
			enqueue(NewNextNotification(value))
		}, func(err error) {
			mu.Lock()
			queue = nil
			mu.Unlock()
			cancelable.Dispose()
			observer.OnError(err)
		}, func() {
			enqueue(NewCompleteNotification())
		})

		return NewCompositeDisposable(subscription, cancelable)
	})
}

// Timeout 订阅后或每个值之后 dueTime 内没有新通知时切换到 other；other 为 nil 时以 ErrTimeout 终止
func (o *observableImpl) Timeout(dueTime time.Duration, other Observable, scheduler Scheduler) Observable {
	scheduler = timeScheduler(scheduler)
	if other == nil {
		other = Throw(ErrTimeout)
	}
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var id uint64
		switched := false
		subscription := NewSerialDisposable()
		timer := NewSerialDisposable()
		original := NewSingleAssignmentDisposable()
		subscription.SetDisposable(original)

		// advance 尚未切换时推进计时，返回新的计时编号
		advance := func() (uint64, bool) {
			mu.Lock()
			defer mu.Unlock()
			if switched {
				return 0, false
			}
			id++
			return id, true
		}

		createTimer := func(current uint64) {
			timer.SetDisposable(ScheduleWithRelative(scheduler, dueTime, func() {
				mu.Lock()
				if switched || id != current {
					mu.Unlock()
					return
				}
				switched = true
				mu.Unlock()

				d := NewSingleAssignmentDisposable()
				subscription.SetDisposable(d)
				d.SetDisposable(other.Subscribe(observer))
			}))
		}

		first, _ := advance()
		createTimer(first)

		original.SetDisposable(o.SubscribeWithCallbacks(func(value interface{}) {
			if current, ok := advance(); ok {
				observer.OnNext(value)
				createTimer(current)
			}
		}, func(err error) {
			if _, ok := advance(); ok {
				observer.OnError(err)
			}
		}, func() {
			if _, ok := advance(); ok {
				observer.OnComplete()
			}
		}))

		return NewCompositeDisposable(subscription, timer)
	})
}

// Sample 每隔 interval 发射一次期间收到的最新值，期间没有新值时不发射
func (o *observableImpl) Sample(interval time.Duration, scheduler Scheduler) Observable {
	scheduler = timeScheduler(scheduler)
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		var value interface{}
		hasValue := false

		ticker := SchedulePeriodic(scheduler, interval, func() {
			mu.Lock()
			pending, ok := value, hasValue
			hasValue = false
			mu.Unlock()
			if ok {
				observer.OnNext(pending)
			}
		})

		subscription := o.SubscribeWithCallbacks(func(v interface{}) {
			mu.Lock()
			value = v
			hasValue = true
			mu.Unlock()
		}, observer.OnError, func() {
			mu.Lock()
			pending, ok := value, hasValue
			hasValue = false
			mu.Unlock()
			if ok {
				observer.OnNext(pending)
			}
			observer.OnComplete()
		})

		return NewCompositeDisposable(subscription, ticker)
	})
}
