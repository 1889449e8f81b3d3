// Package rxtest provides a virtual-time test harness for rxcore sequences
// 虚拟时间测试工具：测试调度器、冷热测试序列、记录通知的观察者
package rxtest

import (
	"time"

	"github.com/xinjiayu/rxcore"
)

// 默认的创建、订阅、退订时刻
const (
	Created    int64 = 100
	Subscribed int64 = 200
	Disposed   int64 = 1000
)

// ticks 以整数 tick 表示虚拟时间，1 tick 对应 1 纳秒
type ticks struct{}

func (ticks) Add(absolute, relative int64) int64 { return absolute + relative }

func (ticks) ToTime(absolute int64) time.Time { return time.Unix(0, absolute) }

func (ticks) ToRelative(d time.Duration) int64 { return int64(d) }

// NormalizeDueTime 不早于当前时刻的任务推迟到下一个 tick
func (ticks) NormalizeDueTime(dueTime, clock int64) int64 {
	if dueTime <= clock {
		return clock + 1
	}
	return dueTime
}

func compareTicks(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// TestScheduler 用于测试的虚拟时间调度器
type TestScheduler struct {
	*rxcore.VirtualTimeScheduler[int64, int64]
}

// NewTestScheduler 创建时钟为 0 的测试调度器
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{
		VirtualTimeScheduler: rxcore.NewVirtualTimeScheduler[int64, int64](0, compareTicks, ticks{}),
	}
}

// StartWithTiming 在 created 调用 create，在 subscribed 订阅，在 disposed 退订，然后运行调度器
func (s *TestScheduler) StartWithTiming(create func() rxcore.Observable, created, subscribed, disposed int64) *MockObserver {
	observer := s.CreateObserver()
	var source rxcore.Observable
	var subscription rxcore.Disposable

	s.ScheduleAbsolute(created, func() {
		source = create()
	})
	s.ScheduleAbsolute(subscribed, func() {
		subscription = source.Subscribe(observer)
	})
	s.ScheduleAbsolute(disposed, func() {
		if subscription != nil {
			subscription.Dispose()
		}
	})

	s.Start()
	return observer
}

// StartWithDispose 使用默认的创建与订阅时刻
func (s *TestScheduler) StartWithDispose(create func() rxcore.Observable, disposed int64) *MockObserver {
	return s.StartWithTiming(create, Created, Subscribed, disposed)
}

// StartWithCreate 使用默认的创建、订阅与退订时刻
func (s *TestScheduler) StartWithCreate(create func() rxcore.Observable) *MockObserver {
	return s.StartWithTiming(create, Created, Subscribed, Disposed)
}

// CreateObserver 创建记录通知及其时刻的观察者
func (s *TestScheduler) CreateObserver() *MockObserver {
	return &MockObserver{scheduler: s}
}
