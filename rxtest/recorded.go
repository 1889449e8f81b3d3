package rxtest

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xinjiayu/rxcore"
)

// ============================================================================
// 记录
// ============================================================================

// Recorded 在某个虚拟时刻发生的通知
type Recorded struct {
	Time  int64
	Value rxcore.Notification
}

func (r Recorded) String() string {
	return fmt.Sprintf("%v@%d", r.Value, r.Time)
}

// OnNext 在 t 时刻发射 value
func OnNext(t int64, value interface{}) Recorded {
	return Recorded{Time: t, Value: rxcore.NewNextNotification(value)}
}

// OnError 在 t 时刻以 err 终止
func OnError(t int64, err error) Recorded {
	return Recorded{Time: t, Value: rxcore.NewErrorNotification(err)}
}

// OnCompleted 在 t 时刻完成
func OnCompleted(t int64) Recorded {
	return Recorded{Time: t, Value: rxcore.NewCompleteNotification()}
}

// Infinite 从未退订的订阅的结束时刻
const Infinite int64 = math.MaxInt64

// Subscription 测试序列被订阅与退订的时刻
type Subscription struct {
	Subscribe   int64
	Unsubscribe int64
}

// Subscribe 构造订阅记录，省略 unsubscribe 表示从未退订
func Subscribe(subscribe int64, unsubscribe ...int64) Subscription {
	s := Subscription{Subscribe: subscribe, Unsubscribe: Infinite}
	if len(unsubscribe) > 0 {
		s.Unsubscribe = unsubscribe[0]
	}
	return s
}

func (s Subscription) String() string {
	if s.Unsubscribe == Infinite {
		return fmt.Sprintf("(%d, Infinite)", s.Subscribe)
	}
	return fmt.Sprintf("(%d, %d)", s.Subscribe, s.Unsubscribe)
}

// ============================================================================
// MockObserver
// ============================================================================

// MockObserver 记录收到的通知及其虚拟时刻
type MockObserver struct {
	scheduler *TestScheduler
	mu        sync.Mutex
	messages  []Recorded
}

func (o *MockObserver) record(n rxcore.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, Recorded{Time: o.scheduler.Clock(), Value: n})
}

func (o *MockObserver) OnNext(value interface{}) {
	o.record(rxcore.NewNextNotification(value))
}

func (o *MockObserver) OnError(err error) {
	o.record(rxcore.NewErrorNotification(err))
}

func (o *MockObserver) OnComplete() {
	o.record(rxcore.NewCompleteNotification())
}

// Messages 已记录的通知
func (o *MockObserver) Messages() []Recorded {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Recorded(nil), o.messages...)
}

// ============================================================================
// 断言
// ============================================================================

// AssertMessages 比较通知序列，错误按 errors.Is 比较
func AssertMessages(t testing.TB, expected, actual []Recorded) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, cmpopts.EquateErrors(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

// AssertSubscriptions 比较订阅记录
func AssertSubscriptions(t testing.TB, expected, actual []Subscription) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
	}
}
