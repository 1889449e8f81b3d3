package rxcore_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/rxtest"
)

// ============================================================================
// 转换操作符测试
// ============================================================================

func TestMapFilterScan(t *testing.T) {
	double := func(v interface{}) (interface{}, error) { return v.(int) * 2, nil }
	even := func(v interface{}) (bool, error) { return v.(int)%2 == 0, nil }

	require.Equal(t, []interface{}{2, 4, 6}, valuesOf(t, rxcore.Just(1, 2, 3).Map(double)))
	require.Equal(t, []interface{}{2, 4}, valuesOf(t, rxcore.Range(1, 5).Filter(even)))
	require.Equal(t, []interface{}{1, 3, 6}, valuesOf(t, rxcore.Just(1, 2, 3).Scan(add)))
	require.Equal(t, []interface{}{11, 13, 16}, valuesOf(t, rxcore.Just(1, 2, 3).ScanWithSeed(10, add)))
}

func TestUserFunctionErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	values, err := collectSync(t, rxcore.Just(1, 2, 3).Map(func(v interface{}) (interface{}, error) {
		if v == 2 {
			return nil, boom
		}
		return v, nil
	}))
	require.Equal(t, []interface{}{1}, values)
	require.ErrorIs(t, err, boom)
}

func TestDistinct(t *testing.T) {
	values := valuesOf(t, rxcore.Just(1, 2, 1, 3, 2).Distinct(nil))
	require.Equal(t, []interface{}{1, 2, 3}, values)

	lower := func(v interface{}) (interface{}, error) { return strings.ToLower(v.(string)), nil }
	values = valuesOf(t, rxcore.Just("a", "A", "b").Distinct(lower))
	require.Equal(t, []interface{}{"a", "b"}, values)

	_, err := collectSync(t, rxcore.Just([]int{1}).Distinct(nil))
	require.ErrorIs(t, err, rxcore.ErrKeyNotComparable)
}

func TestDistinctUntilChanged(t *testing.T) {
	values := valuesOf(t, rxcore.Just(1, 1, 2, 2, 1, 3).DistinctUntilChanged(nil, nil))
	require.Equal(t, []interface{}{1, 2, 1, 3}, values)

	// 不可比较的值退回深度比较
	values = valuesOf(t, rxcore.Just([]int{1}, []int{1}, []int{2}).DistinctUntilChanged(nil, nil))
	require.Len(t, values, 2)
}

// ============================================================================
// 截取操作符测试
// ============================================================================

func TestTakeSkipIsolatedPerSubscription(t *testing.T) {
	take := rxcore.Just(1, 2, 3, 4).Take(2)
	require.Equal(t, []interface{}{1, 2}, valuesOf(t, take))
	require.Equal(t, []interface{}{1, 2}, valuesOf(t, take))

	skip := rxcore.Just(1, 2, 3, 4).Skip(2)
	require.Equal(t, []interface{}{3, 4}, valuesOf(t, skip))
	require.Equal(t, []interface{}{3, 4}, valuesOf(t, skip))
}

func TestTakeSkipIsolatedAcrossConcurrentSubscriptions(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnNext(240, 4),
		rxtest.OnNext(250, 5),
		rxtest.OnNext(260, 6),
		rxtest.OnCompleted(300),
	)
	chain := xs.Skip(1).TakeWhile(func(v interface{}) (bool, error) { return v.(int) < 5, nil }).Take(3)
	first := s.CreateObserver()
	second := s.CreateObserver()

	s.ScheduleAbsolute(200, func() { chain.Subscribe(first) })
	s.ScheduleAbsolute(215, func() { chain.Subscribe(second) })
	s.Start()

	// first 跳过 1 后由 Take 截止，second 跳过 2 后由 TakeWhile 截止
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnNext(240, 4),
		rxtest.OnCompleted(240),
	}, first.Messages())
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(230, 3),
		rxtest.OnNext(240, 4),
		rxtest.OnCompleted(250),
	}, second.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{
		rxtest.Subscribe(200, 240),
		rxtest.Subscribe(215, 250),
	}, xs.Subscriptions())
}

func TestTakeArguments(t *testing.T) {
	require.Empty(t, valuesOf(t, rxcore.Never().Take(0)))
	require.PanicsWithValue(t, rxcore.ErrArgumentOutOfRange, func() { rxcore.Just().Take(-1) })
	require.PanicsWithValue(t, rxcore.ErrArgumentOutOfRange, func() { rxcore.Just().Skip(-1) })
	require.PanicsWithValue(t, rxcore.ErrArgumentOutOfRange, func() { rxcore.Just().TakeLast(-1) })
	require.PanicsWithValue(t, rxcore.ErrArgumentOutOfRange, func() { rxcore.Just().SkipLast(-1) })
}

func TestTakeUnsubscribesUpstream(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(
		rxtest.OnNext(10, 1),
		rxtest.OnNext(20, 2),
		rxtest.OnNext(30, 3),
		rxtest.OnCompleted(40),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.Take(2)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted(220),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 220)}, xs.Subscriptions())
}

func TestTakeWhileSkipWhile(t *testing.T) {
	small := func(v interface{}) (bool, error) { return v.(int) < 3, nil }
	require.Equal(t, []interface{}{1, 2}, valuesOf(t, rxcore.Just(1, 2, 3, 1).TakeWhile(small)))
	require.Equal(t, []interface{}{3, 1}, valuesOf(t, rxcore.Just(1, 2, 3, 1).SkipWhile(small)))
}

func TestTakeLastSkipLast(t *testing.T) {
	require.Equal(t, []interface{}{3, 4}, valuesOf(t, rxcore.Just(1, 2, 3, 4).TakeLast(2)))
	require.Empty(t, valuesOf(t, rxcore.Just(1, 2).TakeLast(0)))
	require.Equal(t, []interface{}{1, 2}, valuesOf(t, rxcore.Just(1, 2, 3, 4).SkipLast(2)))
	require.Equal(t, []interface{}{[]interface{}{2, 3}}, valuesOf(t, rxcore.Just(1, 2, 3).TakeLastBuffer(2)))
}

func TestTakeUntil(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnNext(250, 3),
		rxtest.OnCompleted(300),
	)
	stop := s.CreateHotObservable(rxtest.OnNext(240, "stop"))

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.TakeUntil(stop)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnCompleted(240),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 240)}, xs.Subscriptions())
}

func TestSkipUntil(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnNext(250, 3),
		rxtest.OnCompleted(300),
	)
	start := s.CreateHotObservable(rxtest.OnNext(240, "go"), rxtest.OnCompleted(260))

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.SkipUntil(start)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(250, 3),
		rxtest.OnCompleted(300),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 240)}, start.Subscriptions())
}

// ============================================================================
// 热序列与主题
// ============================================================================

func TestHotSubjectOnVirtualTime(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(70, 1),
		rxtest.OnNext(110, 2),
		rxtest.OnNext(220, 3),
		rxtest.OnNext(270, 4),
		rxtest.OnNext(340, 5),
		rxtest.OnCompleted(600),
	)

	var subject *rxcore.PublishSubject
	var subscription rxcore.Disposable
	first := s.CreateObserver()
	second := s.CreateObserver()

	s.ScheduleAbsolute(100, func() {
		subject = rxcore.NewPublishSubject()
		subscription = xs.Subscribe(subject)
	})
	s.ScheduleAbsolute(200, func() { subject.Subscribe(first) })
	s.ScheduleAbsolute(300, func() { subject.Subscribe(second) })
	s.ScheduleAbsolute(1000, func() { subscription.Dispose() })
	s.Start()

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 3),
		rxtest.OnNext(270, 4),
		rxtest.OnNext(340, 5),
		rxtest.OnCompleted(600),
	}, first.Messages())
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(340, 5),
		rxtest.OnCompleted(600),
	}, second.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(100, 600)}, xs.Subscriptions())
}

// ============================================================================
// 工厂函数
// ============================================================================

func TestFactories(t *testing.T) {
	require.Equal(t, []interface{}{3, 4, 5}, valuesOf(t, rxcore.Range(3, 3)))
	require.Equal(t, []interface{}{"x", "x"}, valuesOf(t, rxcore.RepeatValue("x", 2)))
	require.Equal(t, []interface{}{7}, valuesOf(t, rxcore.Return(7)))
	require.Empty(t, valuesOf(t, rxcore.Empty()))

	squares := rxcore.Generate(1,
		func(s interface{}) (bool, error) { return s.(int) <= 3, nil },
		func(s interface{}) (interface{}, error) { return s.(int) + 1, nil },
		func(s interface{}) (interface{}, error) { return s.(int) * s.(int), nil },
	)
	require.Equal(t, []interface{}{1, 4, 9}, valuesOf(t, squares))
}

func TestCreateCleanup(t *testing.T) {
	cleaned := false
	values := valuesOf(t, rxcore.Create(func(observer rxcore.Observer) func() {
		observer.OnNext("a")
		observer.OnComplete()
		return func() { cleaned = true }
	}))
	require.Equal(t, []interface{}{"a"}, values)
	require.True(t, cleaned)
}

func TestUsingDisposesResource(t *testing.T) {
	released := false
	values := valuesOf(t, rxcore.Using(func() (rxcore.Disposable, error) {
		return rxcore.NewDisposable(func() { released = true }), nil
	}, func(rxcore.Disposable) (rxcore.Observable, error) {
		return rxcore.Just(1), nil
	}))
	require.Equal(t, []interface{}{1}, values)
	require.True(t, released)
}

func TestDeferFactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := collectSync(t, rxcore.Defer(func() (rxcore.Observable, error) { return nil, boom }))
	require.ErrorIs(t, err, boom)
}

func TestIntervalAndTimerOnVirtualTime(t *testing.T) {
	s := rxtest.NewTestScheduler()
	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Interval(10, rxcore.WithScheduler(s)).Take(3)
	})
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 0),
		rxtest.OnNext(220, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnCompleted(230),
	}, res.Messages())

	s = rxtest.NewTestScheduler()
	res = s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Timer(50, rxcore.WithScheduler(s))
	})
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(250, 0),
		rxtest.OnCompleted(250),
	}, res.Messages())
}

func TestStartOnVirtualTime(t *testing.T) {
	s := rxtest.NewTestScheduler()
	calls := 0
	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Start(func() (interface{}, error) {
			calls++
			return "done", nil
		}, rxcore.WithScheduler(s))
	})
	require.Equal(t, 1, calls)
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(200, "done"),
		rxtest.OnCompleted(200),
	}, res.Messages())
}
