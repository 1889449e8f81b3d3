package rxcore_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/rxtest"
)

// ============================================================================
// Merge
// ============================================================================

func TestMergeSync(t *testing.T) {
	values := valuesOf(t, rxcore.Merge(rxcore.Just(1), rxcore.Just(2), rxcore.Just(3)))
	require.ElementsMatch(t, []interface{}{1, 2, 3}, values)
}

func TestMergeHot(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(150, 0),
		rxtest.OnNext(210, 1),
		rxtest.OnNext(250, 3),
		rxtest.OnCompleted(300),
	)
	ys := s.CreateHotObservable(
		rxtest.OnNext(220, 2),
		rxtest.OnNext(260, 4),
		rxtest.OnCompleted(400),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.Merge(ys)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(250, 3),
		rxtest.OnNext(260, 4),
		rxtest.OnCompleted(400),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 300)}, xs.Subscriptions())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 400)}, ys.Subscriptions())
}

func TestMergeError(t *testing.T) {
	boom := errors.New("boom")
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(rxtest.OnNext(210, 1), rxtest.OnError(220, boom))
	ys := s.CreateHotObservable(rxtest.OnNext(230, 2), rxtest.OnCompleted(400))

	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Merge(xs, ys)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnError(220, boom),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 220)}, ys.Subscriptions())
}

func TestMergeConcurrent(t *testing.T) {
	values := valuesOf(t, rxcore.Just(rxcore.Just(1, 2), rxcore.Just(3)).MergeConcurrent(1))
	require.Equal(t, []interface{}{1, 2, 3}, values)

	require.PanicsWithValue(t, rxcore.ErrArgumentOutOfRange, func() {
		rxcore.Just().MergeConcurrent(0)
	})
}

func TestMergeConcurrentQueuesInners(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(rxtest.OnNext(10, "x"), rxtest.OnCompleted(20))
	ys := s.CreateColdObservable(rxtest.OnNext(10, "y"), rxtest.OnCompleted(20))
	zs := s.CreateColdObservable(rxtest.OnNext(5, "z"), rxtest.OnCompleted(10))

	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Just(xs, ys, zs).MergeConcurrent(2)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, "x"),
		rxtest.OnNext(210, "y"),
		rxtest.OnNext(225, "z"),
		rxtest.OnCompleted(230),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(220, 230)}, zs.Subscriptions())
}

func TestMergeAllRejectsNonObservable(t *testing.T) {
	_, err := collectSync(t, rxcore.Just(rxcore.Just(1), "nope").MergeAll())
	require.ErrorIs(t, err, rxcore.ErrNotObservable)
}

func TestFlatMap(t *testing.T) {
	values := valuesOf(t, rxcore.Just(1, 2).FlatMap(func(v interface{}) (rxcore.Observable, error) {
		return rxcore.Just(v, v.(int)*10), nil
	}))
	require.ElementsMatch(t, []interface{}{1, 10, 2, 20}, values)

	boom := errors.New("boom")
	_, err := collectSync(t, rxcore.Just(1).FlatMap(func(interface{}) (rxcore.Observable, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)
}

// ============================================================================
// Concat / StartWith / Repeat
// ============================================================================

func TestConcatCold(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(rxtest.OnNext(10, 1), rxtest.OnCompleted(20))
	ys := s.CreateColdObservable(rxtest.OnNext(10, 2), rxtest.OnCompleted(20))

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.Concat(ys)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnCompleted(240),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 220)}, xs.Subscriptions())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(220, 240)}, ys.Subscriptions())
}

func TestConcatStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	values, err := collectSync(t, rxcore.Concat(rxcore.Just(1), rxcore.Throw(boom), rxcore.Just(2)))
	require.Equal(t, []interface{}{1}, values)
	require.ErrorIs(t, err, boom)
}

func TestConcatDeep(t *testing.T) {
	sources := make([]rxcore.Observable, 5000)
	for i := range sources {
		sources[i] = rxcore.Just(i)
	}
	values := valuesOf(t, rxcore.Concat(sources...))
	require.Len(t, values, 5000)
	require.Equal(t, 4999, values[4999])
}

func TestConcatAll(t *testing.T) {
	values := valuesOf(t, rxcore.Just(rxcore.Just(1, 2), rxcore.Just(3)).ConcatAll())
	require.Equal(t, []interface{}{1, 2, 3}, values)
}

func TestStartWith(t *testing.T) {
	require.Equal(t, []interface{}{1, 2, 3}, valuesOf(t, rxcore.Just(3).StartWith(1, 2)))
}

func TestRepeatCold(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(rxtest.OnNext(10, 1), rxtest.OnCompleted(20))

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.Repeat(3)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 1),
		rxtest.OnNext(250, 1),
		rxtest.OnCompleted(260),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{
		rxtest.Subscribe(200, 220),
		rxtest.Subscribe(220, 240),
		rxtest.Subscribe(240, 260),
	}, xs.Subscriptions())
}

func TestRepeatInfiniteDisposed(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(rxtest.OnNext(10, 1), rxtest.OnCompleted(50))

	res := s.StartWithDispose(func() rxcore.Observable {
		return xs.Repeat(-1)
	}, 320)

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(260, 1),
		rxtest.OnNext(310, 1),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{
		rxtest.Subscribe(200, 250),
		rxtest.Subscribe(250, 300),
		rxtest.Subscribe(300, 320),
	}, xs.Subscriptions())
}

// ============================================================================
// SwitchLatest
// ============================================================================

func TestSwitchLatest(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(
		rxtest.OnNext(10, 1),
		rxtest.OnNext(20, 2),
		rxtest.OnNext(60, 3),
		rxtest.OnCompleted(100),
	)
	ys := s.CreateColdObservable(
		rxtest.OnNext(10, 10),
		rxtest.OnCompleted(80),
	)
	outer := s.CreateHotObservable(
		rxtest.OnNext(210, xs),
		rxtest.OnNext(250, ys),
		rxtest.OnCompleted(300),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return outer.SwitchLatest()
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnNext(260, 10),
		rxtest.OnCompleted(330),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(210, 250)}, xs.Subscriptions())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(250, 330)}, ys.Subscriptions())
}

func TestSwitchLatestOuterCompletesFirstWithoutInner(t *testing.T) {
	_, err := collectSync(t, rxcore.Just().SwitchLatest())
	require.NoError(t, err)
}

// ============================================================================
// Zip / CombineLatest
// ============================================================================

func TestZipSync(t *testing.T) {
	values := valuesOf(t, rxcore.Zip([]rxcore.Observable{rxcore.Just(1, 2), rxcore.Just(10, 20, 30)}, sum))
	require.Equal(t, []interface{}{11, 22}, values)

	values = valuesOf(t, rxcore.Just(1, 2, 3).Zip(rxcore.Just(10, 20), add))
	require.Equal(t, []interface{}{11, 22}, values)
}

func TestZipHot(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnCompleted(250),
	)
	ys := s.CreateHotObservable(
		rxtest.OnNext(220, 10),
		rxtest.OnNext(240, 20),
		rxtest.OnNext(260, 30),
		rxtest.OnCompleted(300),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Zip([]rxcore.Observable{xs, ys}, sum)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 11),
		rxtest.OnNext(240, 22),
		rxtest.OnCompleted(250),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 250)}, ys.Subscriptions())
}

func TestZipEmptyAndSelectorError(t *testing.T) {
	values := valuesOf(t, rxcore.Zip(nil, sum))
	require.Empty(t, values)

	boom := errors.New("boom")
	_, err := collectSync(t, rxcore.Just(1).Zip(rxcore.Just(2), func(a, b interface{}) (interface{}, error) {
		return nil, boom
	}))
	require.ErrorIs(t, err, boom)
}

func TestZipSlice(t *testing.T) {
	values := valuesOf(t, rxcore.Just(1, 2, 3).ZipSlice([]interface{}{10, 20}, add))
	require.Equal(t, []interface{}{11, 22}, values)
}

func TestCombineLatest(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 3),
		rxtest.OnCompleted(260),
	)
	ys := s.CreateHotObservable(
		rxtest.OnNext(220, 10),
		rxtest.OnNext(240, 20),
		rxtest.OnCompleted(280),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.CombineLatest(ys, add)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 11),
		rxtest.OnNext(230, 13),
		rxtest.OnNext(240, 23),
		rxtest.OnCompleted(280),
	}, res.Messages())
}

func TestCombineLatestSourceWithoutValue(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(rxtest.OnNext(210, 1), rxtest.OnCompleted(300))
	ys := s.CreateHotObservable(rxtest.OnCompleted(250))

	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.CombineLatest([]rxcore.Observable{xs, ys}, sum)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{rxtest.OnCompleted(250)}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 250)}, xs.Subscriptions())
}

// ============================================================================
// Amb
// ============================================================================

func TestAmb(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateHotObservable(rxtest.OnNext(220, 1), rxtest.OnCompleted(240))
	ys := s.CreateHotObservable(
		rxtest.OnNext(210, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnCompleted(250),
	)

	res := s.StartWithCreate(func() rxcore.Observable {
		return xs.Amb(ys)
	})

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnCompleted(250),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 210)}, xs.Subscriptions())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 250)}, ys.Subscriptions())
}

func TestAmbNoSources(t *testing.T) {
	s := rxtest.NewTestScheduler()
	res := s.StartWithCreate(func() rxcore.Observable {
		return rxcore.Amb()
	})
	require.Empty(t, res.Messages())
}
