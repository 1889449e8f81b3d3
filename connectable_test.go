package rxcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/rxtest"
)

func hotSource(s *rxtest.TestScheduler) *rxtest.HotObservable {
	return s.CreateHotObservable(
		rxtest.OnNext(210, 1),
		rxtest.OnNext(240, 2),
		rxtest.OnNext(310, 3),
		rxtest.OnNext(350, 4),
		rxtest.OnCompleted(400),
	)
}

func TestPublishConnect(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := hotSource(s)
	observer := s.CreateObserver()

	var c rxcore.ConnectableObservable
	var connection rxcore.Disposable
	connected := map[int64]bool{}

	s.ScheduleAbsolute(100, func() { c = xs.Publish() })
	s.ScheduleAbsolute(200, func() { c.Subscribe(observer) })
	s.ScheduleAbsolute(300, func() { connection = c.Connect() })
	s.ScheduleAbsolute(330, func() { connected[330] = c.IsConnected() })
	s.ScheduleAbsolute(360, func() { connection.Dispose() })
	s.ScheduleAbsolute(370, func() { connected[370] = c.IsConnected() })
	s.Start()

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(310, 3),
		rxtest.OnNext(350, 4),
	}, observer.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(300, 360)}, xs.Subscriptions())
	require.Equal(t, map[int64]bool{330: true, 370: false}, connected)
}

func TestConnectReturnsExistingConnection(t *testing.T) {
	c := rxcore.Never().Publish()
	first := c.Connect()
	require.Same(t, first, c.Connect())
	first.Dispose()
	require.False(t, c.IsConnected())
}

func TestRefCount(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := hotSource(s)

	res := s.StartWithDispose(func() rxcore.Observable {
		return xs.Publish().RefCount()
	}, 320)

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(240, 2),
		rxtest.OnNext(310, 3),
	}, res.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 320)}, xs.Subscriptions())
}

func TestShare(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := s.CreateColdObservable(
		rxtest.OnNext(10, 1),
		rxtest.OnNext(20, 2),
		rxtest.OnCompleted(30),
	)
	first := s.CreateObserver()
	second := s.CreateObserver()

	var shared rxcore.Observable
	s.ScheduleAbsolute(100, func() { shared = xs.Share() })
	s.ScheduleAbsolute(200, func() { shared.Subscribe(first) })
	s.ScheduleAbsolute(215, func() { shared.Subscribe(second) })
	s.Start()

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted(230),
	}, first.Messages())
	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted(230),
	}, second.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(200, 230)}, xs.Subscriptions())
}

func TestReplay(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := hotSource(s)
	observer := s.CreateObserver()

	var c rxcore.ConnectableObservable
	s.ScheduleAbsolute(100, func() { c = xs.Replay(1) })
	s.ScheduleAbsolute(200, func() { c.Connect() })
	s.ScheduleAbsolute(260, func() { c.Subscribe(observer) })
	s.Start()

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(260, 2),
		rxtest.OnNext(310, 3),
		rxtest.OnNext(350, 4),
		rxtest.OnCompleted(400),
	}, observer.Messages())
}

func TestPublishLast(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := hotSource(s)
	observer := s.CreateObserver()

	var c rxcore.ConnectableObservable
	s.ScheduleAbsolute(100, func() { c = xs.PublishLast() })
	s.ScheduleAbsolute(200, func() { c.Subscribe(observer) })
	s.ScheduleAbsolute(220, func() { c.Connect() })
	s.Start()

	rxtest.AssertMessages(t, []rxtest.Recorded{
		rxtest.OnNext(400, 4),
		rxtest.OnCompleted(400),
	}, observer.Messages())
}

func TestAutoConnect(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := hotSource(s)
	first := s.CreateObserver()
	second := s.CreateObserver()

	var shared rxcore.Observable
	s.ScheduleAbsolute(100, func() { shared = xs.Publish().AutoConnect(2) })
	s.ScheduleAbsolute(200, func() { shared.Subscribe(first) })
	s.ScheduleAbsolute(300, func() { shared.Subscribe(second) })
	s.Start()

	expected := []rxtest.Recorded{
		rxtest.OnNext(310, 3),
		rxtest.OnNext(350, 4),
		rxtest.OnCompleted(400),
	}
	rxtest.AssertMessages(t, expected, first.Messages())
	rxtest.AssertMessages(t, expected, second.Messages())
	rxtest.AssertSubscriptions(t, []rxtest.Subscription{rxtest.Subscribe(300, 400)}, xs.Subscriptions())
}

func TestConnectWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := rxcore.Never().Publish()

	c.ConnectWithContext(ctx)
	require.True(t, c.IsConnected())

	cancel()
	require.Eventually(t, func() bool { return !c.IsConnected() }, time.Second, time.Millisecond)

	d := c.ConnectWithContext(context.Background())
	require.True(t, c.IsConnected())
	d.Dispose()
	require.False(t, c.IsConnected())
}
