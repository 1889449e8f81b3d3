package rxcore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxcore"
)

func TestBlockingFirstLastSlice(t *testing.T) {
	ctx := context.Background()

	first, err := rxcore.Just(1, 2, 3).BlockingFirst(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	last, err := rxcore.Just(1, 2, 3).BlockingLast(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, last)

	values, err := rxcore.Just(1, 2, 3).BlockingToSlice(ctx)
	require.NoError(t, err)
	require.Equal(t, []interface{}{1, 2, 3}, values)
}

func TestBlockingEmptyAndError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := rxcore.Empty().BlockingFirst(ctx)
	require.ErrorIs(t, err, rxcore.ErrSequenceEmpty)

	_, err = rxcore.Empty().BlockingLast(ctx)
	require.ErrorIs(t, err, rxcore.ErrSequenceEmpty)

	values, err := rxcore.Empty().BlockingToSlice(ctx)
	require.NoError(t, err)
	require.Empty(t, values)

	_, err = rxcore.Just(1).Concat(rxcore.Throw(boom)).BlockingLast(ctx)
	require.ErrorIs(t, err, boom)

	_, err = rxcore.Throw(boom).BlockingToSlice(ctx)
	require.ErrorIs(t, err, boom)
}

func TestBlockingHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rxcore.Never().BlockingFirst(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBlockingOnTimerScheduler(t *testing.T) {
	values, err := rxcore.Interval(time.Millisecond).Take(3).BlockingToSlice(context.Background())
	require.NoError(t, err)
	require.Equal(t, []interface{}{0, 1, 2}, values)
}

func TestToChannel(t *testing.T) {
	var got []rxcore.Notification
	for n := range rxcore.Just("a", "b").ToChannel(context.Background()) {
		got = append(got, n)
	}
	require.Equal(t, []rxcore.Notification{
		rxcore.NewNextNotification("a"),
		rxcore.NewNextNotification("b"),
		rxcore.NewCompleteNotification(),
	}, got)
}

func TestToChannelClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := rxcore.Never().ToChannel(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFromChannel(t *testing.T) {
	ch := make(chan interface{}, 3)
	ch <- "a"
	ch <- "b"
	close(ch)

	values, err := rxcore.FromChannel(ch).BlockingToSlice(context.Background())
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, values)
}
