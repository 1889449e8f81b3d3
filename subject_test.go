package rxcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// PublishSubject
// ============================================================================

func TestPublishSubject(t *testing.T) {
	t.Run("只发送订阅后的值", func(t *testing.T) {
		s := NewPublishSubject()
		s.OnNext(1)
		a := &collector{}
		s.Subscribe(a)
		s.OnNext(2)
		b := &collector{}
		s.Subscribe(b)
		s.OnNext(3)
		s.OnComplete()

		require.Equal(t, []interface{}{2, 3}, a.values)
		require.Equal(t, []interface{}{3}, b.values)
		require.True(t, a.completed)
		require.True(t, b.completed)
		require.False(t, s.HasObservers())
	})

	t.Run("退订", func(t *testing.T) {
		s := NewPublishSubject()
		c := &collector{}
		d := s.Subscribe(c)
		require.Equal(t, 1, s.ObserverCount())
		d.Dispose()
		require.False(t, s.HasObservers())
		s.OnNext(1)
		require.Empty(t, c.values)
	})

	t.Run("迟到者收到终止通知", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewPublishSubject()
		s.OnError(boom)
		s.OnNext(1)
		s.OnComplete()

		c := &collector{}
		require.Equal(t, EmptyDisposable, s.Subscribe(c))
		require.Same(t, boom, c.err)
		require.Empty(t, c.values)
	})

	t.Run("广播期间退订不影响本轮", func(t *testing.T) {
		s := NewPublishSubject()
		var second Disposable
		var got []interface{}
		s.SubscribeWithCallbacks(func(v interface{}) { second.Dispose() }, nil, nil)
		second = s.SubscribeWithCallbacks(func(v interface{}) { got = append(got, v) }, nil, nil)

		s.OnNext(1)
		s.OnNext(2)
		require.Equal(t, []interface{}{1}, got)
	})

	t.Run("释放后使用", func(t *testing.T) {
		s := NewPublishSubject()
		s.Subscribe(&collector{})
		s.Dispose()
		require.True(t, s.IsDisposed())
		require.False(t, s.HasObservers())
		require.PanicsWithValue(t, ErrObjectDisposed, func() { s.OnNext(1) })
		require.PanicsWithValue(t, ErrObjectDisposed, func() { s.Subscribe(&collector{}) })
		require.PanicsWithValue(t, ErrObjectDisposed, s.OnComplete)
	})
}

// ============================================================================
// AsyncSubject
// ============================================================================

func TestAsyncSubject(t *testing.T) {
	t.Run("完成时发射最后一个值", func(t *testing.T) {
		s := NewAsyncSubject()
		c := &collector{}
		s.Subscribe(c)
		s.OnNext(1)
		s.OnNext(2)
		require.Empty(t, c.values)
		s.OnComplete()
		require.Equal(t, []interface{}{2}, c.values)
		require.True(t, c.completed)

		late := &collector{}
		s.Subscribe(late)
		require.Equal(t, []interface{}{2}, late.values)
		require.True(t, late.completed)
	})

	t.Run("没有值时只完成", func(t *testing.T) {
		s := NewAsyncSubject()
		s.OnComplete()
		c := &collector{}
		s.Subscribe(c)
		require.Empty(t, c.values)
		require.True(t, c.completed)
	})

	t.Run("错误丢弃值", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewAsyncSubject()
		s.OnNext(1)
		s.OnError(boom)
		c := &collector{}
		s.Subscribe(c)
		require.Empty(t, c.values)
		require.Same(t, boom, c.err)
	})

	t.Run("释放后使用", func(t *testing.T) {
		s := NewAsyncSubject()
		s.Dispose()
		require.True(t, s.IsDisposed())
		require.PanicsWithValue(t, ErrObjectDisposed, func() { s.OnNext(1) })
		require.True(t, s.IsDisposed())
	})
}

// ============================================================================
// BehaviorSubject
// ============================================================================

func TestBehaviorSubject(t *testing.T) {
	s := NewBehaviorSubject("init")
	require.Equal(t, "init", s.Value())

	a := &collector{}
	s.Subscribe(a)
	s.OnNext("x")
	b := &collector{}
	s.Subscribe(b)
	s.OnNext("y")
	require.Equal(t, "y", s.Value())
	require.Equal(t, []interface{}{"init", "x", "y"}, a.values)
	require.Equal(t, []interface{}{"x", "y"}, b.values)
	require.True(t, s.HasObservers())

	s.OnComplete()
	late := &collector{}
	s.Subscribe(late)
	require.Empty(t, late.values)
	require.True(t, late.completed)

	s.Dispose()
	require.PanicsWithValue(t, ErrObjectDisposed, func() { s.OnNext("z") })
}

// ============================================================================
// ReplaySubject
// ============================================================================

func TestReplaySubject(t *testing.T) {
	t.Run("有界缓冲", func(t *testing.T) {
		s := NewReplaySubject(2)
		s.OnNext(1)
		s.OnNext(2)
		s.OnNext(3)
		c := &collector{}
		s.Subscribe(c)
		s.OnNext(4)
		require.Equal(t, []interface{}{2, 3, 4}, c.values)
	})

	t.Run("不限缓冲并重放终止", func(t *testing.T) {
		s := NewReplaySubject(-1)
		for i := 0; i < 5; i++ {
			s.OnNext(i)
		}
		s.OnComplete()
		c := &collector{}
		require.Equal(t, EmptyDisposable, s.Subscribe(c))
		require.Equal(t, []interface{}{0, 1, 2, 3, 4}, c.values)
		require.True(t, c.completed)
	})

	t.Run("零缓冲", func(t *testing.T) {
		s := NewReplaySubject(0)
		s.OnNext(1)
		c := &collector{}
		s.Subscribe(c)
		s.OnNext(2)
		require.Equal(t, []interface{}{2}, c.values)
	})

	t.Run("释放后使用", func(t *testing.T) {
		s := NewReplaySubject(1)
		s.Dispose()
		require.PanicsWithValue(t, ErrObjectDisposed, func() { s.Subscribe(&collector{}) })
		require.False(t, s.HasObservers())
	})
}

// reentrantObserver 收到第一个值时调用 onFirst
type reentrantObserver struct {
	collector
	onFirst func()
}

func (o *reentrantObserver) OnNext(value interface{}) {
	o.collector.OnNext(value)
	if len(o.values) == 1 {
		o.onFirst()
	}
}

func TestReplaySubjectLiveValuesWaitForReplay(t *testing.T) {
	s := NewReplaySubject(-1)
	s.OnNext(1)
	s.OnNext(2)
	s.OnNext(3)

	o := &reentrantObserver{}
	o.onFirst = func() {
		s.OnNext("live")
		s.OnComplete()
	}
	s.Subscribe(o)

	require.Equal(t, []interface{}{1, 2, 3, "live"}, o.values)
	require.True(t, o.completed)
}

func TestReplayGateQueuesUntilOpen(t *testing.T) {
	c := &collector{}
	g := newReplayGate(c)
	g.OnNext("live")
	require.Empty(t, c.values)

	g.open([]interface{}{"init"})
	require.Equal(t, []interface{}{"init", "live"}, c.values)

	g.OnNext("after")
	g.OnComplete()
	require.Equal(t, []interface{}{"init", "live", "after"}, c.values)
	require.True(t, c.completed)
}

func TestBehaviorSubjectCurrentValueFirst(t *testing.T) {
	s := NewBehaviorSubject("init")
	o := &reentrantObserver{}
	o.onFirst = func() { s.OnNext("x") }
	s.Subscribe(o)
	s.OnNext("y")
	require.Equal(t, []interface{}{"init", "x", "y"}, o.values)
}

func TestAnonymousSubject(t *testing.T) {
	sink := &collector{}
	s := NewAnonymousSubject(sink, Just("a", "b"))
	s.OnNext(1)
	s.OnComplete()
	require.Equal(t, []interface{}{1}, sink.values)

	c := &collector{}
	s.Subscribe(c)
	require.Equal(t, []interface{}{"a", "b"}, c.values)
}
