// Blocking operators for rxcore
// 阻塞操作符：把推送序列桥接到通道与同步调用
package rxcore

import (
	"context"
	"sync"
)

// ============================================================================
// 通道桥接
// ============================================================================

// ToChannel 在独立的 goroutine 中订阅，把通知逐个送入返回的通道；
// 终止通知送达或 ctx 取消后退订并关闭通道。
func (o *observableImpl) ToChannel(ctx context.Context) <-chan Notification {
	ch := make(chan Notification)

	go func() {
		var mu sync.Mutex
		closed := false
		done := make(chan struct{})
		stop := make(chan struct{})
		var once sync.Once
		finish := func() { once.Do(func() { close(done) }) }

		send := func(n Notification) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			select {
			case ch <- n:
			case <-ctx.Done():
			case <-stop:
			}
		}

		subscription := o.SubscribeWithCallbacks(func(value interface{}) {
			send(NewNextNotification(value))
		}, func(err error) {
			send(NewErrorNotification(err))
			finish()
		}, func() {
			send(NewCompleteNotification())
			finish()
		})

		select {
		case <-done:
		case <-ctx.Done():
		}
		close(stop)
		subscription.Dispose()

		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

// consume 读取通知直到 handle 返回 false 或通道关闭；通道在终止前关闭时返回 ctx 的错误
func consume(ctx context.Context, source Observable, handle func(n Notification) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for n := range source.ToChannel(ctx) {
		if n.Kind == KindError {
			return n.Err
		}
		if !handle(n) {
			return nil
		}
	}
	return ctx.Err()
}

// ============================================================================
// 阻塞操作符实现
// ============================================================================

// BlockingFirst 阻塞获取第一个值；空序列返回 ErrSequenceEmpty
func (o *observableImpl) BlockingFirst(ctx context.Context) (interface{}, error) {
	var first interface{}
	found := false
	err := consume(ctx, o, func(n Notification) bool {
		if n.Kind == KindComplete {
			return false
		}
		first, found = n.Value, true
		return false
	})
	if found {
		return first, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrSequenceEmpty
}

// BlockingLast 阻塞获取最后一个值；空序列返回 ErrSequenceEmpty
func (o *observableImpl) BlockingLast(ctx context.Context) (interface{}, error) {
	var last interface{}
	found := false
	completed := false
	err := consume(ctx, o, func(n Notification) bool {
		if n.Kind == KindComplete {
			completed = true
			return false
		}
		last, found = n.Value, true
		return true
	})
	if err != nil && !completed {
		return nil, err
	}
	if !found {
		return nil, ErrSequenceEmpty
	}
	return last, nil
}

// BlockingToSlice 阻塞收集全部值
func (o *observableImpl) BlockingToSlice(ctx context.Context) ([]interface{}, error) {
	values := []interface{}{}
	completed := false
	err := consume(ctx, o, func(n Notification) bool {
		if n.Kind == KindComplete {
			completed = true
			return false
		}
		values = append(values, n.Value)
		return true
	})
	if err != nil && !completed {
		return nil, err
	}
	return values, nil
}
