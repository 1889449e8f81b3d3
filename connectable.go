// ConnectableObservable implementation for rxcore
// 可连接序列：订阅者订阅内部主题，Connect 时主题才订阅源序列，实现多播
package rxcore

import (
	"context"
	"sync"
)

// ConnectableObservable 可连接的可观察序列
type ConnectableObservable interface {
	Observable
	// Connect 订阅源序列；已连接时返回现有连接
	Connect() Disposable
	// ConnectWithContext ctx 取消时断开连接
	ConnectWithContext(ctx context.Context) Disposable
	// RefCount 第一个订阅者到来时连接，最后一个订阅者离开时断开
	RefCount() Observable
	// AutoConnect 订阅者数量达到 subscriberCount 时连接，之后不再自动断开
	AutoConnect(subscriberCount int) Observable
	IsConnected() bool
}

// ============================================================================
// ConnectableObservable 实现
// ============================================================================

// connectableObservableImpl ConnectableObservable的核心实现
type connectableObservableImpl struct {
	Observable
	source  Observable
	subject Subject

	mu         sync.Mutex
	connection *CompositeDisposable
}

// NewConnectableObservable 以给定主题多播源序列
func NewConnectableObservable(source Observable, subject Subject) ConnectableObservable {
	co := &connectableObservableImpl{
		source:  source.AsObservable(),
		subject: subject,
	}
	co.Observable = newObservable(subject.Subscribe)
	return co
}

func (co *connectableObservableImpl) Connect() Disposable {
	co.mu.Lock()
	if co.connection != nil {
		connection := co.connection
		co.mu.Unlock()
		return connection
	}

	subscription := NewSingleAssignmentDisposable()
	var connection *CompositeDisposable
	connection = NewCompositeDisposable(subscription, NewDisposable(func() {
		co.mu.Lock()
		defer co.mu.Unlock()
		if co.connection == connection {
			co.connection = nil
		}
	}))
	co.connection = connection
	co.mu.Unlock()

	// 源序列可能同步发射，订阅在锁外进行
	subscription.SetDisposable(co.source.Subscribe(co.subject))
	return connection
}

func (co *connectableObservableImpl) ConnectWithContext(ctx context.Context) Disposable {
	connection := co.Connect()
	stop := context.AfterFunc(ctx, connection.Dispose)
	return NewDisposable(func() {
		stop()
		connection.Dispose()
	})
}

// IsConnected 检查是否已连接
func (co *connectableObservableImpl) IsConnected() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.connection != nil
}

// RefCount 返回一个自动连接/断开的Observable
func (co *connectableObservableImpl) RefCount() Observable {
	var mu sync.Mutex
	count := 0
	var connection Disposable

	return NewObservable(func(observer Observer) Disposable {
		mu.Lock()
		count++
		shouldConnect := count == 1
		mu.Unlock()

		subscription := co.Subscribe(observer)
		if shouldConnect {
			conn := co.Connect()
			mu.Lock()
			connection = conn
			mu.Unlock()
		}

		return NewDisposable(func() {
			subscription.Dispose()

			mu.Lock()
			count--
			var conn Disposable
			if count == 0 {
				conn, connection = connection, nil
			}
			mu.Unlock()

			if conn != nil {
				conn.Dispose()
			}
		})
	})
}

// AutoConnect 当有指定数量的订阅者时自动连接
func (co *connectableObservableImpl) AutoConnect(subscriberCount int) Observable {
	if subscriberCount <= 0 {
		subscriberCount = 1
	}
	var mu sync.Mutex
	count := 0

	return NewObservable(func(observer Observer) Disposable {
		subscription := co.Subscribe(observer)

		mu.Lock()
		count++
		shouldConnect := count == subscriberCount
		mu.Unlock()

		if shouldConnect {
			co.Connect()
		}
		return subscription
	})
}

// ============================================================================
// 多播操作符
// ============================================================================

// Multicast 通过 subject 多播
func (o *observableImpl) Multicast(subject Subject) ConnectableObservable {
	return NewConnectableObservable(o, subject)
}

// Publish 通过 PublishSubject 多播，连接之后的订阅者只收到之后的值
func (o *observableImpl) Publish() ConnectableObservable {
	return o.Multicast(NewPublishSubject())
}

// PublishLast 通过 AsyncSubject 多播，订阅者只收到最后一个值
func (o *observableImpl) PublishLast() ConnectableObservable {
	return o.Multicast(NewAsyncSubject())
}

// Replay 通过 ReplaySubject 多播，订阅者先收到缓存的最近 bufferSize 个值
func (o *observableImpl) Replay(bufferSize int) ConnectableObservable {
	return o.Multicast(NewReplaySubject(bufferSize))
}

// Share 引用计数的 Publish
func (o *observableImpl) Share() Observable {
	return o.Publish().RefCount()
}
