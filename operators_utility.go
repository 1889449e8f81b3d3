// Utility operators for rxcore
// 工具操作符实现
package rxcore

import (
	"fmt"
)

// ============================================================================
// 通知具体化
// ============================================================================

// Materialize 把每个通知转换为 Notification 值，原序列终止后完成
func (o *observableImpl) Materialize() Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			observer.OnNext(NewNextNotification(value))
		}, func(err error) {
			observer.OnNext(NewErrorNotification(err))
			observer.OnComplete()
		}, func() {
			observer.OnNext(NewCompleteNotification())
			observer.OnComplete()
		})
	})
}

// Dematerialize Materialize 的逆操作；元素不是 Notification 时以 ErrNotNotification 终止
func (o *observableImpl) Dematerialize() Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			switch n := value.(type) {
			case Notification:
				n.Accept(observer)
			case *Notification:
				n.Accept(observer)
			default:
				observer.OnError(fmt.Errorf("%w: %T", ErrNotNotification, value))
			}
		}, observer.OnError, observer.OnComplete)
	})
}

// ============================================================================
// 其它工具操作符
// ============================================================================

// IgnoreElements 忽略所有值，只传递错误和完成信号
func (o *observableImpl) IgnoreElements() Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(interface{}) {}, observer.OnError, observer.OnComplete)
	})
}

// DefaultIfEmpty 如果Observable为空，则发射默认值
func (o *observableImpl) DefaultIfEmpty(defaultValue interface{}) Observable {
	return NewObservable(func(observer Observer) Disposable {
		hasValue := false
		return o.SubscribeWithCallbacks(func(value interface{}) {
			hasValue = true
			observer.OnNext(value)
		}, observer.OnError, func() {
			if !hasValue {
				observer.OnNext(defaultValue)
			}
			observer.OnComplete()
		})
	})
}

// ToSlice 完成时以 []interface{} 发射全部值
func (o *observableImpl) ToSlice() Observable {
	return NewObservable(func(observer Observer) Disposable {
		values := []interface{}{}
		return o.SubscribeWithCallbacks(func(value interface{}) {
			values = append(values, value)
		}, observer.OnError, func() {
			observer.OnNext(values)
			observer.OnComplete()
		})
	})
}

// FinalValue 完成时发射最后一个值；空序列以 ErrSequenceEmpty 终止
func (o *observableImpl) FinalValue() Observable {
	return NewObservable(func(observer Observer) Disposable {
		var last interface{}
		hasValue := false
		return o.SubscribeWithCallbacks(func(value interface{}) {
			last = value
			hasValue = true
		}, observer.OnError, func() {
			if !hasValue {
				observer.OnError(ErrSequenceEmpty)
				return
			}
			observer.OnNext(last)
			observer.OnComplete()
		})
	})
}
