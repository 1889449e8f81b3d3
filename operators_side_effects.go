// Side effect operators for rxcore
// 副作用操作符实现，包含 DoAction, DoOnNext, DoOnError, DoOnComplete, Finally, Log
package rxcore

import (
	"log/slog"
)

// ============================================================================
// 副作用操作符实现
// ============================================================================

// DoAction 在通知传递给下游之前调用对应的回调，nil 回调被跳过
func (o *observableImpl) DoAction(onNext OnNext, onError OnError, onComplete OnComplete) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			if onNext != nil {
				onNext(value)
			}
			observer.OnNext(value)
		}, func(err error) {
			if onError != nil {
				onError(err)
			}
			observer.OnError(err)
		}, func() {
			if onComplete != nil {
				onComplete()
			}
			observer.OnComplete()
		})
	})
}

// DoOnNext 在每个值发射时执行副作用操作
func (o *observableImpl) DoOnNext(action OnNext) Observable {
	return o.DoAction(action, nil, nil)
}

// DoOnError 在发生错误时执行副作用操作
func (o *observableImpl) DoOnError(action OnError) Observable {
	return o.DoAction(nil, action, nil)
}

// DoOnComplete 在完成时执行副作用操作
func (o *observableImpl) DoOnComplete(action OnComplete) Observable {
	return o.DoAction(nil, nil, action)
}

// Finally 订阅结束（终止或退订）后执行 action，只执行一次
func (o *observableImpl) Finally(action func()) Observable {
	return NewObservable(func(observer Observer) Disposable {
		subscription := o.Subscribe(observer)
		return NewDisposable(func() {
			defer action()
			subscription.Dispose()
		})
	})
}

// Log 以调试级别记录每个通知
func (o *observableImpl) Log(logger *slog.Logger, msg string) Observable {
	if logger == nil {
		logger = slog.Default()
	}
	return o.DoAction(func(value interface{}) {
		logger.Debug(msg, slog.String("kind", "next"), slog.Any("value", value))
	}, func(err error) {
		logger.Debug(msg, slog.String("kind", "error"), slog.Any("err", err))
	}, func() {
		logger.Debug(msg, slog.String("kind", "complete"))
	})
}
