// Error handling operators for rxcore
// 错误处理操作符实现
package rxcore

// ============================================================================
// 错误处理操作符实现
// ============================================================================

// Catch 出错时由 handler 提供后续序列；handler 返回的错误替换原错误，返回 nil 序列时原错误继续传播
func (o *observableImpl) Catch(handler func(err error) (Observable, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		subscription := NewSerialDisposable()
		first := NewSingleAssignmentDisposable()
		subscription.SetDisposable(first)

		first.SetDisposable(o.SubscribeWithCallbacks(observer.OnNext, func(err error) {
			result, handlerErr := handler(err)
			if handlerErr != nil {
				observer.OnError(handlerErr)
				return
			}
			if result == nil {
				observer.OnError(err)
				return
			}

			d := NewSingleAssignmentDisposable()
			subscription.SetDisposable(d)
			d.SetDisposable(result.Subscribe(observer))
		}, observer.OnComplete))
		return subscription
	})
}

// Catch 依次尝试各个序列：当前序列出错时切换到下一个，全部出错时投递最后一个错误
func Catch(sources ...Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return subscribeInSequence(observer, continueOnError, func(i int) (Observable, bool) {
			if i < len(sources) {
				return sources[i], true
			}
			return nil, false
		})
	})
}

// CatchWith 出错时切换到 other
func (o *observableImpl) CatchWith(other Observable) Observable {
	return Catch(o, other)
}

// Retry 出错时重新订阅，总共订阅 count 次；count 为负时无限重试
func (o *observableImpl) Retry(count int) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return subscribeInSequence(observer, continueOnError, func(i int) (Observable, bool) {
			return o, count < 0 || i < count
		})
	})
}

// OnErrorResumeNext 依次连接各个序列，无论前一个正常完成还是出错
func OnErrorResumeNext(sources ...Observable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return subscribeInSequence(observer, continueOnComplete|continueOnError, func(i int) (Observable, bool) {
			if i < len(sources) {
				return sources[i], true
			}
			return nil, false
		})
	})
}

// OnErrorResumeNext 结束后（完成或出错）继续 other
func (o *observableImpl) OnErrorResumeNext(other Observable) Observable {
	return OnErrorResumeNext(o, other)
}
