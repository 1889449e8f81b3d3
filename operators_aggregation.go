// Aggregation operators for rxcore
// 聚合操作符实现：完成时发射单个结果
package rxcore

// ============================================================================
// 聚合操作符实现
// ============================================================================

// Aggregate 从种子开始归约，完成时发射最终累加值
func (o *observableImpl) Aggregate(seed interface{}, reducer Reducer) Observable {
	return NewObservable(func(observer Observer) Disposable {
		accumulation := seed
		return o.SubscribeWithCallbacks(func(value interface{}) {
			next, err := reducer(accumulation, value)
			if err != nil {
				observer.OnError(err)
				return
			}
			accumulation = next
		}, observer.OnError, func() {
			observer.OnNext(accumulation)
			observer.OnComplete()
		})
	})
}

// Count 计算元素个数
func (o *observableImpl) Count() Observable {
	return o.Aggregate(0, func(acc, _ interface{}) (interface{}, error) {
		return acc.(int) + 1, nil
	})
}

// Any 是否存在满足谓词的元素；predicate 为 nil 时判断序列是否非空
func (o *observableImpl) Any(predicate Predicate) Observable {
	if predicate == nil {
		predicate = func(interface{}) (bool, error) { return true, nil }
	}
	return o.firstMatch(predicate, true)
}

// All 是否所有元素都满足谓词
func (o *observableImpl) All(predicate Predicate) Observable {
	return o.firstMatch(func(value interface{}) (bool, error) {
		ok, err := predicate(value)
		return !ok, err
	}, false)
}

// Contains 是否包含与 value 相等的元素
func (o *observableImpl) Contains(value interface{}) Observable {
	return o.Any(func(v interface{}) (bool, error) {
		return defaultEquals(v, value), nil
	})
}

// firstMatch 第一个满足 match 的元素出现时立即发射 onMatch 并完成，否则完成时发射 !onMatch
func (o *observableImpl) firstMatch(match Predicate, onMatch bool) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return o.SubscribeWithCallbacks(func(value interface{}) {
			ok, err := match(value)
			if err != nil {
				observer.OnError(err)
				return
			}
			if ok {
				observer.OnNext(onMatch)
				observer.OnComplete()
			}
		}, observer.OnError, func() {
			observer.OnNext(!onMatch)
			observer.OnComplete()
		})
	})
}
