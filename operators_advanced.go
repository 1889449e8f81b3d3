// Advanced operators for rxcore
// 高级操作符实现：分组、基于有效期的连接
package rxcore

import (
	"sync"
)

// ============================================================================
// 分组
// ============================================================================

// GroupedObservable 分组可观察对象，带有分组键
type GroupedObservable struct {
	Observable
	key interface{}
}

// Key 分组键
func (g *GroupedObservable) Key() interface{} {
	return g.key
}

// addRef 每个订阅持有 r 的一个引用，r 在所有引用释放后才真正释放
func addRef(source Observable, r *RefCountDisposable) Observable {
	return NewObservable(func(observer Observer) Disposable {
		return NewCompositeDisposable(r.GetDisposable(), source.Subscribe(observer))
	})
}

// groupEntry 有序分组表的条目
type groupEntry struct {
	key    interface{}
	writer *PublishSubject
}

// groupTable 按插入顺序保存分组，终止通知按该顺序扇出；键已由 selectKey 保证可比较
type groupTable struct {
	mu      sync.Mutex
	entries []*groupEntry
	index   map[interface{}]*groupEntry
}

func (t *groupTable) get(key interface{}) (*PublishSubject, bool) {
	if e, ok := t.index[key]; ok {
		return e.writer, true
	}
	return nil, false
}

func (t *groupTable) put(key interface{}, writer *PublishSubject) {
	if t.index == nil {
		t.index = make(map[interface{}]*groupEntry)
	}
	e := &groupEntry{key: key, writer: writer}
	t.index[key] = e
	t.entries = append(t.entries, e)
}

func (t *groupTable) remove(key interface{}) (*PublishSubject, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.index[key]
	if !ok {
		return nil, false
	}
	delete(t.index, key)
	for i := range t.entries {
		if t.entries[i] == e {
			t.entries = append(t.entries[:i:i], t.entries[i+1:]...)
			break
		}
	}
	return e.writer, true
}

// drain 清空分组表并返回全部写入端
func (t *groupTable) drain() []*PublishSubject {
	t.mu.Lock()
	defer t.mu.Unlock()
	writers := make([]*PublishSubject, len(t.entries))
	for i, e := range t.entries {
		writers[i] = e.writer
	}
	t.entries = nil
	t.index = nil
	return writers
}

// GroupBy 按键分组，每个新键发射一个 *GroupedObservable
func (o *observableImpl) GroupBy(keySelector KeySelector, elementSelector Transformer) Observable {
	return o.GroupByUntil(keySelector, elementSelector, func(*GroupedObservable) (Observable, error) {
		return Never(), nil
	})
}

// GroupByUntil 按键分组；每个分组在 durationSelector 返回的序列第一次发射或完成时结束，
// 之后出现的同键元素开启新的分组
func (o *observableImpl) GroupByUntil(keySelector KeySelector, elementSelector Transformer, durationSelector func(group *GroupedObservable) (Observable, error)) Observable {
	if elementSelector == nil {
		elementSelector = func(value interface{}) (interface{}, error) { return value, nil }
	}
	return NewObservable(func(observer Observer) Disposable {
		table := &groupTable{}
		groupDisposable := NewCompositeDisposable()
		refCount := NewRefCountDisposable(groupDisposable)

		fail := func(err error) {
			for _, w := range table.drain() {
				w.OnError(err)
			}
			observer.OnError(err)
		}

		groupDisposable.Add(o.SubscribeWithCallbacks(func(value interface{}) {
			key, err := selectKey(keySelector, value)
			if err != nil {
				fail(err)
				return
			}

			table.mu.Lock()
			writer, ok := table.get(key)
			if !ok {
				writer = NewPublishSubject()
				table.put(key, writer)
			}
			table.mu.Unlock()

			if !ok {
				group := &GroupedObservable{Observable: addRef(writer, refCount), key: key}
				durationGroup := &GroupedObservable{Observable: writer.AsObservable(), key: key}
				duration, err := durationSelector(durationGroup)
				if err != nil {
					fail(err)
					return
				}
				observer.OnNext(group)

				md := NewSingleAssignmentDisposable()
				groupDisposable.Add(md)
				expire := func() {
					if w, removed := table.remove(key); removed {
						w.OnComplete()
					}
					groupDisposable.Remove(md)
				}
				md.SetDisposable(duration.Take(1).SubscribeWithCallbacks(func(interface{}) {}, fail, expire))
			}

			element, err := elementSelector(value)
			if err != nil {
				fail(err)
				return
			}
			writer.OnNext(element)
		}, fail, func() {
			for _, w := range table.drain() {
				w.OnComplete()
			}
			observer.OnComplete()
		}))

		return refCount
	})
}

// ============================================================================
// 基于有效期的连接
// ============================================================================

// valueTable 以递增 id 保存仍在有效期内的值，按 id 顺序遍历
type valueTable struct {
	next   uint64
	ids    []uint64
	values map[uint64]interface{}
}

func newValueTable() *valueTable {
	return &valueTable{values: make(map[uint64]interface{})}
}

func (t *valueTable) add(value interface{}) uint64 {
	id := t.next
	t.next++
	t.ids = append(t.ids, id)
	t.values[id] = value
	return id
}

func (t *valueTable) remove(id uint64) bool {
	if _, ok := t.values[id]; !ok {
		return false
	}
	delete(t.values, id)
	for i, v := range t.ids {
		if v == id {
			t.ids = append(t.ids[:i:i], t.ids[i+1:]...)
			break
		}
	}
	return true
}

func (t *valueTable) snapshot() []interface{} {
	values := make([]interface{}, len(t.ids))
	for i, id := range t.ids {
		values[i] = t.values[id]
	}
	return values
}

func (t *valueTable) len() int {
	return len(t.ids)
}

// Join 左右两边有效期重叠的元素两两组合；
// 一边完成且（另一边已完成或自身没有有效元素）时整体完成
func (o *observableImpl) Join(right Observable, leftDuration, rightDuration DurationSelector, resultSelector func(left, right interface{}) (interface{}, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		group := NewCompositeDisposable()
		leftMap, rightMap := newValueTable(), newValueTable()
		leftDone, rightDone := false, false

		// side 描述连接的一边，emit 负责按左右顺序组合
		type side struct {
			own, other *valueTable
			done       *bool
			otherDone  *bool
			duration   DurationSelector
			emit       func(value, other interface{}) (interface{}, error)
		}

		subscribeSide := func(source Observable, s side) {
			group.Add(source.SubscribeWithCallbacks(func(value interface{}) {
				mu.Lock()
				id := s.own.add(value)
				others := s.other.snapshot()
				mu.Unlock()

				md := NewSingleAssignmentDisposable()
				group.Add(md)
				expire := func() {
					mu.Lock()
					done := s.own.remove(id) && s.own.len() == 0 && *s.done
					mu.Unlock()
					if done {
						observer.OnComplete()
					}
					group.Remove(md)
				}

				duration, err := s.duration(value)
				if err != nil {
					observer.OnError(err)
					return
				}
				md.SetDisposable(duration.Take(1).SubscribeWithCallbacks(func(interface{}) {}, observer.OnError, expire))

				for _, other := range others {
					result, err := s.emit(value, other)
					if err != nil {
						observer.OnError(err)
						return
					}
					observer.OnNext(result)
				}
			}, observer.OnError, func() {
				mu.Lock()
				*s.done = true
				done := *s.otherDone || s.own.len() == 0
				mu.Unlock()
				if done {
					observer.OnComplete()
				}
			}))
		}

		subscribeSide(o, side{
			own: leftMap, other: rightMap, done: &leftDone, otherDone: &rightDone, duration: leftDuration,
			emit: resultSelector,
		})
		subscribeSide(right, side{
			own: rightMap, other: leftMap, done: &rightDone, otherDone: &leftDone, duration: rightDuration,
			emit: func(value, other interface{}) (interface{}, error) { return resultSelector(other, value) },
		})
		return group
	})
}

// GroupJoin 每个左元素对应一个窗口，窗口内发射有效期与之重叠的右元素
func (o *observableImpl) GroupJoin(right Observable, leftDuration, rightDuration DurationSelector, resultSelector func(left interface{}, rights Observable) (interface{}, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		var mu sync.Mutex
		group := NewCompositeDisposable()
		r := NewRefCountDisposable(group)
		leftMap, rightMap := newValueTable(), newValueTable()

		leftWindows := func() []*PublishSubject {
			mu.Lock()
			defer mu.Unlock()
			values := leftMap.snapshot()
			windows := make([]*PublishSubject, len(values))
			for i, v := range values {
				windows[i] = v.(*PublishSubject)
			}
			return windows
		}
		fail := func(err error) {
			for _, w := range leftWindows() {
				w.OnError(err)
			}
			observer.OnError(err)
		}

		group.Add(o.SubscribeWithCallbacks(func(value interface{}) {
			s := NewPublishSubject()
			mu.Lock()
			id := leftMap.add(s)
			mu.Unlock()

			result, err := resultSelector(value, addRef(s, r))
			if err != nil {
				fail(err)
				return
			}
			observer.OnNext(result)

			mu.Lock()
			rights := rightMap.snapshot()
			mu.Unlock()
			for _, v := range rights {
				s.OnNext(v)
			}

			md := NewSingleAssignmentDisposable()
			group.Add(md)
			expire := func() {
				mu.Lock()
				removed := leftMap.remove(id)
				mu.Unlock()
				if removed {
					s.OnComplete()
				}
				group.Remove(md)
			}

			duration, err := leftDuration(value)
			if err != nil {
				fail(err)
				return
			}
			md.SetDisposable(duration.Take(1).SubscribeWithCallbacks(func(interface{}) {}, fail, expire))
		}, fail, observer.OnComplete))

		group.Add(right.SubscribeWithCallbacks(func(value interface{}) {
			mu.Lock()
			id := rightMap.add(value)
			mu.Unlock()

			md := NewSingleAssignmentDisposable()
			group.Add(md)
			expire := func() {
				mu.Lock()
				rightMap.remove(id)
				mu.Unlock()
				group.Remove(md)
			}

			duration, err := rightDuration(value)
			if err != nil {
				fail(err)
				return
			}
			md.SetDisposable(duration.Take(1).SubscribeWithCallbacks(func(interface{}) {}, fail, expire))

			for _, w := range leftWindows() {
				w.OnNext(value)
			}
		}, fail, nil))

		return r
	})
}
