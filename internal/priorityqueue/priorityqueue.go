// Package priorityqueue implements a stable min-heap used for time-ordered work.
//
// Items with equal priority come out in insertion order.
package priorityqueue

import "container/heap"

type entry[T any] struct {
	value    T
	seq      uint64
	position int // index in the heap, needed for heap.Remove
}

// Queue is a min-heap ordered by a caller-supplied compare function.
// It is not safe for concurrent use.
type Queue[T any] struct {
	compare func(a, b T) int
	entries []*entry[T]
	seq     uint64
}

// New returns an empty queue. compare returns a negative number when a
// sorts before b, zero when equal and a positive number otherwise.
func New[T any](compare func(a, b T) int) *Queue[T] {
	return &Queue[T]{compare: compare}
}

// Push implements heap.Interface.Push and must only be called by heap funcs.
func (q *Queue[T]) Push(x any) {
	e := x.(*entry[T])
	e.position = len(q.entries)
	q.entries = append(q.entries, e)
}

// Pop implements heap.Interface.Pop and must only be called by heap funcs.
func (q *Queue[T]) Pop() any {
	e := q.entries[len(q.entries)-1]
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
	e.position = -1
	return e
}

// Len implements sort.Interface.Len.
func (q *Queue[T]) Len() int {
	return len(q.entries)
}

// Less implements sort.Interface.Less.
func (q *Queue[T]) Less(i, j int) bool {
	if c := q.compare(q.entries[i].value, q.entries[j].value); c != 0 {
		return c < 0
	}
	return q.entries[i].seq < q.entries[j].seq
}

// Swap implements sort.Interface.Swap.
func (q *Queue[T]) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	q.entries[i].position = i
	q.entries[j].position = j
}

// Enqueue adds v to the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.seq++
	heap.Push(q, &entry[T]{value: v, seq: q.seq})
}

// Peek returns the smallest item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if len(q.entries) == 0 {
		var zero T
		return zero, false
	}
	return q.entries[0].value, true
}

// Dequeue removes and returns the smallest item.
func (q *Queue[T]) Dequeue() (T, bool) {
	if len(q.entries) == 0 {
		var zero T
		return zero, false
	}
	e := heap.Pop(q).(*entry[T])
	return e.value, true
}

// Remove deletes the first item for which match returns true.
func (q *Queue[T]) Remove(match func(T) bool) bool {
	for _, e := range q.entries {
		if match(e.value) {
			heap.Remove(q, e.position)
			return true
		}
	}
	return false
}
