// Package collection provides the small ordered containers used by the graph algorithms.
package collection

// Queue is a FIFO queue.
type Queue[T any] struct {
	data []T
	head int
}

func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	for _, v := range items {
		q.Push(v)
	}

	return q
}

func (q *Queue[T]) Push(v T) {
	q.data = append(q.data, v)
}

// Pop removes the front element. It returns false on an empty queue.
func (q *Queue[T]) Pop() (T, bool) {
	if q.head >= len(q.data) {
		var zero T
		return zero, false
	}

	v := q.data[q.head]
	var zero T
	q.data[q.head] = zero
	q.head++
	if q.head == len(q.data) {
		q.data = q.data[:0]
		q.head = 0
	}

	return v, true
}

func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

// Drain pops elements until the queue is empty, including elements pushed while draining.
func (q *Queue[T]) Drain(yield func(T) bool) {
	for {
		v, ok := q.Pop()
		if !ok || !yield(v) {
			return
		}
	}
}
