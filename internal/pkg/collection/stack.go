package collection

// Stack is a LIFO stack that also answers membership queries.
// It is used to track in-progress work for cycle detection.
type Stack[T comparable] struct {
	data  []T
	index map[T]int
}

func NewStack[T comparable]() *Stack[T] {
	return &Stack[T]{index: make(map[T]int)}
}

func (s *Stack[T]) Push(v T) {
	s.index[v] = len(s.data)
	s.data = append(s.data, v)
}

// Pop removes the top element. It returns false on an empty stack.
func (s *Stack[T]) Pop() (T, bool) {
	if len(s.data) == 0 {
		var zero T
		return zero, false
	}

	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	delete(s.index, v)

	return v, true
}

func (s *Stack[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}

// From returns the elements from v to the top of the stack, or nil if v is absent.
func (s *Stack[T]) From(v T) []T {
	i, ok := s.index[v]
	if !ok {
		return nil
	}

	return append([]T(nil), s.data[i:]...)
}
