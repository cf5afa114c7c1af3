package flow

import "sync"

// Just emits vs in order, then completes.
func Just[T any](vs ...T) Sequence[T] {
	return FromSlice(vs)
}

// FromSlice emits the elements of vs in order, then completes.
func FromSlice[T any](vs []T) Sequence[T] {
	return New(func(s *Sink[T]) {
		for _, v := range vs {
			if !s.Next(v) {
				return
			}
		}
		s.Complete()
	})
}

// Fail terminates every subscription with err.
func Fail[T any](err error) Sequence[T] {
	return New(func(s *Sink[T]) { s.Error(err) })
}

// Defer builds the sequence at subscription time.
func Defer[T any](fn func() Sequence[T]) Sequence[T] {
	return New(func(s *Sink[T]) {
		forward(fn(), s)
	})
}

// Map transforms each value. An error from fn terminates the sequence.
func Map[T, U any](src Sequence[T], fn func(T) (U, error)) Sequence[U] {
	return New(func(s *Sink[U]) {
		sub := src.Subscribe(Observer[T]{
			Next: func(v T) {
				u, err := fn(v)
				if err != nil {
					s.Error(err)
					return
				}
				s.Next(u)
			},
			Error:    s.Error,
			Complete: s.Complete,
		})
		s.Defer(sub.Dispose)
	})
}

// Filter forwards the values for which keep returns true.
func Filter[T any](src Sequence[T], keep func(T) bool) Sequence[T] {
	return New(func(s *Sink[T]) {
		sub := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if keep(v) {
					s.Next(v)
				}
			},
			Error:    s.Error,
			Complete: s.Complete,
		})
		s.Defer(sub.Dispose)
	})
}

// FlatMap subscribes to fn(v) for every value of src and merges the results.
// It completes once src and every inner sequence have completed; the first
// error from any of them terminates the merged sequence.
func FlatMap[T, U any](src Sequence[T], fn func(T) Sequence[U]) Sequence[U] {
	return New(func(s *Sink[U]) {
		var (
			mu     sync.Mutex
			active = 1
		)
		emit := func(u U) {
			mu.Lock()
			defer mu.Unlock()
			s.Next(u)
		}
		finish := func() {
			mu.Lock()
			active--
			last := active == 0
			mu.Unlock()
			if last {
				s.Complete()
			}
		}

		outer := src.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				active++
				mu.Unlock()
				inner := fn(v).Subscribe(Observer[U]{
					Next:     emit,
					Error:    s.Error,
					Complete: finish,
				})
				s.Defer(inner.Dispose)
			},
			Error:    s.Error,
			Complete: finish,
		})
		s.Defer(outer.Dispose)
	})
}

// Ignore maps every value of src to struct{}.
func Ignore[T any](src Sequence[T]) Sequence[struct{}] {
	return Map(src, func(T) (struct{}, error) { return struct{}{}, nil })
}

func forward[T any](src Sequence[T], s *Sink[T]) {
	sub := src.Subscribe(Observer[T]{
		Next:     func(v T) { s.Next(v) },
		Error:    s.Error,
		Complete: s.Complete,
	})
	s.Defer(sub.Dispose)
}
