package flow

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrEmpty is returned by First when the sequence completes without a value.
var ErrEmpty = errors.New("flow: sequence completed without a value")

// Collect subscribes to s and blocks until it terminates or ctx is done.
func Collect[T any](ctx context.Context, s Sequence[T]) ([]T, error) {
	var (
		mu  sync.Mutex
		out []T
	)
	errc := make(chan error, 1)
	sub := s.SubscribeContext(ctx, Observer[T]{
		Next: func(v T) {
			mu.Lock()
			out = append(out, v)
			mu.Unlock()
		},
		Error:    func(err error) { errc <- err },
		Complete: func() { errc <- nil },
	})
	defer sub.Dispose()

	select {
	case err := <-errc:
		mu.Lock()
		defer mu.Unlock()
		return out, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait subscribes to s, discards its values and blocks until it terminates.
func Wait[T any](ctx context.Context, s Sequence[T]) error {
	errc := make(chan error, 1)
	sub := s.SubscribeContext(ctx, Observer[T]{
		Error:    func(err error) { errc <- err },
		Complete: func() { errc <- nil },
	})
	defer sub.Dispose()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// First blocks until s emits its first value, then disposes the subscription.
func First[T any](ctx context.Context, s Sequence[T]) (T, error) {
	type result struct {
		v   T
		err error
	}
	resc := make(chan result, 1)
	var once sync.Once
	deliver := func(r result) { once.Do(func() { resc <- r }) }

	sub := s.SubscribeContext(ctx, Observer[T]{
		Next:     func(v T) { deliver(result{v: v}) },
		Error:    func(err error) { deliver(result{err: err}) },
		Complete: func() { deliver(result{err: ErrEmpty}) },
	})
	defer sub.Dispose()

	select {
	case r := <-resc:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// All adapts s to a range-over-func iterator. A terminal error is yielded
// once as the final element. Breaking out of the loop disposes the
// subscription.
func All[T any](ctx context.Context, s Sequence[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		type item struct {
			v   T
			err error
			end bool
		}
		ch := make(chan item)
		subc := make(chan *Subscription, 1)
		defer func() { (<-subc).Dispose() }()
		quit := make(chan struct{})
		defer close(quit)
		send := func(it item) {
			select {
			case ch <- it:
			case <-quit:
			}
		}

		// Synchronous sequences emit from inside Subscribe.
		go func() {
			subc <- s.SubscribeContext(ctx, Observer[T]{
				Next:     func(v T) { send(item{v: v}) },
				Error:    func(err error) { send(item{err: err, end: true}) },
				Complete: func() { send(item{end: true}) },
			})
		}()

		var zero T
		for {
			select {
			case it := <-ch:
				if it.end {
					if it.err != nil {
						yield(zero, it.err)
					}
					return
				}
				if !yield(it.v, nil) {
					return
				}
			case <-ctx.Done():
				yield(zero, ctx.Err())
				return
			}
		}
	}
}
