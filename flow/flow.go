// Package flow implements lazily started asynchronous sequences with explicit
// disposal. A Sequence does nothing until it is subscribed; every
// subscription owns a context and a stack of release actions that run in
// reverse order when the subscription is disposed or terminates.
package flow

import (
	"context"
	"sync"
)

// Observer receives the values and the terminal signal of a subscription.
// Nil callbacks are ignored.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Sequence is a cold asynchronous sequence of T.
type Sequence[T any] struct {
	subscribe func(*Sink[T])
}

// New returns a Sequence that runs fn for every subscription. fn must not
// block; it starts work and returns, emitting later through the sink.
func New[T any](fn func(*Sink[T])) Sequence[T] {
	return Sequence[T]{subscribe: fn}
}

// Subscribe starts the sequence and returns its disposal token.
func (s Sequence[T]) Subscribe(o Observer[T]) *Subscription {
	return s.SubscribeContext(context.Background(), o)
}

// SubscribeContext starts the sequence and disposes the subscription when ctx
// is done.
func (s Sequence[T]) SubscribeContext(ctx context.Context, o Observer[T]) *Subscription {
	sub := newSubscription(ctx)
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, sub.Dispose)
		sub.Defer(func() { stop() })
	}

	sink := &Sink[T]{sub: sub, obs: o}
	if s.subscribe == nil {
		sink.Complete()
		return sub
	}
	s.subscribe(sink)
	return sub
}

// Subscription is the disposal token of one subscription.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	releases []func()
	disposed bool

	doneOnce sync.Once
	done     chan struct{}
}

func newSubscription(parent context.Context) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Context is cancelled when the subscription is disposed or terminates.
func (s *Subscription) Context() context.Context { return s.ctx }

// Done is closed once the subscription has been disposed or its terminal
// signal has been delivered.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Disposed reports whether the subscription has been released.
func (s *Subscription) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Defer pushes a release action. Actions run once, last pushed first. On an
// already disposed subscription release runs immediately.
func (s *Subscription) Defer(release func()) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		release()
		return
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
}

// Dispose cancels the subscription and releases everything it acquired.
// It is safe to call more than once and from any goroutine.
func (s *Subscription) Dispose() {
	s.release()
	s.finish()
}

func (s *Subscription) release() bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	s.disposed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	s.cancel()
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	return true
}

func (s *Subscription) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Sink is the producer side of a subscription.
type Sink[T any] struct {
	sub *Subscription
	obs Observer[T]

	mu      sync.Mutex
	stopped bool
}

// Context is cancelled when the subscription ends.
func (s *Sink[T]) Context() context.Context { return s.sub.ctx }

// Defer pushes a release action onto the subscription's stack.
func (s *Sink[T]) Defer(release func()) { s.sub.Defer(release) }

// Disposed reports whether the subscription has ended. Producers check it
// before starting the next unit of work.
func (s *Sink[T]) Disposed() bool { return s.sub.Disposed() }

// Next delivers v. It reports false once the subscription has ended.
func (s *Sink[T]) Next(v T) bool {
	s.mu.Lock()
	live := !s.stopped
	s.mu.Unlock()
	if !live || s.sub.Disposed() {
		return false
	}
	if s.obs.Next != nil {
		s.obs.Next(v)
	}
	return true
}

// Error terminates the subscription with err. Resources are released before
// the observer is notified.
func (s *Sink[T]) Error(err error) {
	if !s.stop() {
		return
	}
	if s.sub.release() && s.obs.Error != nil {
		s.obs.Error(err)
	}
	s.sub.finish()
}

// Complete terminates the subscription normally.
func (s *Sink[T]) Complete() {
	if !s.stop() {
		return
	}
	if s.sub.release() && s.obs.Complete != nil {
		s.obs.Complete()
	}
	s.sub.finish()
}

func (s *Sink[T]) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return true
}

// Slot holds the release action of whatever a producer is currently waiting
// on, such as a scheduled step or an inner subscription.
type Slot struct {
	mu       sync.Mutex
	release  func()
	disposed bool
}

// Set replaces the current release action without running it. On a disposed
// slot release runs immediately.
func (s *Slot) Set(release func()) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		release()
		return
	}
	s.release = release
	s.mu.Unlock()
}

// Dispose runs the current release action and rejects future ones.
func (s *Slot) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}
