package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSequence_LazyUntilSubscribe(t *testing.T) {
	started := 0
	seq := New(func(s *Sink[int]) {
		started++
		s.Next(1)
		s.Complete()
	})
	assert.Equal(t, 0, started)

	got, err := Collect(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, 1, started)
}

func TestSubscription_ReleasesInReverseOrder(t *testing.T) {
	var order []string
	var sink *Sink[int]
	sub := New(func(s *Sink[int]) {
		sink = s
		s.Defer(func() { order = append(order, "request") })
		s.Defer(func() { order = append(order, "writer") })
		s.Defer(func() { order = append(order, "response") })
	}).Subscribe(Observer[int]{})

	assert.NoError(t, sink.Context().Err())
	sub.Dispose()
	sub.Dispose()

	assert.Equal(t, []string{"response", "writer", "request"}, order)
	assert.ErrorIs(t, sink.Context().Err(), context.Canceled)
	assert.True(t, sink.Disposed())
	assert.False(t, sink.Next(1))

	ranLate := false
	sink.Defer(func() { ranLate = true })
	assert.True(t, ranLate, "release pushed after disposal runs immediately")

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Dispose")
	}
}

func TestSink_TerminalOnce(t *testing.T) {
	var errs, completes int
	released := false
	New(func(s *Sink[int]) {
		s.Defer(func() { released = true })
		s.Error(errors.New("boom"))
		s.Error(errors.New("again"))
		s.Complete()
		assert.False(t, s.Next(1))
	}).Subscribe(Observer[int]{
		Error:    func(error) { errs++ },
		Complete: func() { completes++ },
	})

	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, completes)
	assert.True(t, released)
}

func TestSink_ReleaseBeforeNotify(t *testing.T) {
	released := false
	New(func(s *Sink[int]) {
		s.Defer(func() { released = true })
		s.Complete()
	}).Subscribe(Observer[int]{
		Complete: func() { assert.True(t, released) },
	})
}

func TestDisposedSubscriptionGetsNoTerminal(t *testing.T) {
	var sink *Sink[int]
	called := false
	sub := New(func(s *Sink[int]) { sink = s }).Subscribe(Observer[int]{
		Error:    func(error) { called = true },
		Complete: func() { called = true },
	})
	sub.Dispose()
	sink.Error(errors.New("late"))
	assert.False(t, called)
}

func TestMapFilter(t *testing.T) {
	seq := Map(Filter(Just(1, 2, 3, 4, 5), func(v int) bool { return v%2 == 1 }),
		func(v int) (int, error) { return v * 10, nil })

	got, err := Collect(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 30, 50}, got)
}

func TestMap_ErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	seq := Map(Just(1, 2, 3), func(v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})

	got, err := Collect(context.Background(), seq)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, got)
}

func TestFlatMap(t *testing.T) {
	seq := FlatMap(Just("a", "b"), func(s string) Sequence[string] {
		return Just(s+"1", s+"2")
	})
	got, err := Collect(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, got)
}

func TestFlatMap_InnerErrorAndDispose(t *testing.T) {
	boom := errors.New("boom")
	innerReleased := false
	seq := FlatMap(Just(1), func(int) Sequence[int] {
		return New(func(s *Sink[int]) {
			s.Defer(func() { innerReleased = true })
			s.Error(boom)
		})
	})
	_, err := Collect(context.Background(), seq)
	assert.ErrorIs(t, err, boom)
	assert.True(t, innerReleased)
}

func TestDefer_BuildsPerSubscription(t *testing.T) {
	n := 0
	seq := Defer(func() Sequence[int] {
		n++
		return Just(n)
	})
	a, err := First(context.Background(), seq)
	require.NoError(t, err)
	b, err := First(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestFirst_Empty(t *testing.T) {
	_, err := First(context.Background(), Just[int]())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestWait_ContextCancel(t *testing.T) {
	released := make(chan struct{})
	never := New(func(s *Sink[int]) {
		s.Defer(func() { close(released) })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := Wait(ctx, never)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("resources not released after context cancellation")
	}
}

func TestAll(t *testing.T) {
	var got []int
	for v, err := range All(context.Background(), Just(1, 2, 3)) {
		require.NoError(t, err)
		got = append(got, v)
		if v == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, got)

	boom := errors.New("boom")
	var last error
	for _, err := range All(context.Background(), Fail[int](boom)) {
		last = err
	}
	assert.ErrorIs(t, last, boom)
}

func TestSlot(t *testing.T) {
	var calls []string
	var s Slot
	s.Set(func() { calls = append(calls, "first") })
	s.Set(func() { calls = append(calls, "second") })
	s.Dispose()
	s.Dispose()
	s.Set(func() { calls = append(calls, "late") })

	assert.Equal(t, []string{"second", "late"}, calls)
}
