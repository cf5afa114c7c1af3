package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/transform"

	"github.com/anatolykoptev/go-twitterhub/flow"
)

// errWriterReleased is returned when the exchange was disposed before its
// body could be written.
var errWriterReleased = errors.New("request body writer released")

// step tells the receive loop what to do next.
type step int

const (
	stepMore step = iota // read again right away
	stepIdle             // nothing available yet, read again after IdleDelay
	stepDone             // complete the sequence
)

// receiver produces the next unit of a response.
type receiver func() (step, error)

// transformer adapts a response for receiving. A nil receiver completes the
// sequence right after the transform.
type transformer[T any] func(resp RawResponse, sink *flow.Sink[T]) (receiver, error)

// Send runs d and emits a single struct{} once the response has arrived.
func (s *Service) Send(d Descriptor, opts ...Option) flow.Sequence[struct{}] {
	return exchange(s, d, s.options(opts), func(_ RawResponse, sink *flow.Sink[struct{}]) (receiver, error) {
		sink.Next(struct{}{})
		return nil, nil
	})
}

// SendAndReadBytes runs d and emits the response body one byte at a time.
func (s *Service) SendAndReadBytes(d Descriptor, opts ...Option) flow.Sequence[byte] {
	o := s.options(opts)
	return exchange(s, d, o, func(resp RawResponse, sink *flow.Sink[byte]) (receiver, error) {
		r := bufio.NewReader(resp.Body())
		return func() (step, error) {
			b, err := r.ReadByte()
			switch {
			case err == nil:
				sink.Next(b)
				return stepMore, nil
			case errors.Is(err, io.EOF):
				return o.atEOF(), nil
			default:
				return stepDone, err
			}
		}, nil
	})
}

// SendAndReadLines runs d and emits the decoded response body one line at a
// time, without line terminators. A trailing line without a terminator is
// emitted at end of stream when StopAtEOF is set.
func (s *Service) SendAndReadLines(d Descriptor, opts ...Option) flow.Sequence[string] {
	o := s.options(opts)
	return exchange(s, d, o, func(resp RawResponse, sink *flow.Sink[string]) (receiver, error) {
		r := bufio.NewReader(o.textReader(resp.Body()))
		var partial strings.Builder
		return func() (step, error) {
			chunk, err := r.ReadString('\n')
			partial.WriteString(chunk)
			switch {
			case err == nil:
				line := strings.TrimSuffix(strings.TrimSuffix(partial.String(), "\n"), "\r")
				partial.Reset()
				sink.Next(line)
				return stepMore, nil
			case errors.Is(err, io.EOF):
				if o.stopAtEOF && partial.Len() > 0 {
					sink.Next(partial.String())
					partial.Reset()
				}
				return o.atEOF(), nil
			default:
				return stepDone, err
			}
		}, nil
	})
}

// SendAndReadAllText runs d and emits the whole decoded response body once.
func (s *Service) SendAndReadAllText(d Descriptor, opts ...Option) flow.Sequence[string] {
	o := s.options(opts)
	return exchange(s, d, o, func(resp RawResponse, sink *flow.Sink[string]) (receiver, error) {
		r := o.textReader(resp.Body())
		return func() (step, error) {
			b, err := io.ReadAll(r)
			if err != nil {
				return stepDone, err
			}
			sink.Next(string(b))
			return stepDone, nil
		}, nil
	})
}

func (o options) atEOF() step {
	if o.stopAtEOF {
		return stepDone
	}
	return stepIdle
}

func (o options) textReader(r io.Reader) io.Reader {
	if o.encoding == nil {
		return r
	}
	return transform.NewReader(r, o.encoding.NewDecoder())
}

// run holds the state of one subscription to an exchange.
type run[T any] struct {
	svc     *Service
	d       Descriptor
	opts    options
	tf      transformer[T]
	sink    *flow.Sink[T]
	pending flow.Slot
}

func exchange[T any](svc *Service, d Descriptor, opts options, tf transformer[T]) flow.Sequence[T] {
	return flow.New(func(sink *flow.Sink[T]) {
		x := &run[T]{svc: svc, d: d, opts: opts, tf: tf, sink: sink}
		sink.Defer(x.pending.Dispose)
		x.schedule(0, "create", x.create)
	})
}

// schedule queues the next step unless the subscription has ended.
func (x *run[T]) schedule(delay time.Duration, name string, fn func()) {
	if x.sink.Disposed() {
		return
	}
	x.pending.Set(x.opts.scheduler.Schedule(delay, func() {
		if x.sink.Disposed() {
			return
		}
		x.svc.cfg.Logger.Debug("pipeline step", slog.String("step", name), slog.String("url", x.d.URL))
		fn()
	}))
}

func (x *run[T]) fail(op string, err error) {
	if x.sink.Disposed() {
		return
	}
	x.svc.cfg.Logger.Debug("pipeline failed",
		slog.String("step", op),
		slog.String("url", x.d.URL),
		slog.Any("error", err))
	var se *StatusError
	if errors.As(err, &se) {
		x.sink.Error(err)
		return
	}
	x.sink.Error(fmt.Errorf("%s %s: %w", op, x.d.URL, err))
}

func (x *run[T]) create() {
	req, err := x.d.Factory(x.sink.Context())
	if err != nil {
		x.fail("create request", err)
		return
	}
	x.sink.Defer(req.Abort)

	if x.d.Body != nil {
		x.schedule(0, "open body", func() { x.openBody(req) })
		return
	}
	x.schedule(0, "await response", func() { x.awaitResponse(req) })
}

func (x *run[T]) openBody(req RawRequest) {
	w, err := req.BodyWriter()
	if err != nil {
		x.fail("open request body", err)
		return
	}
	gw := &guardedWriter{w: w}
	x.sink.Defer(gw.release)
	x.schedule(0, "send body", func() { x.sendBody(req, gw) })
}

func (x *run[T]) sendBody(req RawRequest, gw *guardedWriter) {
	if err := gw.writeAndClose(x.d.Body); err != nil {
		x.fail("write request body", err)
		return
	}
	x.schedule(0, "await response", func() { x.awaitResponse(req) })
}

func (x *run[T]) awaitResponse(req RawRequest) {
	resp, err := req.Response()
	if err != nil {
		x.fail("await response", err)
		return
	}
	x.sink.Defer(func() { _ = resp.Close() })

	if code := resp.StatusCode(); code < 200 || code > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body(), maxErrorBody))
		x.fail("await response", &StatusError{StatusCode: code, Header: resp.Header(), Body: body})
		return
	}
	x.schedule(0, "transform", func() { x.prepareReceive(resp) })
}

func (x *run[T]) prepareReceive(resp RawResponse) {
	recv, err := x.tf(resp, x.sink)
	if err != nil {
		x.fail("transform response", err)
		return
	}
	if recv == nil {
		x.sink.Complete()
		return
	}
	x.schedule(0, "receive", func() { x.receive(recv) })
}

func (x *run[T]) receive(recv receiver) {
	st, err := recv()
	if err != nil {
		x.fail("read response", err)
		return
	}
	switch st {
	case stepDone:
		x.sink.Complete()
	case stepIdle:
		x.schedule(x.svc.cfg.IdleDelay, "receive", func() { x.receive(recv) })
	default:
		x.schedule(0, "receive", func() { x.receive(recv) })
	}
}

// guardedWriter keeps the body writer open until an in-progress write has
// finished, even when the subscription is disposed concurrently.
type guardedWriter struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func (g *guardedWriter) writeAndClose(b []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errWriterReleased
	}
	g.closed = true
	if _, err := g.w.Write(b); err != nil {
		_ = g.w.Close()
		return err
	}
	return g.w.Close()
}

func (g *guardedWriter) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	_ = g.w.Close()
}
