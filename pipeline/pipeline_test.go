package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/encoding/charmap"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/pipeline"
	"github.com/anatolykoptev/go-twitterhub/pipeline/pipelinetest"
	"github.com/anatolykoptev/go-twitterhub/sched"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const testURL = "https://api.example.com/resource"

func newService(t *testing.T, h pipelinetest.Handler) (*pipeline.Service, *pipelinetest.Transport, *sched.Virtual) {
	t.Helper()
	ft := pipelinetest.New(h)
	vs := sched.NewVirtual(epoch)
	svc := pipeline.NewService(pipeline.ServiceConfig{
		Transport: ft,
		Scheduler: vs,
		IdleDelay: time.Second,
	})
	return svc, ft, vs
}

// recorder collects everything an observer receives.
type recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	completed bool
}

func (r *recorder[T]) observer() flow.Observer[T] {
	return flow.Observer[T]{
		Next: func(v T) {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
		},
		Error: func(err error) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		},
		Complete: func() {
			r.mu.Lock()
			r.completed = true
			r.mu.Unlock()
		},
	}
}

func (r *recorder[T]) snapshot() ([]T, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...), r.err, r.completed
}

func TestNoNetworkBeforeSubscribe(t *testing.T) {
	svc, ft, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return pipelinetest.Text(http.StatusOK, "hello"), nil
	})

	seq := svc.CreateGet(testURL, nil).ReadAllText()
	vs.AdvanceBy(time.Minute)
	assert.Empty(t, ft.Requests())

	var rec recorder[string]
	sub := seq.Subscribe(rec.observer())
	defer sub.Dispose()
	assert.Empty(t, ft.Requests(), "create step must be scheduled, not run inline")

	vs.Flush()
	values, err, completed := rec.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, values)
	assert.True(t, completed)
	require.Len(t, ft.Requests(), 1)
	assert.Equal(t, http.MethodGet, ft.Requests()[0].Method)
}

func TestCreateGet_Headers(t *testing.T) {
	svc, ft, vs := newService(t, nil)

	var rec recorder[struct{}]
	svc.CreateGet(testURL, map[string]string{"Authorization": "Bearer x"}).Send().Subscribe(rec.observer())
	vs.Flush()

	values, err, completed := rec.snapshot()
	require.NoError(t, err)
	assert.Len(t, values, 1)
	assert.True(t, completed)
	assert.Equal(t, "Bearer x", ft.Requests()[0].Header().Get("Authorization"))
}

func TestCreatePost_WritesBody(t *testing.T) {
	svc, ft, vs := newService(t, func(r *pipelinetest.Request) (*pipelinetest.Response, error) {
		assert.True(t, r.WriterClosed(), "body must be complete before the response is requested")
		return pipelinetest.Text(http.StatusOK, `{"ok":true}`), nil
	})

	d := svc.CreatePost(testURL, "application/x-www-form-urlencoded", nil, []byte("a=1&b=2"))
	var rec recorder[string]
	d.ReadAllText().Subscribe(rec.observer())
	vs.Flush()

	values, err, _ := rec.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{`{"ok":true}`}, values)

	req := ft.Requests()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "a=1&b=2", req.Body())
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header().Get("Content-Type"))
}

func TestSteps_RunInOrder(t *testing.T) {
	svc, ft, vs := newService(t, nil)

	svc.CreatePost(testURL, "text/plain", nil, []byte("x")).Send().Subscribe(flow.Observer[struct{}]{})

	require.True(t, vs.Step()) // create
	require.Len(t, ft.Requests(), 1)
	req := ft.Requests()[0]
	assert.False(t, req.WriterOpened())

	require.True(t, vs.Step()) // open body
	assert.True(t, req.WriterOpened())
	assert.False(t, req.WriterClosed())

	require.True(t, vs.Step()) // send body
	assert.True(t, req.WriterClosed())
	assert.False(t, req.WasSent())

	require.True(t, vs.Step()) // await response
	assert.True(t, req.WasSent())
}

func TestDispose_ReleasesAcquiredResources(t *testing.T) {
	svc, ft, vs := newService(t, nil)

	var rec recorder[struct{}]
	sub := svc.CreatePost(testURL, "text/plain", nil, []byte("x")).Send().Subscribe(rec.observer())

	require.True(t, vs.Step()) // create
	require.True(t, vs.Step()) // open body
	req := ft.Requests()[0]
	require.True(t, req.WriterOpened())

	sub.Dispose()

	assert.True(t, req.WriterClosed(), "body writer acquired before dispose must be released")
	assert.True(t, req.Aborted(), "request must be aborted")
	assert.Equal(t, 0, vs.Pending(), "no further step may be scheduled")
	vs.AdvanceBy(time.Minute)
	assert.False(t, req.WasSent())
	assert.Empty(t, req.Body())

	values, err, completed := rec.snapshot()
	assert.Empty(t, values)
	assert.NoError(t, err)
	assert.False(t, completed)
}

func TestDispose_WhileResponsePending(t *testing.T) {
	released := make(chan struct{})
	ft := pipelinetest.New(func(r *pipelinetest.Request) (*pipelinetest.Response, error) {
		<-r.Context().Done()
		close(released)
		return nil, r.Context().Err()
	})
	svc := pipeline.NewService(pipeline.ServiceConfig{Transport: ft})

	var rec recorder[string]
	sub := svc.CreateGet(testURL, nil).ReadAllText().Subscribe(rec.observer())
	require.Eventually(t, func() bool { return len(ft.Sent("")) == 1 }, time.Second, time.Millisecond)

	sub.Dispose()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("pending response not cancelled")
	}
	assert.True(t, ft.Requests()[0].Aborted())

	_, err, completed := rec.snapshot()
	assert.NoError(t, err)
	assert.False(t, completed)
}

func TestReadLines(t *testing.T) {
	svc, _, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return pipelinetest.Text(http.StatusOK, "first\nsecond\r\n\nlast"), nil
	})

	var rec recorder[string]
	svc.CreateGet(testURL, nil).ReadLines().Subscribe(rec.observer())
	vs.Flush()

	values, err, completed := rec.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "", "last"}, values)
	assert.True(t, completed)
}

func TestReadBytes(t *testing.T) {
	svc, _, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return pipelinetest.Text(http.StatusOK, "abc"), nil
	})

	var rec recorder[byte]
	svc.CreateGet(testURL, nil).ReadBytes().Subscribe(rec.observer())
	vs.Flush()

	values, err, completed := rec.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), values)
	assert.True(t, completed)
}

func TestReadLines_WaitsForMoreData(t *testing.T) {
	stream := &pipelinetest.Stream{}
	resp := &pipelinetest.Response{Status: http.StatusOK, Headers: http.Header{}, Reader: stream}
	svc, _, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return resp, nil
	})

	var rec recorder[string]
	sub := svc.CreateGet(testURL, nil).ReadLines(pipeline.StopAtEOF(false)).Subscribe(rec.observer())

	stream.WriteLine("one")
	stream.Write("tw")
	vs.Flush()
	values, _, completed := rec.snapshot()
	assert.Equal(t, []string{"one"}, values)
	assert.False(t, completed)

	stream.WriteLine("o")
	vs.AdvanceBy(time.Second)
	values, _, completed = rec.snapshot()
	assert.Equal(t, []string{"one", "two"}, values)
	assert.False(t, completed)
	assert.Equal(t, 1, vs.Pending(), "idle re-read stays scheduled")

	sub.Dispose()
	assert.True(t, resp.Closed())
	assert.True(t, stream.Closed())
	assert.Equal(t, 0, vs.Pending())
}

func TestReadAllText_Encoding(t *testing.T) {
	svc, _, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return pipelinetest.Text(http.StatusOK, "caf\xe9"), nil
	})

	var rec recorder[string]
	svc.CreateGet(testURL, nil).ReadAllText(pipeline.WithEncoding(charmap.ISO8859_1)).Subscribe(rec.observer())
	vs.Flush()

	values, err, _ := rec.snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"café"}, values)
}

func TestStatusError(t *testing.T) {
	var resp *pipelinetest.Response
	svc, _, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		resp = pipelinetest.Text(http.StatusTooManyRequests, `{"errors":[{"code":88}]}`)
		resp.Headers.Set("X-Rate-Limit-Reset", "1700000000")
		return resp, nil
	})

	var rec recorder[string]
	svc.CreateGet(testURL, nil).ReadAllText().Subscribe(rec.observer())
	vs.Flush()

	_, err, completed := rec.snapshot()
	assert.False(t, completed)
	var se *pipeline.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, `{"errors":[{"code":88}]}`, string(se.Body))
	assert.Equal(t, "1700000000", se.Header.Get("X-Rate-Limit-Reset"))
	assert.True(t, resp.Closed())
}

func TestTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("create", func(t *testing.T) {
		svc, ft, vs := newService(t, nil)
		ft.NewRequestErr = boom
		var rec recorder[string]
		svc.CreateGet(testURL, nil).ReadAllText().Subscribe(rec.observer())
		vs.Flush()
		_, err, _ := rec.snapshot()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("response", func(t *testing.T) {
		svc, ft, vs := newService(t, func(*pipelinetest.Request) (*pipelinetest.Response, error) {
			return nil, boom
		})
		var rec recorder[string]
		svc.CreateGet(testURL, nil).ReadAllText().Subscribe(rec.observer())
		vs.Flush()
		_, err, _ := rec.snapshot()
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), testURL)
		assert.True(t, ft.Requests()[0].Aborted(), "request released after failure")
	})
}

func TestDefaultScheduler(t *testing.T) {
	ft := pipelinetest.New(func(*pipelinetest.Request) (*pipelinetest.Response, error) {
		return pipelinetest.Text(http.StatusOK, "a\nb\n"), nil
	})
	svc := pipeline.NewService(pipeline.ServiceConfig{Transport: ft})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lines, err := flow.Collect(ctx, svc.CreateGet(testURL, nil).ReadLines())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestWithScheduler_Override(t *testing.T) {
	svc, ft, vs := newService(t, nil)
	other := sched.NewVirtual(epoch)

	svc.CreateGet(testURL, nil).Send(pipeline.WithScheduler(other)).Subscribe(flow.Observer[struct{}]{})
	vs.Flush()
	assert.Empty(t, ft.Requests())
	other.Flush()
	assert.Len(t, ft.Requests(), 1)
}
