package popup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/ragassist/cli/internal/logging"
	"github.com/ragassist/cli/pkg/process"
)

type FakeProcessor struct {
	ProcessFunc func(ctx context.Context, text string) (*process.Result, error)

	mu    sync.Mutex
	calls []string
}

func (f *FakeProcessor) Process(ctx context.Context, text string) (*process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.ProcessFunc != nil {
		return f.ProcessFunc(ctx, text)
	}
	return &process.Result{Text: text, HasResponse: true}, nil
}

func (f *FakeProcessor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingDisplay struct {
	mu     sync.Mutex
	states []State
}

func (d *recordingDisplay) Show(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, s)
}

func (d *recordingDisplay) States() []State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]State(nil), d.states...)
}

type recordingNotifier struct {
	alerts []string
}

func (n *recordingNotifier) Alert(msg string) {
	n.alerts = append(n.alerts, msg)
}

type fixture struct {
	ctrl     *Controller
	proc     *FakeProcessor
	display  *recordingDisplay
	notifier *recordingNotifier
	logs     *bytes.Buffer
}

func newFixture(fn func(ctx context.Context, text string) (*process.Result, error), opts ...Option) *fixture {
	f := &fixture{
		proc:     &FakeProcessor{ProcessFunc: fn},
		display:  &recordingDisplay{},
		notifier: &recordingNotifier{},
		logs:     &bytes.Buffer{},
	}
	opts = append([]Option{WithLogger(logging.New(f.logs, pterm.LogLevelDebug))}, opts...)
	f.ctrl = New(f.proc, f.display, f.notifier, opts...)
	return f
}

func newControllerFor(t *testing.T, endpoint string) (*Controller, *recordingDisplay) {
	t.Helper()
	display := &recordingDisplay{}
	ctrl := New(process.New(endpoint), display, &recordingNotifier{},
		WithLogger(logging.New(&bytes.Buffer{}, pterm.LogLevelDisabled)))
	return ctrl, display
}

var leakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

func TestSubmit_BlankInputAlertsWithoutRequest(t *testing.T) {
	for _, input := range []string{"", " ", "   ", "\t\n", " \r\n\t "} {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			f := newFixture(nil)

			err := f.ctrl.Submit(context.Background(), input)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, []string{"Please enter some text"}, f.notifier.alerts)
			assert.Empty(t, f.proc.Calls())
			assert.Empty(t, f.display.States())
			assert.False(t, f.ctrl.State().Visible())
		})
	}
}

func TestSubmit_BlankInputKeepsPreviousResult(t *testing.T) {
	f := newFixture(nil)
	require.NoError(t, f.ctrl.Submit(context.Background(), "first"))
	before := f.ctrl.State()

	err := f.ctrl.Submit(context.Background(), "  ")

	assert.Error(t, err)
	assert.Equal(t, before, f.ctrl.State())
	assert.Len(t, f.display.States(), 2)
}

func TestSubmit_PendingThenSuccess(t *testing.T) {
	var pendingSeen State
	var f *fixture
	f = newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		pendingSeen = f.ctrl.State()
		return &process.Result{Text: "answer", HasResponse: true}, nil
	})

	require.NoError(t, f.ctrl.Submit(context.Background(), "  what is go?  "))

	assert.Equal(t, []string{"what is go?"}, f.proc.Calls())
	assert.Equal(t, Pending, pendingSeen.Phase)
	assert.Equal(t, "Processing...", pendingSeen.Content)

	states := f.display.States()
	require.Len(t, states, 2)
	assert.Equal(t, Pending, states[0].Phase)
	assert.Equal(t, "Processing...", states[0].Content)
	assert.Equal(t, Success, states[1].Phase)
	assert.Equal(t, "answer", states[1].Content)
	assert.NotNil(t, states[1].Result)
	assert.Equal(t, states[0].Submission, states[1].Submission)
}

func TestSubmit_FailuresRenderWithErrorPrefix(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"network", &process.NetworkError{StatusCode: 500}, "Error: Network response was not ok"},
		{"transport", &process.TransportError{Err: errors.New("connection refused")}, "Error: connection refused"},
		{"parse", &process.ParseError{Err: errors.New("unexpected EOF")}, "Error: invalid JSON response: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
				return nil, tt.err
			})

			err := f.ctrl.Submit(context.Background(), "q")

			assert.NoError(t, err, "request failures stay inside the controller")
			st := f.ctrl.State()
			assert.Equal(t, Failed, st.Phase)
			assert.Equal(t, tt.expected, st.Content)
			assert.Same(t, tt.err, st.Err)
			assert.Contains(t, f.logs.String(), "request failed")
		})
	}
}

func TestSubmit_AgainstServer(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		phase    Phase
		expected string
	}{
		{"response field", http.StatusOK, `{"response": "X"}`, Success, "X"},
		{"no response field", http.StatusOK, `{"foo": "bar"}`, Success, `{"foo":"bar"}`},
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`, Failed, "Error: Network response was not ok"},
		{"bad request", http.StatusBadRequest, `{"error": "No text provided"}`, Failed, "Error: Network response was not ok"},
		{"not json", http.StatusOK, `plain text`, Failed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ctrl, display := newControllerFor(t, srv.URL+"/process")
			require.NoError(t, ctrl.Submit(context.Background(), "hello"))

			assert.Equal(t, int32(1), requests.Load())
			states := display.States()
			require.Len(t, states, 2)
			assert.Equal(t, Pending, states[0].Phase)
			st := ctrl.State()
			assert.Equal(t, tt.phase, st.Phase)
			if tt.expected != "" {
				assert.Equal(t, tt.expected, st.Content)
			} else {
				assert.True(t, strings.HasPrefix(st.Content, "Error: "))
			}
		})
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctrl, _ := newControllerFor(t, "http://"+addr+"/process")
	require.NoError(t, ctrl.Submit(context.Background(), "hello"))

	st := ctrl.State()
	assert.Equal(t, Failed, st.Phase)
	var transportErr *process.TransportError
	require.ErrorAs(t, st.Err, &transportErr)
	assert.Equal(t, "Error: "+transportErr.Error(), st.Content)
}

func TestSubmit_SameInputTwiceIsStable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response": "same every time"}`))
	}))
	defer srv.Close()

	ctrl, _ := newControllerFor(t, srv.URL)

	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	first := ctrl.State().Content
	require.NoError(t, ctrl.Submit(context.Background(), "q"))
	second := ctrl.State().Content

	assert.Equal(t, "same every time", first)
	assert.Equal(t, first, second)
}

func TestSubmit_StaleResultIsDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	started := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		if text == "slow" {
			close(started)
			<-release
		}
		return &process.Result{Text: "reply to " + text, HasResponse: true}, nil
	})

	require.NoError(t, f.ctrl.SubmitAsync(context.Background(), "slow"))
	<-started
	require.NoError(t, f.ctrl.Submit(context.Background(), "fast"))
	close(release)
	f.ctrl.Wait()

	st := f.ctrl.State()
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, "reply to fast", st.Content)
	assert.Equal(t, uint64(2), st.Submission)

	for _, s := range f.display.States() {
		assert.NotEqual(t, "reply to slow", s.Content)
	}
	assert.Contains(t, f.logs.String(), "discarding stale result")
}

func TestSubmit_StaleFailureIsStillLogged(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	started := make(chan struct{})
	release := make(chan struct{})
	logs := &bytes.Buffer{}
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		if text == "slow" {
			close(started)
			<-release
			return nil, &process.NetworkError{StatusCode: 500}
		}
		return &process.Result{Text: "reply to " + text, HasResponse: true}, nil
	}, WithLogger(logging.New(logs, pterm.LogLevelWarn)))

	require.NoError(t, f.ctrl.SubmitAsync(context.Background(), "slow"))
	<-started
	require.NoError(t, f.ctrl.Submit(context.Background(), "fast"))
	close(release)
	f.ctrl.Wait()

	st := f.ctrl.State()
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, "reply to fast", st.Content)
	for _, s := range f.display.States() {
		assert.NotEqual(t, Failed, s.Phase)
	}
	assert.Contains(t, logs.String(), "request failed")
	assert.Contains(t, logs.String(), "Network response was not ok")
	assert.NotContains(t, logs.String(), "discarding stale result")
}

func TestSubmit_GuardPolicyLetsOlderRequestFinish(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	started := make(chan struct{})
	release := make(chan struct{})
	var slowErr error
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		if text == "slow" {
			close(started)
			<-release
			slowErr = ctx.Err()
		}
		return &process.Result{Text: text}, nil
	})

	require.NoError(t, f.ctrl.SubmitAsync(context.Background(), "slow"))
	<-started
	require.NoError(t, f.ctrl.Submit(context.Background(), "fast"))
	close(release)
	f.ctrl.Wait()

	assert.NoError(t, slowErr)
	assert.Equal(t, "fast", f.ctrl.State().Content)
}

func TestSubmit_CancelPolicyCancelsOlderRequest(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	started := make(chan struct{})
	var slowErr error
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		if text == "slow" {
			close(started)
			<-ctx.Done()
			slowErr = ctx.Err()
			return nil, &process.TransportError{Err: ctx.Err()}
		}
		return &process.Result{Text: text}, nil
	}, WithOverlapPolicy(CancelOverlap))

	require.NoError(t, f.ctrl.SubmitAsync(context.Background(), "slow"))
	<-started
	require.NoError(t, f.ctrl.Submit(context.Background(), "fast"))
	f.ctrl.Wait()

	assert.ErrorIs(t, slowErr, context.Canceled)
	st := f.ctrl.State()
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, "fast", st.Content)
	for _, s := range f.display.States() {
		assert.NotEqual(t, Failed, s.Phase)
	}
}

func TestSubmit_ConcurrentSubmitsSettleOnNewest(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	const n = 20
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		var i int
		_, _ = fmt.Sscanf(text, "q%d", &i)
		time.Sleep(time.Duration((n-i)%5) * time.Millisecond)
		return &process.Result{Text: text, HasResponse: true}, nil
	})

	var g errgroup.Group
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("q%d", i)
		g.Go(func() error {
			return f.ctrl.Submit(context.Background(), text)
		})
	}
	require.NoError(t, g.Wait())

	st := f.ctrl.State()
	assert.Equal(t, Success, st.Phase)
	assert.Equal(t, uint64(n), st.Submission)

	states := f.display.States()
	assert.Equal(t, st, states[len(states)-1], "the newest submit renders last")
	assert.Len(t, f.proc.Calls(), n)
}

func TestSubmit_CallerContextCancelShowsError(t *testing.T) {
	f := newFixture(func(ctx context.Context, text string) (*process.Result, error) {
		<-ctx.Done()
		return nil, &process.TransportError{Err: ctx.Err()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.ctrl.Submit(ctx, "q"))

	assert.Equal(t, "Error: context canceled", f.ctrl.State().Content)
}

func TestNew_StartsHidden(t *testing.T) {
	f := newFixture(nil)

	st := f.ctrl.State()
	assert.Equal(t, Hidden, st.Phase)
	assert.False(t, st.Visible())
	assert.Equal(t, "hidden", st.Phase.String())
}
