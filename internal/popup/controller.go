// Package popup drives the response region: it validates input, sends it to
// the processing server and renders whatever comes back.
package popup

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/ragassist/cli/internal/logging"
	"github.com/ragassist/cli/pkg/process"
)

// Processor sends validated text to the server.
type Processor interface {
	Process(ctx context.Context, text string) (*process.Result, error)
}

// Display is the response region. Show is called with the controller's lock
// held, so implementations must not call back into the Controller.
type Display interface {
	Show(State)
}

// Notifier is the blocking alert channel used for invalid input.
type Notifier interface {
	Alert(msg string)
}

// OverlapPolicy decides what happens to a request that is still in flight
// when a newer submit starts.
type OverlapPolicy string

const (
	// GuardOverlap lets older requests finish but drops their results.
	GuardOverlap OverlapPolicy = "guard"
	// CancelOverlap cancels the older request's context as well.
	CancelOverlap OverlapPolicy = "cancel"
)

// Controller owns the response region. It is safe for concurrent use; the
// most recent validated submit always wins the display.
type Controller struct {
	processor Processor
	display   Display
	notifier  Notifier
	logger    *pterm.Logger
	policy    OverlapPolicy

	inflight sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc
	state      State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostic logger. Defaults to the shared logger.
func WithLogger(l *pterm.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOverlapPolicy sets how overlapping submits are handled. Defaults to GuardOverlap.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(c *Controller) {
		if p != "" {
			c.policy = p
		}
	}
}

// New wires a controller. The region starts hidden.
func New(p Processor, d Display, n Notifier, opts ...Option) *Controller {
	c := &Controller{
		processor: p,
		display:   d,
		notifier:  n,
		logger:    logging.Get(),
		policy:    GuardOverlap,
		state:     State{Phase: Hidden},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// submission carries one validated submit from dispatch to settlement.
type submission struct {
	id     string
	gen    uint64
	text   string
	ctx    context.Context
	cancel context.CancelFunc
}

// Submit validates input, shows the pending placeholder, performs the request
// and renders the outcome. It only returns an error for blank input
// (*ValidationError); request failures end up in the response region.
func (c *Controller) Submit(ctx context.Context, input string) error {
	sub, err := c.begin(ctx, input)
	if err != nil {
		return err
	}
	c.run(sub)
	return nil
}

// SubmitAsync is Submit without waiting for the server. Validation and the
// pending placeholder still happen before it returns. Use Wait to block until
// every dispatched request has settled.
func (c *Controller) SubmitAsync(ctx context.Context, input string) error {
	sub, err := c.begin(ctx, input)
	if err != nil {
		return err
	}
	go c.run(sub)
	return nil
}

// Wait blocks until all in-flight submits have settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// State returns a snapshot of the response region.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) begin(ctx context.Context, input string) (*submission, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		if c.notifier != nil {
			c.notifier.Alert(EmptyInputMessage)
		}
		return nil, &ValidationError{Input: input}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	sub := &submission{id: uuid.NewString(), text: text, ctx: reqCtx, cancel: cancel}

	c.inflight.Add(1)

	c.mu.Lock()
	c.generation++
	sub.gen = c.generation
	if c.policy == CancelOverlap && c.cancelPrev != nil {
		c.cancelPrev()
	}
	c.cancelPrev = cancel
	c.setLocked(State{Phase: Pending, Content: PendingMessage, Submission: sub.gen})
	c.mu.Unlock()

	c.logger.Debug("submitting text", c.logger.Args(
		"submission", sub.id,
		"generation", sub.gen,
		"chars", len(text),
	))
	return sub, nil
}

func (c *Controller) run(sub *submission) {
	defer c.inflight.Done()
	defer sub.cancel()

	res, err := c.processor.Process(sub.ctx, sub.text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if sub.gen != c.generation {
		if err != nil {
			c.logger.Error("request failed", c.logger.Args(
				"submission", sub.id,
				"generation", sub.gen,
				"stale", true,
				"error", err.Error(),
			))
		}
		c.logger.Debug("discarding stale result", c.logger.Args(
			"submission", sub.id,
			"generation", sub.gen,
			"latest", c.generation,
		))
		return
	}
	c.cancelPrev = nil

	if err != nil {
		c.logger.Error("request failed", c.logger.Args(
			"submission", sub.id,
			"generation", sub.gen,
			"error", err.Error(),
		))
		c.setLocked(State{Phase: Failed, Content: ErrorPrefix + err.Error(), Submission: sub.gen, Err: err})
		return
	}

	if res == nil {
		res = &process.Result{}
	}
	c.logger.Debug("request succeeded", c.logger.Args(
		"submission", sub.id,
		"generation", sub.gen,
		"has_response", res.HasResponse,
	))
	c.setLocked(State{Phase: Success, Content: res.Text, Submission: sub.gen, Result: res})
}

func (c *Controller) setLocked(s State) {
	c.state = s
	if c.display != nil {
		c.display.Show(s)
	}
}
