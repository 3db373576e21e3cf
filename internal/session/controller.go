// Package session owns the in-memory message list for the active
// conversation and orchestrates the exchange lifecycle: send, placeholder,
// stream or fallback JSON, finalize, retry, cancellation.
//
// Only one exchange may be outstanding at a time; starting a new one always
// supersedes the previous one. Every mutation driven by network callbacks
// is gated on the exchange's correlation id, so late-arriving chunks from a
// superseded exchange are discarded instead of applied.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"ContraChat/internal/agent"
	"ContraChat/internal/cache"
	"ContraChat/internal/model"
	"ContraChat/internal/phase"
)

// DebounceDelay batches persistence writes during streaming, where content
// changes many times per second.
const DebounceDelay = 300 * time.Millisecond

// Options configures a Controller.
type Options struct {
	// ConversationID correlates requests server-side. Generated when empty.
	ConversationID string

	// InitialMessage, when set, is sent exactly once per session lifetime
	// via SendInitial.
	InitialMessage string

	// Resume restores the message list from the active-conversation cache.
	Resume bool

	// OnUpdate is invoked after every visible state change. Optional.
	OnUpdate func()

	// OnPhase receives loading-phase labels while awaiting a response.
	// Optional.
	OnPhase func(label string)
}

// Controller is the conversation session controller.
type Controller struct {
	mu sync.Mutex

	agent  *agent.Client
	cache  *cache.Cache
	phases *phase.Simulator
	logger *slog.Logger
	meter  metric.Meter

	conversationID string
	messages       []model.Message
	awaiting       bool
	lastUserText   string
	lastErr        error

	// activeRequest is the correlation id of the in-flight exchange, empty
	// when idle. It is the liveness token every callback checks before
	// mutating state.
	activeRequest   string
	streamTargetID  string
	cancelMgr       *cancelManager
	initialMessage  string
	initialSent     bool
	closed          bool

	debounceTimer *time.Timer
	dirty         bool

	onUpdate func()
	onPhase  func(label string)

	wg sync.WaitGroup
}

// NewController creates a session controller.
func NewController(client *agent.Client, cch *cache.Cache, logger *slog.Logger, meter metric.Meter, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		agent:          client,
		cache:          cch,
		phases:         phase.NewSimulator(phase.DefaultPhases()),
		logger:         logger,
		meter:          meter,
		conversationID: opts.ConversationID,
		initialMessage: opts.InitialMessage,
		cancelMgr:      newCancelManager(),
		onUpdate:       opts.OnUpdate,
		onPhase:        opts.OnPhase,
	}
	if c.conversationID == "" {
		c.conversationID = uuid.NewString()
	}
	if opts.Resume && cch != nil {
		if restored, ok := cch.Load(); ok {
			c.messages = restored
			logger.Info("restored active conversation", "messages", len(restored))
		}
	}
	return c
}

// ConversationID returns the session's conversation id.
func (c *Controller) ConversationID() string {
	return c.conversationID
}

// Messages returns a snapshot copy of the message list.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Awaiting reports whether a request is outstanding with no content yet.
func (c *Controller) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// LastError returns the raw error behind the most recent failed exchange,
// kept for the retry affordance. Nil after a successful exchange.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SendInitial sends the session's pre-supplied message, guarded so repeated
// calls never cause a duplicate send.
func (c *Controller) SendInitial() {
	c.mu.Lock()
	if c.initialSent || c.initialMessage == "" {
		c.mu.Unlock()
		return
	}
	c.initialSent = true
	text := c.initialMessage
	c.mu.Unlock()
	c.Send(text)
}

// Send starts a new exchange for the given user text. A prior in-flight
// exchange is cancelled first; its placeholder leaves no trace.
func (c *Controller) Send(content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.supersedeLocked()

	userMsg := model.NewMessage(model.RoleUser, content)
	c.messages = append(c.messages, userMsg)
	c.lastUserText = content
	c.lastErr = nil

	placeholder := model.NewMessage(model.RoleAssistant, "")
	c.messages = append(c.messages, placeholder)
	c.streamTargetID = placeholder.ID

	reqID := uuid.NewString()
	c.activeRequest = reqID
	c.awaiting = true
	c.scheduleSaveLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMgr.set(cancel)
	// Registered under the lock so a concurrent Close cannot return before
	// the exchange goroutine is accounted for.
	c.wg.Add(1)
	c.mu.Unlock()

	c.countExchange(ctx)
	c.phases.Start(c.onPhase)
	c.notify()

	go c.runExchange(ctx, reqID, content)
}

// Retry re-sends the most recent user message as a new exchange.
func (c *Controller) Retry() {
	c.mu.Lock()
	text := c.lastUserText
	c.mu.Unlock()
	if text == "" {
		return
	}
	c.Send(text)
}

// Abort cancels the in-flight exchange, if any, removing its placeholder
// silently.
func (c *Controller) Abort() {
	c.mu.Lock()
	c.supersedeLocked()
	c.mu.Unlock()
	c.phases.Stop()
	c.notify()
}

// Close tears the session down: the in-flight request is aborted so no
// orphaned mutation lands after the consumer stops observing, and a pending
// debounced write is flushed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	pending := c.dirty
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.mu.Unlock()

	c.phases.Stop()
	c.wg.Wait()
	if pending {
		c.flushSave()
	}
}

// Wait blocks until no exchange goroutine is running. Serial consumers
// (the REPL, tests) use it to observe the finalized exchange.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// runExchange performs the network call and finalization for one exchange.
func (c *Controller) runExchange(ctx context.Context, reqID, content string) {
	defer c.wg.Done()

	var total strings.Builder
	result, err := c.agent.Converse(ctx, content, c.conversationID, agent.StreamHandlers{
		OnStarted: func() {
			c.markStarted(reqID)
		},
		OnDelta: func(delta string) {
			total.WriteString(delta)
			c.applyContent(reqID, total.String())
		},
	})
	c.finalize(reqID, result, total.String(), err)
}

// markStarted clears the awaiting flag on the first real content.
func (c *Controller) markStarted(reqID string) {
	c.mu.Lock()
	if c.activeRequest != reqID {
		c.mu.Unlock()
		return
	}
	c.awaiting = false
	c.mu.Unlock()

	c.phases.Stop()
	c.notify()
}

// applyContent replaces the streaming target's content with the cumulative
// text. The controller always writes the full running total, so consumers
// render by replacement, never by concatenation.
func (c *Controller) applyContent(reqID, cumulative string) {
	c.mu.Lock()
	if c.activeRequest != reqID {
		// Stale chunk from a superseded exchange; discard.
		c.mu.Unlock()
		return
	}
	c.setTargetContentLocked(cumulative)
	c.scheduleSaveLocked()
	c.mu.Unlock()
	c.notify()
}

// finalize applies the terminal state for an exchange.
func (c *Controller) finalize(reqID string, result *agent.Result, streamed string, err error) {
	c.mu.Lock()
	if c.activeRequest != reqID {
		// Superseded: the placeholder was already removed.
		c.mu.Unlock()
		return
	}
	c.activeRequest = ""
	c.awaiting = false

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		// Cancellation is silent: the exchange leaves no trace.
		c.removeTargetLocked()
	case err != nil:
		c.setTargetContentLocked(randomErrorMessage())
		c.lastErr = err
		c.logger.Error("exchange failed", "error", err)
	case result.Streamed:
		if result.DeltaCount == 0 || streamed == "" {
			c.setTargetContentLocked(FallbackText)
		} else {
			c.setTargetContentLocked(streamed)
		}
	default:
		content := result.Message
		if content == "" {
			content = FallbackText
		}
		c.setTargetContentLocked(content)
		c.attachArgumentsLocked(result.Arguments)
	}

	c.streamTargetID = ""
	c.scheduleSaveLocked()
	c.mu.Unlock()

	c.phases.Stop()
	c.notify()
}

// supersedeLocked cancels the in-flight exchange and removes its
// placeholder. Callers must hold c.mu.
func (c *Controller) supersedeLocked() {
	if c.activeRequest == "" {
		return
	}
	c.activeRequest = ""
	c.awaiting = false
	c.removeTargetLocked()
	c.streamTargetID = ""
	c.cancelMgr.cancel()
}

func (c *Controller) setTargetContentLocked(content string) {
	for i := range c.messages {
		if c.messages[i].ID == c.streamTargetID {
			c.messages[i].Content = content
			return
		}
	}
}

func (c *Controller) attachArgumentsLocked(args []model.Argument) {
	for i := range c.messages {
		if c.messages[i].ID == c.streamTargetID {
			c.messages[i].Arguments = args
			return
		}
	}
}

func (c *Controller) removeTargetLocked() {
	if c.streamTargetID == "" {
		return
	}
	for i := range c.messages {
		if c.messages[i].ID == c.streamTargetID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

// scheduleSaveLocked arms the debounced cache write, resetting any pending
// timer. The snapshot is taken at flush time, not here, so the write always
// reflects the latest state. Callers must hold c.mu.
func (c *Controller) scheduleSaveLocked() {
	if c.cache == nil || len(c.messages) <= 1 {
		return
	}
	c.dirty = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(DebounceDelay, c.flushSave)
}

func (c *Controller) flushSave() {
	c.mu.Lock()
	snapshot := make([]model.Message, len(c.messages))
	copy(snapshot, c.messages)
	c.dirty = false
	c.mu.Unlock()

	c.cache.Save(snapshot)
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

func (c *Controller) countExchange(ctx context.Context) {
	if c.meter == nil {
		return
	}
	counter, err := c.meter.Int64Counter(
		"chat.exchanges",
		metric.WithDescription("Number of exchanges started"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
		return
	}
	counter.Add(ctx, 1)
}
