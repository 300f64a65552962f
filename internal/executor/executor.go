// Package executor orchestrates one reply attempt: snapshot, locate, type,
// send, go home. Every invocation counts as an attempt and every exit path
// flushes the session to the stats store.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/session"
	"github.com/otpower88/grabbot/internal/uitree"
)

// Automator is the external UI automation surface (implemented by the device
// bridge). Click and SetText report whether the action took effect on the
// node; an error means the request could not be delivered at all.
type Automator interface {
	RootSnapshot(ctx context.Context) (*uitree.Node, error)
	Click(ctx context.Context, nodeID string) (bool, error)
	SetText(ctx context.Context, nodeID, text string) (bool, error)
	Home(ctx context.Context) error
}

// AbortReason identifies which step ended an attempt early.
type AbortReason string

const (
	ReasonNone               AbortReason = ""
	ReasonNullRootWindow     AbortReason = "null_root_window"
	ReasonInputFieldNotFound AbortReason = "input_field_not_found"
	ReasonSetTextFailed      AbortReason = "set_text_failed"
	ReasonSendButtonNotFound AbortReason = "send_button_not_found"
	ReasonUnexpected         AbortReason = "unexpected_exception"
	// ReasonSendClickFailed is soft: it does not abort the sequence.
	ReasonSendClickFailed AbortReason = "send_click_failed"
)

// Outcome is the terminal state of one attempt.
type Outcome struct {
	AttemptID string
	Success   bool
	Digit     string
	Reason    AbortReason
	// SendClickFailed is the soft failure: the send click reported false but
	// the sequence still completed its housekeeping.
	SendClickFailed bool
}

// Step waits, from the original interaction timings.
const (
	settleDelay   = 800 * time.Millisecond // UI render settle after snapshot
	postClickWait = 200 * time.Millisecond
	postTypeWait  = 150 * time.Millisecond
	preHomeWait   = 300 * time.Millisecond
)

// Executor runs reply attempts. Attempts are serialized by the caller (one
// worker goroutine); the executor itself holds no cross-attempt state beyond
// the session it mutates.
type Executor struct {
	automator Automator
	session   *session.Session
	events    bus.EventPublisher
	log       *slog.Logger

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	intN  func(int) int
	now   func() time.Time
}

// New creates an Executor. events may be nil.
func New(automator Automator, sess *session.Session, events bus.EventPublisher, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		automator: automator,
		session:   sess,
		events:    events,
		log:       log,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Run executes one reply attempt. It never returns an error: every fault is
// resolved into an Aborted outcome, logged, and the session is flushed on
// every exit path, including panics.
func (e *Executor) Run(ctx context.Context) (out Outcome) {
	out.AttemptID = uuid.NewString()[:8]
	log := e.log.With("attempt", out.AttemptID)

	// The cooldown measures from the moment the attempt begins executing.
	e.session.MarkReplyStart(e.now())
	total := e.session.BeginAttempt()
	log.Info("attempt started", "total_attempts", total)

	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Reason = ReasonUnexpected
			log.Error("attempt panicked", "panic", fmt.Sprint(r))
		}
		if err := e.session.Flush(); err != nil {
			log.Warn("stats flush failed", "error", err)
		}
		e.publish(out)
	}()

	root, err := e.automator.RootSnapshot(ctx)
	if err != nil || root == nil {
		log.Warn("no root window available", "error", err)
		out.Reason = ReasonNullRootWindow
		return out
	}

	if err := e.sleep(ctx, settleDelay); err != nil {
		out.Reason = ReasonUnexpected
		return out
	}

	input := uitree.FindInputField(root)
	if input == nil {
		log.Warn("input field not found")
		out.Reason = ReasonInputFieldNotFound
		return out
	}

	out.Digit = PickDigit(e.intN)

	// Focus the field; the click result itself is not load-bearing.
	if _, err := e.automator.Click(ctx, input.ID); err != nil {
		log.Debug("input click delivery failed", "error", err)
	}
	if err := e.sleep(ctx, postClickWait); err != nil {
		out.Reason = ReasonUnexpected
		return out
	}

	ok, err := e.automator.SetText(ctx, input.ID, out.Digit)
	if err != nil || !ok {
		log.Warn("set text failed", "error", err)
		out.Reason = ReasonSetTextFailed
		return out
	}
	log.Info("digit typed", "digit", out.Digit)
	if err := e.sleep(ctx, postTypeWait); err != nil {
		out.Reason = ReasonUnexpected
		return out
	}

	send := uitree.FindSendButton(root)
	if send == nil {
		log.Warn("send button not found")
		out.Reason = ReasonSendButtonNotFound
		return out
	}

	sent, err := e.automator.Click(ctx, send.ID)
	if err == nil && sent {
		out.Success = true
		stats := e.session.RecordSuccess()
		rate := float64(stats.SuccessCount) * 100 / float64(stats.TotalAttempts)
		log.Info("reply sent",
			"digit", out.Digit,
			"success_count", stats.SuccessCount,
			"total_attempts", stats.TotalAttempts,
			"success_rate", fmt.Sprintf("%.1f%%", rate),
		)
	} else {
		// Soft failure: logged, but the sequence still completes.
		out.SendClickFailed = true
		out.Reason = ReasonSendClickFailed
		log.Warn("send click failed", "error", err)
	}

	if err := e.sleep(ctx, preHomeWait); err != nil {
		return out
	}
	if err := e.automator.Home(ctx); err != nil {
		log.Debug("home action failed", "error", err)
	} else {
		log.Info("returned home")
	}

	return out
}

func (e *Executor) publish(out Outcome) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(bus.Event{Name: bus.EventAttempt, Payload: bus.AttemptPayload{
		AttemptID: out.AttemptID,
		Success:   out.Success,
		Digit:     out.Digit,
		Reason:    string(out.Reason),
	}})
	stats := e.session.Stats()
	e.events.Broadcast(bus.Event{Name: bus.EventStats, Payload: bus.StatsPayload{
		TotalAttempts: stats.TotalAttempts,
		SuccessCount:  stats.SuccessCount,
	}})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
