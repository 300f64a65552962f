// Package pipeline composes the dispatch-sniping flow: source/group filter,
// structural match, eligibility gate, randomized-delay scheduling, and the
// serialized attempt worker.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/internal/executor"
	"github.com/otpower88/grabbot/internal/match"
	"github.com/otpower88/grabbot/internal/policy"
	"github.com/otpower88/grabbot/internal/sched"
	"github.com/otpower88/grabbot/internal/session"
	"github.com/otpower88/grabbot/internal/store"
)

// Runner executes one reply attempt. Implemented by executor.Executor.
type Runner interface {
	Run(ctx context.Context) executor.Outcome
}

// Pipeline consumes notification events from the bus and drives attempts.
// One consumer goroutine filters and schedules; one worker goroutine runs
// attempts, so attempts never overlap and session counters have one writer.
type Pipeline struct {
	mu        sync.RWMutex
	watch     config.WatchConfig
	gate      *policy.Gate
	limiter   *rate.Limiter
	scheduler *sched.Scheduler
	runner    Runner
	sess      *session.Session
	bus       *bus.MessageBus
	stats     store.StatsStore
	log       *slog.Logger

	attempts chan struct{}
	now      func() time.Time // test seam
}

// New creates a Pipeline.
func New(cfg *config.Config, runner Runner, sess *session.Session, msgBus *bus.MessageBus, stats store.StatsStore, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		runner:    runner,
		sess:      sess,
		bus:       msgBus,
		stats:     stats,
		log:       log,
		scheduler: sched.New(),
		attempts:  make(chan struct{}, 1),
		now:       time.Now,
	}
	p.applyWatch(cfg.Watch)
	return p
}

// UpdateConfig applies a hot-reloaded config.
func (p *Pipeline) UpdateConfig(cfg *config.Config) {
	p.applyWatch(cfg.Watch)
	p.log.Info("pipeline: watch config updated",
		"group", cfg.Watch.GroupName,
		"window", fmt.Sprintf("%02d:00-%02d:00", cfg.Watch.StartHour, cfg.Watch.EndHour),
	)
}

func (p *Pipeline) applyWatch(w config.WatchConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watch = w
	p.gate = policy.NewGate(w.StartHour, w.EndHour)
	if w.MaxEventsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(w.MaxEventsPerMinute)/60), w.MaxEventsPerMinute)
	} else {
		p.limiter = nil
	}
}

// Run consumes notifications until the context is cancelled. Blocking.
// A pending scheduled task at teardown is abandoned; the session is flushed
// by the run command on the way out.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("pipeline started")
	p.announce("🤖 搶單服務已啟動")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.worker(ctx)
	}()

	for {
		ev, ok := p.bus.ConsumeNotification(ctx)
		if !ok {
			break
		}
		p.handle(ev)
	}

	wg.Wait()
	p.log.Info("pipeline stopped")
	return nil
}

// handle runs one event through filter → match → gate → schedule.
// Every skip is silent toward the caller; reasons go to the log.
func (p *Pipeline) handle(ev bus.NotificationEvent) {
	p.mu.RLock()
	watch := p.watch
	gate := p.gate
	limiter := p.limiter
	p.mu.RUnlock()

	if limiter != nil && !limiter.Allow() {
		p.log.Warn("notification storm, dropping event", "title", ev.Title)
		return
	}

	if ev.SourceApp != watch.SourceApp {
		return
	}

	// The persisted group name (set from the device settings screen) takes
	// precedence over the config default.
	groupName := p.stats.GetString(store.KeyGroupName, watch.GroupName)
	if !containsGroup(ev.Title, groupName) {
		return
	}
	p.log.Info("group message received", "group", groupName)

	result := match.Classify(ev.Text)
	if !result.Matched {
		p.log.Debug("no dispatch pattern, skipping")
		return
	}
	if result.Excluded {
		p.log.Info("dispatch already claimed, skipping")
		return
	}
	p.announce("✅ 關鍵字匹配成功")

	now := p.now()
	switch gate.Check(now, p.sess.LastReply()) {
	case policy.SkipOutsideWindow:
		p.log.Info("skipped: outside work window",
			"hour", now.Hour(),
			"window", fmt.Sprintf("%02d:00-%02d:00", watch.StartHour, watch.EndHour))
		return
	case policy.SkipCooldown:
		p.log.Info("skipped: within cooldown", "since_last", now.Sub(p.sess.LastReply()))
		return
	}

	_, delay, ok := p.scheduler.Schedule(now.Hour(), func() {
		select {
		case p.attempts <- struct{}{}:
		default:
			// Worker already has an attempt queued; drop rather than pile up.
			p.log.Warn("attempt queue full, dropping fired task")
		}
	})
	if !ok {
		p.log.Info("skipped: reply already scheduled")
		return
	}
	p.log.Info("reply scheduled", "delay", delay)
	p.announce(fmt.Sprintf("⏱️ 延遲 %d ms 後執行搶單", delay.Milliseconds()))
}

// worker serializes attempt execution.
func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.attempts:
			out := p.runner.Run(ctx)
			if out.Success {
				p.announce(fmt.Sprintf("🎉 成功發送回覆: %s", out.Digit))
			} else {
				p.announce(fmt.Sprintf("❌ 搶單失敗: %s", out.Reason))
			}
		}
	}
}

// announce pushes a display line for the shim's log viewer.
func (p *Pipeline) announce(line string) {
	p.bus.Broadcast(bus.Event{Name: bus.EventLog, Payload: line})
}

func containsGroup(title, group string) bool {
	return group != "" && strings.Contains(title, group)
}
