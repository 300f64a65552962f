package pipeline

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/internal/executor"
	"github.com/otpower88/grabbot/internal/sched"
	"github.com/otpower88/grabbot/internal/session"
	"github.com/otpower88/grabbot/internal/store"
	"github.com/otpower88/grabbot/internal/store/file"
)

type fakeRunner struct {
	calls atomic.Int64
	ran   chan struct{}
}

func (f *fakeRunner) Run(context.Context) executor.Outcome {
	f.calls.Add(1)
	select {
	case f.ran <- struct{}{}:
	default:
	}
	return executor.Outcome{Success: true, Digit: "5"}
}

const dispatchText = "9/15(週一)\n08:00\n新北市板橋區 > 台北市"

// newPipeline builds a pipeline with deterministic seams (shortest delay,
// fixed in-window clock) but does not start it; tests adjust seams first.
func newPipeline(t *testing.T) (*Pipeline, *fakeRunner, *bus.MessageBus, *file.StatsStore) {
	t.Helper()
	st, err := file.Open(filepath.Join(t.TempDir(), "stats.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sess, err := session.Load(st)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	runner := &fakeRunner{ran: make(chan struct{}, 4)}
	msgBus := bus.New()
	p := New(config.Default(), runner, sess, msgBus, st, nil)
	p.scheduler = sched.NewWithRand(func(int) int { return 0 })
	p.now = func() time.Time {
		return time.Date(2025, 9, 15, 12, 0, 0, 0, time.Local)
	}
	return p, runner, msgBus, st
}

func start(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(cancel)
}

func event(source, title, text string) bus.NotificationEvent {
	return bus.NotificationEvent{SourceApp: source, Title: title, Text: text, ReceivedAt: time.Now()}
}

func expectNoRun(t *testing.T, runner *fakeRunner) {
	t.Helper()
	time.Sleep(1200 * time.Millisecond)
	if n := runner.calls.Load(); n != 0 {
		t.Fatalf("runner called %d times, want 0", n)
	}
}

func expectRun(t *testing.T, runner *fakeRunner) {
	t.Helper()
	select {
	case <-runner.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("runner never called")
	}
}

func TestAcceptedEventTriggersAttempt(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組 (32)", dispatchText))
	expectRun(t, runner)
}

func TestWrongSourceAppSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)
	msgBus.PublishNotification(event("com.whatsapp", "工作接單群組", dispatchText))
	expectNoRun(t, runner)
}

func TestTitleWithoutGroupSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "家庭群組", dispatchText))
	expectNoRun(t, runner)
}

func TestNonDispatchTextSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", "大家好，今天天氣不錯呢"))
	expectNoRun(t, runner)
}

func TestClaimedDispatchSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", "@5523 "+dispatchText))
	expectNoRun(t, runner)
}

func TestOutsideWindowSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	p.now = func() time.Time {
		return time.Date(2025, 9, 15, 20, 0, 0, 0, time.Local)
	}
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", dispatchText))
	expectNoRun(t, runner)
}

func TestCooldownSkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	p.sess.MarkReplyStart(p.now().Add(-2 * time.Second))
	start(t, p)
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", dispatchText))
	expectNoRun(t, runner)
}

func TestSecondEventDuringDelaySkipped(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	// Longest delay so the second event lands inside the pending window.
	p.scheduler = sched.NewWithRand(func(n int) int { return n - 1 })
	start(t, p)

	ev := event("com.linecorp.line.android", "工作接單群組", dispatchText)
	msgBus.PublishNotification(ev)
	time.Sleep(200 * time.Millisecond)
	msgBus.PublishNotification(ev)

	expectRun(t, runner)
	time.Sleep(1500 * time.Millisecond)
	if n := runner.calls.Load(); n != 1 {
		t.Fatalf("runner called %d times, want 1 (single pending task)", n)
	}
}

func TestGroupNameFromStoreOverridesConfig(t *testing.T) {
	p, runner, msgBus, st := newPipeline(t)
	if err := st.SetString(store.KeyGroupName, "夜班派遣"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	start(t, p)

	// The config default group no longer matches once the store value is set.
	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", dispatchText))
	time.Sleep(1200 * time.Millisecond)
	if runner.calls.Load() != 0 {
		t.Fatal("config group matched despite store override")
	}

	msgBus.PublishNotification(event("com.linecorp.line.android", "夜班派遣 (5)", dispatchText))
	expectRun(t, runner)
}

func TestUpdateConfigSwapsWindow(t *testing.T) {
	p, runner, msgBus, _ := newPipeline(t)
	start(t, p)

	cfg := config.Default()
	cfg.Watch.StartHour = 13 // the noon test clock is now outside the window
	p.UpdateConfig(cfg)

	msgBus.PublishNotification(event("com.linecorp.line.android", "工作接單群組", dispatchText))
	expectNoRun(t, runner)
}
