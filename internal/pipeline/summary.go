package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// RunSummary logs the running counters whenever the report cron expression
// is due (default: end of the work window). Blocking; returns on context
// cancellation. Invalid expressions are reported once and disable the job.
func (p *Pipeline) RunSummary(ctx context.Context, cronExpr string) error {
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return fmt.Errorf("invalid report cron %q", cronExpr)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastFired time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			minute := now.Truncate(time.Minute)
			if minute.Equal(lastFired) {
				continue
			}
			due, err := g.IsDue(cronExpr, minute)
			if err != nil {
				slog.Warn("report: cron evaluation failed", "error", err)
				continue
			}
			if !due {
				continue
			}
			lastFired = minute
			p.logSummary()
		}
	}
}

func (p *Pipeline) logSummary() {
	stats := p.sess.Stats()
	rate := 0.0
	if stats.TotalAttempts > 0 {
		rate = float64(stats.SuccessCount) * 100 / float64(stats.TotalAttempts)
	}
	p.log.Info("daily summary",
		"total_attempts", stats.TotalAttempts,
		"success_count", stats.SuccessCount,
		"success_rate", fmt.Sprintf("%.1f%%", rate),
	)
	p.announce(fmt.Sprintf("📊 成功率: %d/%d (%.1f%%)", stats.SuccessCount, stats.TotalAttempts, rate))
}
