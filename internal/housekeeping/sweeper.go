// Package housekeeping runs the scheduled refresh token sweep: tokens whose
// expiry predates the retention cutoff are deleted from storage.
package housekeeping

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"backoffice.games/internal/auth"
	"backoffice.games/internal/obs"
)

// Sweeper schedules periodic refresh token purges.
type Sweeper struct {
	svc      *auth.Service
	schedule string
	cron     *cron.Cron
	timeout  time.Duration
}

// NewSweeper builds a sweeper for the given cron schedule (standard five
// field syntax, e.g. "30 3 * * *").
func NewSweeper(svc *auth.Service, schedule string) *Sweeper {
	return &Sweeper{
		svc:      svc,
		schedule: schedule,
		cron:     cron.New(),
		timeout:  time.Minute,
	}
}

// Start registers the sweep job and begins the schedule.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.svc.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "refresh_token_sweep_failed",
			"error": err.Error(),
		})
		return
	}
	obs.RecordPurgedTokens(removed)
	obs.LogRequest(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     "refresh_token_sweep",
		"removed": removed,
	})
}
