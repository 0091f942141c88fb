// Package janitor reconciles session bookkeeping in the background.
//
// Liveness keys expire on their own, but the per-identity sorted sets they
// are tracked in do not. Eviction and logout leave stale members behind on
// purpose; the janitor sweeps them out on a schedule so the sets reflect
// reality within one sweep interval.
package janitor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/boilerswap/backend/internal/keyspace"
	"github.com/boilerswap/backend/internal/session"
)

// DefaultSchedule sweeps hourly.
const DefaultSchedule = "@hourly"

const sweepTimeout = time.Minute

// Janitor prunes stale session-set members on a cron schedule.
type Janitor struct {
	sessions *session.Store
	logger   *slog.Logger
	cron     *cron.Cron
}

// New returns a stopped Janitor; call Start to schedule sweeps.
func New(sessions *session.Store, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		sessions: sessions,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules sweeps on the given cron expression and begins running.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		removed, err := j.Sweep(ctx)
		if err != nil {
			j.logger.Warn("session sweep failed", "error", err)
			return
		}
		if removed > 0 {
			j.logger.Info("session sweep finished", "removed", removed)
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep prunes every identity's session set once and returns how many
// stale members were dropped.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	setKeys, err := j.sessions.SetKeys(ctx)
	if err != nil {
		return 0, err
	}

	prefix := keyspace.SessionSet.Prefix() + ":"
	total := 0
	for _, key := range setKeys {
		email := strings.TrimPrefix(key, prefix)
		removed, err := j.sessions.Prune(ctx, email)
		total += removed
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
