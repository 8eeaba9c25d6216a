// Package scheduler implements background maintenance for the gateway
// process: audit-log pruning and periodic activity stats.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/audit"
	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/gateway"
)

// statsInterval is how often activity stats are logged.
const statsInterval = time.Hour

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg   *config.Config
	gw    *gateway.Gateway
	store *audit.Store
}

// NewScheduler creates a new task scheduler. store may be nil when the
// audit log is disabled; pruning is then skipped.
func NewScheduler(cfg *config.Config, gw *gateway.Gateway, store *audit.Store) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		gw:    gw,
		store: store,
	}
}

// Start begins running all scheduled tasks. Blocks until the context is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	if s.store != nil && s.cfg.GetApplicationData().Audit.RetentionDays > 0 {
		go s.runAuditPruneLoop(ctx)
	}

	go s.runStatsLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runAuditPruneLoop prunes expired audit records once a day.
func (s *Scheduler) runAuditPruneLoop(ctx context.Context) {
	// First prune shortly after startup so a long-stopped deployment
	// catches up without waiting a day.
	timer := time.NewTimer(time.Minute)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.pruneAudit()
			timer.Reset(24 * time.Hour)
		}
	}
}

func (s *Scheduler) pruneAudit() {
	retention := s.cfg.GetApplicationData().Audit.RetentionDays
	cutoff := time.Now().AddDate(0, 0, -retention)

	deleted, err := s.store.Prune(cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("audit prune failed")
		return
	}
	log.Info().
		Int64("deleted", deleted).
		Int("retention_days", retention).
		Msg("audit prune completed")
}

// runStatsLoop logs activity stats at a fixed interval.
func (s *Scheduler) runStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logStats()
		}
	}
}

func (s *Scheduler) logStats() {
	entry := log.Info().
		Int("sessions", s.gw.Sessions().Count()).
		Int("rooms_observed", len(s.gw.View().Snapshot())).
		Int("pending_forwards", s.gw.Pending().Outstanding())

	if s.store != nil {
		logins, requests, err := s.store.Counts()
		if err == nil {
			entry = entry.Int("audit_logins", logins).Int("audit_requests", requests)
		}
	}

	entry.Msg("activity stats")
}
