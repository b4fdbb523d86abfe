// Package scheduler runs periodic housekeeping: daily log-file cleanup and
// a daily battle history summary.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/config"
	"github.com/pokeproto-project/pokebattle/internal/db"
	"github.com/pokeproto-project/pokebattle/internal/util"
)

// cleanupTime is the local wall-clock time daily cleanup runs at.
const cleanupTime = "04:00"

// Scheduler manages periodic background tasks.
type Scheduler struct {
	logging   config.LoggingConfig
	battleLog *db.BattleLog
}

// NewScheduler creates a scheduler. battleLog may be nil when history
// recording is disabled; the stats task is skipped then.
func NewScheduler(logging config.LoggingConfig, battleLog *db.BattleLog) *Scheduler {
	return &Scheduler{
		logging:   logging,
		battleLog: battleLog,
	}
}

// Start runs all scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	go s.runLogCleanupLoop(ctx)

	if s.battleLog != nil {
		go s.runStatsLoop(ctx)
	}

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runLogCleanupLoop prunes old log files once a day.
func (s *Scheduler) runLogCleanupLoop(ctx context.Context) {
	for {
		nextRun := calculateNextCleanupTime()
		sleepDuration := time.Until(nextRun)
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		log.Debug().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("log cleanup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
			removed := util.CleanOldLogs(s.logging.Directory, s.logging.MaxBackups)
			log.Info().
				Str("directory", s.logging.Directory).
				Int("removed", removed).
				Msg("log cleanup completed")
		}
	}
}

// runStatsLoop logs a daily battle history summary.
func (s *Scheduler) runStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collectStats()
		}
	}
}

// collectStats gathers and logs battle history totals.
func (s *Scheduler) collectStats() {
	battles, turns, err := s.battleLog.Counts()
	if err != nil {
		log.Warn().Err(err).Msg("stats collection failed")
		return
	}
	log.Info().
		Int("battles", battles).
		Int("turns", turns).
		Msg("daily stats collected")
}

// calculateNextCleanupTime returns the next daily cleanup time.
func calculateNextCleanupTime() time.Time {
	parts := strings.Split(cleanupTime, ":")

	hour, minute := 4, 0
	if len(parts) >= 2 {
		fmt.Sscanf(parts[0], "%d", &hour)
		fmt.Sscanf(parts[1], "%d", &minute)
	}

	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
