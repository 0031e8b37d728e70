package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"heimwetter/internal/stats"
)

// Scheduler drives the background loops. Every component is optional;
// a nil client simply skips its tick. Jobs log failures and carry on,
// the next tick gets another go.
type Scheduler struct {
	archiver *Archiver
	sync     *ExportSync
	stats    *stats.Service
	daily    *DailyJobs
	loc      *time.Location

	pollInterval  time.Duration
	syncInterval  time.Duration
	statsInterval time.Duration
	dailyInterval time.Duration

	running      atomic.Bool
	lastDailyDay string
}

func NewScheduler(archiver *Archiver, sync *ExportSync, statsSvc *stats.Service, daily *DailyJobs, loc *time.Location) *Scheduler {
	return &Scheduler{
		archiver:      archiver,
		sync:          sync,
		stats:         statsSvc,
		daily:         daily,
		loc:           loc,
		pollInterval:  1 * time.Minute,
		syncInterval:  6 * time.Hour,
		statsInterval: 1 * time.Hour,
		dailyInterval: 15 * time.Minute,
	}
}

// SetIntervals overrides the default tick intervals. Zero keeps a default.
func (s *Scheduler) SetIntervals(poll, daily time.Duration) {
	if poll > 0 {
		s.pollInterval = poll
	}
	if daily > 0 {
		s.dailyInterval = daily
	}
}

// Start launches the loop in a goroutine. Calling it again while the
// loop is live is a no-op; the tickers must never be registered twice.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("scheduler: already running, start ignored")
		return
	}
	go func() {
		defer s.running.Store(false)
		s.Run(ctx)
	}()
}

// IsRunning reports whether the loop is live.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Run(ctx context.Context) {
	s.pollDevice(ctx)
	s.syncExports()
	s.refreshStats()
	s.runDailyIfDue(ctx)

	pollTicker := time.NewTicker(s.pollInterval)
	syncTicker := time.NewTicker(s.syncInterval)
	statsTicker := time.NewTicker(s.statsInterval)
	dailyTicker := time.NewTicker(s.dailyInterval)
	defer pollTicker.Stop()
	defer syncTicker.Stop()
	defer statsTicker.Stop()
	defer dailyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-pollTicker.C:
			s.pollDevice(ctx)
		case <-syncTicker.C:
			s.syncExports()
		case <-statsTicker.C:
			s.refreshStats()
		case <-dailyTicker.C:
			s.runDailyIfDue(ctx)
		}
	}
}

func (s *Scheduler) pollDevice(ctx context.Context) {
	if s.archiver == nil {
		return
	}
	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.archiver.PollOnce(pollCtx); err != nil {
		log.Printf("scheduler: device poll: %v", err)
	}
}

func (s *Scheduler) syncExports() {
	if s.sync == nil {
		return
	}
	n, err := s.sync.Sync()
	if err != nil {
		log.Printf("scheduler: export sync: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: synced %d exports", n)
	}
}

func (s *Scheduler) refreshStats() {
	if s.stats == nil {
		return
	}
	if _, err := s.stats.UpdateIfNeeded(); err != nil {
		log.Printf("scheduler: statistics refresh: %v", err)
	}
}

// runDailyIfDue fires the daily jobs once per local day, in the early
// morning window after the logger has closed out yesterday's file.
func (s *Scheduler) runDailyIfDue(ctx context.Context) {
	if s.daily == nil {
		return
	}
	now := time.Now().In(s.loc)
	if now.Hour() < 6 {
		return
	}
	day := now.Format("2006-01-02")
	if day == s.lastDailyDay {
		return
	}
	s.lastDailyDay = day
	if err := s.daily.RunAll(ctx); err != nil {
		log.Printf("scheduler: daily jobs: %v", err)
	}
}
