package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// ScheduleOff disables periodic reconciliation.
	ScheduleOff = "off"

	defaultRunTimeout = 2 * time.Minute
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Refresher re-runs load and reconciliation for the active scope.
type Refresher interface {
	RefreshFavorites(ctx context.Context)
}

// RunGuard reports whether a reconciliation is already in progress,
// possibly in another process sharing the database.
type RunGuard interface {
	IsSyncRunning() (bool, error)
}

// Disabled reports whether schedule turns periodic reconciliation off.
func Disabled(schedule string) bool {
	s := strings.TrimSpace(schedule)
	return s == "" || strings.EqualFold(s, ScheduleOff)
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// ReconcileScheduler periodically refreshes favorites from the backend
type ReconcileScheduler struct {
	refresher Refresher
	guard     RunGuard
	schedule  string
	timeout   time.Duration
	log       zerolog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
}

// NewReconcileScheduler creates a new scheduler instance. guard may be nil.
func NewReconcileScheduler(refresher Refresher, guard RunGuard, schedule string, log zerolog.Logger) *ReconcileScheduler {
	return &ReconcileScheduler{
		refresher: refresher,
		guard:     guard,
		schedule:  strings.TrimSpace(schedule),
		timeout:   defaultRunTimeout,
		log:       log,
		cron:      cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler unless the schedule is disabled
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if Disabled(s.schedule) {
		s.log.Info().Msg("Reconcile scheduler: disabled")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runReconcile)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.log.Info().
		Str("schedule", s.schedule).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("Reconcile scheduler: started")

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// Stop accepting new jobs and wait for running jobs to complete
	<-s.cron.Stop().Done()
	if cancel != nil {
		cancel()
	}

	s.log.Info().Msg("Reconcile scheduler: stopped")
}

// IsRunning returns whether the scheduler is active
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether a scheduled reconciliation is in progress
func (s *ReconcileScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRunTime returns when the next reconciliation will occur
func (s *ReconcileScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *ReconcileScheduler) runReconcile() {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.log.Debug().Msg("Reconcile: skipped (already running)")
		return
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	if s.guard != nil {
		running, err := s.guard.IsSyncRunning()
		if err != nil {
			s.log.Warn().Err(err).Msg("Reconcile: could not read run state")
		} else if running {
			s.log.Debug().Msg("Reconcile: skipped (reconciliation in progress)")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.refresher.RefreshFavorites(ctx)
	s.log.Debug().Dur("duration", time.Since(start)).Msg("Reconcile: scheduled refresh finished")
}
