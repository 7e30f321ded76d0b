package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/katanos/katanos/internal/models"
)

// WarmupDelay is the fixed pause before the runOnStartup backup, leaving the
// application time to finish starting.
const WarmupDelay = 5 * time.Second

// Trigger executes one backup run. Implemented by Runner.
type Trigger interface {
	TriggerBackupNow(ctx context.Context, userID string, settings models.BackupSettings) Result
}

// Scheduler arms a recurring backup timer for the logged-in user. It has two
// states: stopped (no binding) and armed (timer active, bound to one
// user+settings pair). There is no run-exclusion guard: ticks assume the
// interval is much larger than a run and overlapping runs are tolerated.
type Scheduler struct {
	trigger Trigger
	logger  *slog.Logger
	warmup  time.Duration
	now     func() time.Time

	mu         sync.Mutex
	generation int
	binding    *binding
	stop       chan struct{}
}

type binding struct {
	userID   string
	settings models.BackupSettings
}

func NewScheduler(trigger Trigger, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		trigger: trigger,
		logger:  logger,
		warmup:  WarmupDelay,
		now:     time.Now,
	}
}

// Start arms the scheduler for userID. A previous binding is torn down
// first. When backups are disabled or no folder is configured the scheduler
// stays stopped. With runOnStartup set and no backup inside the configured
// interval, one immediate run is scheduled after the warm-up delay.
func (s *Scheduler) Start(userID string, settings models.BackupSettings) {
	s.Stop()

	if !settings.Enabled || settings.FolderPath == "" {
		return
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.binding = &binding{userID: userID, settings: settings}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	interval := models.ParseBackupInterval(settings.Interval)

	if settings.RunOnStartup && s.startupRunDue(settings, interval) {
		go s.runAfter(gen, s.warmup, stop)
	}

	go s.loop(gen, interval, stop)

	s.logger.Info("backup scheduler armed",
		"user_id", userID, "interval", interval.String())
}

// Stop disarms the scheduler. Idempotent; an in-flight run is not
// interrupted, its result is discarded as superseded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.binding = nil
	s.generation++
}

// Armed reports whether a binding is active.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding != nil
}

// Tick runs one backup against the current binding. A tick with no bound
// user yields a failed Result, never a panic.
func (s *Scheduler) Tick(ctx context.Context) Result {
	s.mu.Lock()
	b := s.binding
	s.mu.Unlock()

	if b == nil {
		return Result{Err: ErrUnbound}
	}

	return s.trigger.TriggerBackupNow(ctx, b.userID, b.settings)
}

func (s *Scheduler) loop(gen int, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce(gen)
		}
	}
}

func (s *Scheduler) runAfter(gen int, delay time.Duration, stop <-chan struct{}) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-stop:
	case <-timer.C:
		s.runOnce(gen)
	}
}

func (s *Scheduler) runOnce(gen int) {
	result := s.Tick(context.Background())

	s.mu.Lock()
	superseded := s.generation != gen
	s.mu.Unlock()

	if superseded {
		s.logger.Info("backup result discarded, binding superseded")
		return
	}

	if result.Err != nil {
		s.logger.Warn("scheduled backup failed", "error", result.Err)
		return
	}
	s.logger.Info("scheduled backup complete",
		"path", result.Path, "size_bytes", result.SizeBytes)
}

// startupRunDue reports whether the runOnStartup backup should fire: no
// previous backup recorded, an unparsable timestamp, or more than one
// interval elapsed since the last one.
func (s *Scheduler) startupRunDue(settings models.BackupSettings, interval time.Duration) bool {
	if settings.LastBackupAt == "" {
		return true
	}

	last, err := time.Parse(time.RFC3339, settings.LastBackupAt)
	if err != nil {
		return true
	}

	return s.now().Sub(last) > interval
}
