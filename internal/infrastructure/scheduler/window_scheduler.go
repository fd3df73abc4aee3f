package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/faasbill/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// WindowService is the part of the usage service the scheduler drives
type WindowService interface {
	CloseWindows(ctx context.Context, now time.Time) (int64, error)
	PurgeEvents(ctx context.Context, now time.Time) (int64, error)
}

// WindowCloseSchedulerConfig holds configuration for the window close scheduler
type WindowCloseSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// CloseInterval is how often due windows are closed
	CloseInterval time.Duration

	// PurgeInterval is how often processed events past retention are purged.
	// Zero disables purging.
	PurgeInterval time.Duration

	// RunTimeout bounds a single close or purge run
	RunTimeout time.Duration
}

// DefaultWindowCloseSchedulerConfig returns default configuration
func DefaultWindowCloseSchedulerConfig() WindowCloseSchedulerConfig {
	return WindowCloseSchedulerConfig{
		Enabled:       true,
		CloseInterval: time.Minute,
		PurgeInterval: time.Hour,
		RunTimeout:    2 * time.Minute,
	}
}

// Validate checks the configuration
func (c WindowCloseSchedulerConfig) Validate() error {
	if c.CloseInterval <= 0 || c.RunTimeout <= 0 || c.PurgeInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// WindowCloseScheduler closes due aggregation windows on a ticker and
// periodically purges old raw events.
type WindowCloseScheduler struct {
	service   WindowService
	logger    *zap.Logger
	config    WindowCloseSchedulerConfig
	now       func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	runMu     sync.Mutex
	isRunning bool
	lastPurge time.Time
}

// NewWindowCloseScheduler creates a new window close scheduler
func NewWindowCloseScheduler(
	service WindowService,
	logger *zap.Logger,
	config WindowCloseSchedulerConfig,
) *WindowCloseScheduler {
	return &WindowCloseScheduler{
		service: service,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}
}

// SetNow replaces the time source passed to CloseWindows and PurgeEvents
func (s *WindowCloseScheduler) SetNow(now func() time.Time) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.now = now
}

// Start starts the scheduler loop. The first close runs immediately.
func (s *WindowCloseScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Window close scheduler is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("Window close scheduler started",
		zap.Duration("close_interval", s.config.CloseInterval),
		zap.Duration("purge_interval", s.config.PurgeInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight run
func (s *WindowCloseScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Window close scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Window close scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *WindowCloseScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *WindowCloseScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CloseInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Window close loop stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce closes due windows and purges events when the purge interval has
// elapsed. Runs never overlap.
func (s *WindowCloseScheduler) RunOnce(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	telemetry.WithProfilingLabels(ctx, func(ctx context.Context) {
		now := s.now()
		s.executeClose(ctx, now)
		if s.config.PurgeInterval > 0 && (s.lastPurge.IsZero() || now.Sub(s.lastPurge) >= s.config.PurgeInterval) {
			if s.executePurge(ctx, now) {
				s.lastPurge = now
			}
		}
	}, telemetry.ProfilingLabelWorker, "window-close")
}

func (s *WindowCloseScheduler) executeClose(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	closed, err := s.service.CloseWindows(runCtx, now)
	duration := time.Since(startTime)
	if err != nil {
		s.logger.Error("Closing usage windows failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	if closed > 0 {
		s.logger.Info("Usage windows closed",
			zap.Int64("closed", closed),
			zap.Duration("duration", duration),
		)
	}
}

func (s *WindowCloseScheduler) executePurge(ctx context.Context, now time.Time) bool {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	startTime := time.Now()
	deleted, err := s.service.PurgeEvents(runCtx, now)
	duration := time.Since(startTime)
	if err != nil {
		s.logger.Error("Purging usage events failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return false
	}
	s.logger.Info("Usage events purged",
		zap.Int64("deleted_count", deleted),
		zap.Duration("duration", duration),
	)
	return true
}
