package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OverdueMarker moves invoices past their due date to OVERDUE and reports
// how many changed.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueSweeperConfig holds sweeper configuration
type OverdueSweeperConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// Timeout bounds a single sweep
	Timeout time.Duration
	// RunOnStart sweeps immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultOverdueSweeperConfig returns default sweeper configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Interval:   time.Hour,
		Timeout:    5 * time.Minute,
		RunOnStart: true,
	}
}

// Validate checks the configuration
func (c OverdueSweeperConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SweepStats summarizes the sweeper's activity
type SweepStats struct {
	Runs         int64     `json:"runs"`
	Failures     int64     `json:"failures"`
	MarkedTotal  int64     `json:"marked_total"`
	LastRunAt    time.Time `json:"last_run_at,omitzero"`
	LastMarked   int       `json:"last_marked"`
	LastError    string    `json:"last_error,omitempty"`
	IsRunning    bool      `json:"is_running"`
	SweepRunning bool      `json:"sweep_running"`
}

// OverdueSweeper periodically promotes awaiting-payment invoices whose due
// date has passed to OVERDUE.
type OverdueSweeper struct {
	config OverdueSweeperConfig
	marker OverdueMarker
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	sweeping    atomic.Bool
	runs        atomic.Int64
	failures    atomic.Int64
	markedTotal atomic.Int64
	statsMu     sync.Mutex
	lastRunAt   time.Time
	lastMarked  int
	lastError   string
}

// NewOverdueSweeper creates a sweeper
func NewOverdueSweeper(config OverdueSweeperConfig, marker OverdueMarker, logger *zap.Logger) (*OverdueSweeper, error) {
	if marker == nil {
		return nil, fmt.Errorf("%w: overdue marker is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		config: config,
		marker: marker,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the sweep loop
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop stops the loop, waiting for an in-flight sweep until ctx expires
func (s *OverdueSweeper) Stop(ctx context.Context) error {
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
		s.logger.Info("Overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is running
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *OverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep. Concurrent calls return ErrSweepInProgress.
func (s *OverdueSweeper) RunOnce(ctx context.Context) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	now := s.now()
	var (
		marked int
		err    error
	)
	telemetry.WithProfilingLabels(ctx, "overdue_sweep", func(ctx context.Context) {
		marked, err = s.marker.MarkOverdue(ctx, now)
	})

	s.runs.Add(1)
	s.statsMu.Lock()
	s.lastRunAt = now
	s.lastMarked = marked
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.statsMu.Unlock()

	if err != nil {
		s.failures.Add(1)
		return marked, err
	}

	s.markedTotal.Add(int64(marked))
	if marked > 0 {
		s.logger.Info("Invoices marked overdue", zap.Int("count", marked))
	} else {
		s.logger.Debug("Overdue sweep found nothing to mark")
	}
	return marked, nil
}

// Stats returns a snapshot of sweeper activity
func (s *OverdueSweeper) Stats() SweepStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return SweepStats{
		Runs:         s.runs.Load(),
		Failures:     s.failures.Load(),
		MarkedTotal:  s.markedTotal.Load(),
		LastRunAt:    s.lastRunAt,
		LastMarked:   s.lastMarked,
		LastError:    s.lastError,
		IsRunning:    s.IsRunning(),
		SweepRunning: s.sweeping.Load(),
	}
}
