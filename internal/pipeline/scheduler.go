package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Source is one out-of-scope collector feeding raw candidates into a
// scheduled scan. A failing source contributes zero candidates; the
// scan proceeds with the rest.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]model.Threat, error)
}

// Scan is one named scheduled run type.
type Scan struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// inFlight serializes runs of this scan type. Scan types are
	// independent of each other; only same-type overlap is prevented.
	inFlight sync.Mutex
}

// Scheduler drives independent scan types on their own tickers with
// at-most-one concurrent run per type.
type Scheduler struct {
	scans   []*Scan
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{logger: logger, metrics: m}
}

// Register adds a scan type. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.scans = append(s.scans, &Scan{Name: name, Interval: interval, Run: run})
}

// Start launches one ticker goroutine per scan type.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, scan := range s.scans {
		s.wg.Add(1)
		go s.drive(ctx, scan)
	}
	s.logger.Info("Scheduler started", "scan_types", len(s.scans))
}

// Stop clears all tickers. In-flight runs complete on their own.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) drive(ctx context.Context, scan *Scan) {
	defer s.wg.Done()
	ticker := time.NewTicker(scan.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, scan)
		}
	}
}

// runOnce executes one tick with single-flight semantics: if the
// previous run of this scan type is still in flight, the tick is
// skipped and counted rather than queued.
func (s *Scheduler) runOnce(ctx context.Context, scan *Scan) {
	if !scan.inFlight.TryLock() {
		s.logger.Warn("Previous run still in flight, skipping tick", "scan_type", scan.Name)
		if s.metrics != nil {
			s.metrics.ScanOverlapsSkipped.WithLabelValues(scan.Name).Inc()
		}
		return
	}
	defer scan.inFlight.Unlock()

	if err := scan.Run(ctx); err != nil {
		// Scheduled runs only log failures and proceed to the next tick.
		s.logger.Error("Scan run failed", "scan_type", scan.Name, "error", err)
	}
}

// CollectAndRun gathers candidates from the sources and runs the
// pipeline over whatever was collected.
func CollectAndRun(ctx context.Context, p *Pipeline, sources []Source, logger *slog.Logger) error {
	var candidates []model.Threat
	for _, source := range sources {
		collected, err := source.Collect(ctx)
		if err != nil {
			logger.Error("Source collection failed, continuing without it",
				"source", source.Name(), "error", err)
			continue
		}
		candidates = append(candidates, collected...)
	}
	if len(candidates) == 0 {
		logger.Debug("No candidates collected this tick")
		return nil
	}
	_, err := p.Run(ctx, candidates)
	return err
}
