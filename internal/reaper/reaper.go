package reaper

import (
	"context"
	"time"

	"raidward/internal/metrics"
	"raidward/internal/schedule"

	"go.uber.org/zap"
)

// Sweepable is any expiry-keyed in-memory registry: a sweep removes entries
// idle beyond the registry's own horizon and reports how many went.
type Sweepable interface {
	Sweep(now time.Time) int
}

// SweepFunc adapts a bare function to Sweepable.
type SweepFunc func(now time.Time) int

func (f SweepFunc) Sweep(now time.Time) int { return f(now) }

// Target pairs a registry with a name for logging.
type Target struct {
	Name  string
	Store Sweepable
}

// Reaper periodically sweeps every registered target on one fixed interval,
// independent of any guild.
type Reaper struct {
	interval time.Duration
	clock    schedule.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
	targets  []Target
}

func New(interval time.Duration, clock schedule.Clock, m *metrics.Metrics, logger *zap.Logger, targets ...Target) *Reaper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Reaper{interval: interval, clock: clock, metrics: m, logger: logger, targets: targets}
}

// Run blocks until ctx is cancelled, sweeping once per interval. Ticks come
// from the clock so tests can drive them.
func (r *Reaper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.interval):
			r.SweepOnce()
		}
	}
}

// SweepOnce runs a single pass over every target.
func (r *Reaper) SweepOnce() int {
	now := r.clock.Now()
	total := 0
	for _, target := range r.targets {
		dropped := target.Store.Sweep(now)
		if dropped > 0 {
			r.logger.Debug("reaped idle records",
				zap.String("target", target.Name),
				zap.Int("dropped", dropped))
		}
		total += dropped
	}
	if total > 0 {
		r.metrics.ReapedRecords.Add(float64(total))
	}
	return total
}
