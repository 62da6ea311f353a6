package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/observability"
)

// FleetEvaluator computes on-demand metrics for one tank or the whole fleet
// from the tank registry and reading history.
type FleetEvaluator struct {
	tanks    domain.TankLister
	geometry domain.GeometrySource
	readings domain.ReadingSource
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
	workers  int
}

// FleetOptions tunes a FleetEvaluator.
type FleetOptions struct {
	Clock   clockwork.Clock
	Timeout time.Duration
	Workers int
}

// NewFleetEvaluator creates a FleetEvaluator. Zero options fall back to the
// real clock, a 10s timeout and 8 workers.
func NewFleetEvaluator(tanks domain.TankLister, geometry domain.GeometrySource, readings domain.ReadingSource, logger *slog.Logger, metrics *observability.Metrics, opts FleetOptions) *FleetEvaluator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &FleetEvaluator{
		tanks:    tanks,
		geometry: geometry,
		readings: readings,
		clock:    opts.Clock,
		logger:   logger,
		metrics:  metrics,
		timeout:  opts.Timeout,
		workers:  opts.Workers,
	}
}

// EvaluateFleet returns metrics for every configured tank and every tank
// with readings, plus a fleet summary. All tanks are evaluated at one instant.
// A tank with non-finite geometry is reported as Unknown "No valid level"
// instead of failing the whole fleet.
func (f *FleetEvaluator) EvaluateFleet(ctx context.Context) (domain.FleetReport, error) {
	start := time.Now()
	defer func() { f.metrics.FleetEvaluationDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		tanks    []domain.TankGeometry
		readings []domain.SensorReading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tanks, err = f.tanks.ListTanks(gctx)
		if err != nil {
			return fmt.Errorf("list tanks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		readings, err = f.readings.LatestReadings(gctx)
		if err != nil {
			return fmt.Errorf("latest readings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.FleetReport{}, err
	}

	now := f.clock.Now()
	inputs := domain.PairLatest(tanks, readings)
	out := make([]domain.TankMetrics, len(inputs))

	cg := new(errgroup.Group)
	cg.SetLimit(f.workers)
	for i, in := range inputs {
		cg.Go(func() error {
			m, err := domain.ComputeMetrics(in.Geometry, in.Reading, now)
			var gerr *domain.GeometryError
			if errors.As(err, &gerr) {
				f.logger.Warn("tank geometry invalid", "tank_id", in.TankID, "field", gerr.Field, "error", err)
				m, err = invalidGeometryMetrics(in, now), nil
			}
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := cg.Wait(); err != nil {
		return domain.FleetReport{}, err
	}

	f.logger.Debug("fleet evaluated", "tanks", len(out), "readings", len(readings))
	return domain.FleetReport{
		Tanks:      out,
		Summary:    domain.SummarizeFleet(out),
		ComputedAt: now,
	}, nil
}

// EvaluateTank returns the current metrics of one tank. It returns
// domain.ErrTankNotFound when the tank has neither geometry nor readings.
func (f *FleetEvaluator) EvaluateTank(ctx context.Context, tankID string) (domain.TankMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		geometry *domain.TankGeometry
		reading  *domain.SensorReading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tg, err := f.geometry.Geometry(gctx, tankID)
		switch {
		case err == nil:
			geometry = &tg
		case !errors.Is(err, domain.ErrTankNotFound):
			return fmt.Errorf("geometry for %s: %w", tankID, err)
		}
		return nil
	})
	g.Go(func() error {
		r, err := f.readings.LatestReading(gctx, tankID)
		switch {
		case err == nil:
			reading = &r
		case !errors.Is(err, domain.ErrNoReading):
			return fmt.Errorf("latest reading for %s: %w", tankID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.TankMetrics{}, err
	}

	if geometry == nil && reading == nil {
		return domain.TankMetrics{}, domain.ErrTankNotFound
	}
	return domain.ComputeMetrics(geometry, reading, f.clock.Now())
}

// invalidGeometryMetrics reports a tank whose geometry cannot be evaluated.
// Freshness is still derived from the reading.
func invalidGeometryMetrics(in domain.TankInput, now time.Time) domain.TankMetrics {
	m := domain.TankMetrics{
		TankID:     in.TankID,
		Status:     domain.StatusUnknown,
		Alert:      domain.AlertNoValidLevel,
		ComputedAt: now,
	}
	if in.Geometry != nil {
		m.Name = in.Geometry.Name
		m.Shape = in.Geometry.Shape
	}
	if in.Reading != nil {
		f := domain.CheckFreshness(in.Reading.ObservedAt, now)
		m.Stale = f.Stale
		m.MinutesSinceLast = f.MinutesSinceLast
		m.ObservedAt = in.Reading.ObservedAt
	}
	return m
}
