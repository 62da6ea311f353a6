package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/observability"
)

// TankTransformer implements Transformer by pairing each reading with the
// geometry of its tank and running the level engine at the current time.
type TankTransformer struct {
	geometry domain.GeometrySource
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a TankTransformer. A nil clock uses the real clock.
func NewTransformer(geometry domain.GeometrySource, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *TankTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TankTransformer{
		geometry: geometry,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *TankTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.TankMetrics, error) {
	reading, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.TankMetrics{}, err
	}

	var geometry *domain.TankGeometry
	g, err := t.geometry.Geometry(ctx, reading.TankID)
	switch {
	case err == nil:
		geometry = &g
	case errors.Is(err, domain.ErrTankNotFound):
		t.logger.Debug("reading for unconfigured tank", "tank_id", reading.TankID)
	default:
		return domain.TankMetrics{}, fmt.Errorf("%w: geometry for %s: %w", ErrSourceUnavailable, reading.TankID, err)
	}

	m, err := domain.ComputeMetrics(geometry, &reading, t.clock.Now())
	if err != nil {
		return domain.TankMetrics{}, err
	}

	t.metrics.TankStatus.WithLabelValues(string(m.Status)).Inc()
	if m.Stale {
		t.metrics.StaleReadings.Inc()
	}
	return m, nil
}
