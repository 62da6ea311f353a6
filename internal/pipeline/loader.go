package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

// FanoutLoader writes every batch to a primary loader and then to any number
// of best-effort secondaries. Only a primary failure fails the batch.
type FanoutLoader struct {
	primary     BatchLoader
	secondaries []BatchLoader
	logger      *slog.Logger
}

// NewFanoutLoader creates a FanoutLoader. Nil secondaries are ignored.
func NewFanoutLoader(primary BatchLoader, logger *slog.Logger, secondaries ...BatchLoader) *FanoutLoader {
	kept := make([]BatchLoader, 0, len(secondaries))
	for _, s := range secondaries {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutLoader{primary: primary, secondaries: kept, logger: logger}
}

func (f *FanoutLoader) LoadBatch(ctx context.Context, metrics []domain.TankMetrics) error {
	if err := f.primary.LoadBatch(ctx, metrics); err != nil {
		return err
	}
	for _, s := range f.secondaries {
		if err := s.LoadBatch(ctx, metrics); err != nil {
			f.logger.Warn("secondary load failed", "error", err, "batch_size", len(metrics))
		}
	}
	return nil
}
