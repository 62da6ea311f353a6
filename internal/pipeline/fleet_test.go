package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/pipeline"
)

func ptr(v float64) *float64 { return &v }

func posInf() float64 { return math.Inf(1) }

func newFleetEvaluator(store *memStore, workers int) *pipeline.FleetEvaluator {
	return pipeline.NewFleetEvaluator(store, store, store, slog.Default(), newTestMetrics(), pipeline.FleetOptions{
		Clock:   clockwork.NewFakeClockAt(fixtureNow),
		Workers: workers,
	})
}

func TestFleetEvaluator_EvaluateFleet(t *testing.T) {
	for _, workers := range []int{1, 4} {
		report, err := newFleetEvaluator(newFixtureStore(t), workers).EvaluateFleet(context.Background())
		require.NoError(t, err)

		type row struct {
			TankID string
			Status domain.Status
			Alert  string
		}
		got := make([]row, 0, len(report.Tanks))
		for _, m := range report.Tanks {
			got = append(got, row{m.TankID, m.Status, m.Alert})
		}
		want := []row{
			{"T-100", domain.StatusOK, domain.AlertNormal},
			{"T-200", domain.StatusWarning, domain.AlertHighLevel},
			{"T-300", domain.StatusOK, domain.AlertNormal},
			{"T-400", domain.StatusInactive, domain.AlertNoRecent},
			{"T-500", domain.StatusUnknown, domain.AlertNoValidLevel},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("fleet mismatch with %d workers (-want +got):\n%s", workers, diff)
		}

		s := report.Summary
		assert.Equal(t, 5, s.TankCount)
		assert.Equal(t, map[domain.Status]int{
			domain.StatusOK:       2,
			domain.StatusWarning:  1,
			domain.StatusInactive: 1,
			domain.StatusUnknown:  1,
		}, s.StatusCounts)
		assert.Equal(t, 1, s.StaleCount)
		assert.InDelta(t, 869547.5, s.TotalCapacityL, 0.05)
		assert.InDelta(t, 808210.5, s.TotalVolumeL, 0.1)
		assert.Equal(t, fixtureNow, report.ComputedAt)
	}
}

func TestFleetEvaluator_EvaluateFleet_SourceError(t *testing.T) {
	store := &memStore{err: errors.New("pool closed")}

	_, err := newFleetEvaluator(store, 2).EvaluateFleet(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool closed")
}

func TestFleetEvaluator_EvaluateFleet_InvalidGeometryKeepsFleet(t *testing.T) {
	store := newFixtureStore(t)
	store.tanks[1].WidthM = ptr(math.NaN())

	report, err := newFleetEvaluator(store, 2).EvaluateFleet(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tanks, 5)

	bad := report.Tanks[1]
	assert.Equal(t, "T-200", bad.TankID)
	assert.Equal(t, domain.StatusUnknown, bad.Status)
	assert.Equal(t, domain.AlertNoValidLevel, bad.Alert)
	assert.Nil(t, bad.VolumeL)
	assert.Nil(t, bad.CapacityL)
	assert.False(t, bad.Stale)
	require.NotNil(t, bad.MinutesSinceLast)
	assert.Equal(t, 2.0, *bad.MinutesSinceLast)
	assert.Equal(t, fixtureNow, bad.ComputedAt)

	assert.Equal(t, domain.StatusOK, report.Tanks[0].Status)
	assert.Equal(t, 2, report.Summary.StatusCounts[domain.StatusUnknown])
}

func TestFleetEvaluator_EvaluateTank_GeometryError(t *testing.T) {
	store := newFixtureStore(t)
	store.tanks[1].WidthM = ptr(math.NaN())

	_, err := newFleetEvaluator(store, 2).EvaluateTank(context.Background(), "T-200")
	var gerr *domain.GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "width_m", gerr.Field)
}

func TestFleetEvaluator_EvaluateTank(t *testing.T) {
	ev := newFleetEvaluator(newFixtureStore(t), 2)

	t.Run("configured tank uses latest reading", func(t *testing.T) {
		m, err := ev.EvaluateTank(context.Background(), "T-100")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOK, m.Status)
		assert.InDelta(t, 7854.0, *m.VolumeL, 0.05)
	})

	t.Run("reading without geometry", func(t *testing.T) {
		m, err := ev.EvaluateTank(context.Background(), "T-500")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnknown, m.Status)
		assert.Nil(t, m.CapacityL)
	})

	t.Run("unknown tank", func(t *testing.T) {
		_, err := ev.EvaluateTank(context.Background(), "T-999")
		require.ErrorIs(t, err, domain.ErrTankNotFound)
	})
}

func TestFleetEvaluator_EvaluateTank_GeometryWithoutReading(t *testing.T) {
	store := newFixtureStore(t)
	store.readings = nil

	m, err := newFleetEvaluator(store, 1).EvaluateTank(context.Background(), "T-200")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, m.Status)
	assert.Equal(t, domain.AlertNoData, m.Alert)
}
