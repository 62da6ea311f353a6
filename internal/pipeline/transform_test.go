package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/pipeline"
)

func TestTankTransformer_WithMockData(t *testing.T) {
	store := newFixtureStore(t)
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(store, clockwork.NewFakeClockAt(fixtureNow), slog.Default(), metrics)

	expected := []struct {
		tankID string
		status domain.Status
		alert  string
		volume *float64
		fill   *float64
	}{
		{"T-100", domain.StatusInactive, domain.AlertNoRecent, ptr(0), ptr(0)},
		{"T-100", domain.StatusOK, domain.AlertNormal, ptr(7854.0), ptr(50.0)},
		{"T-200", domain.StatusWarning, domain.AlertHighLevel, ptr(797529.0), ptr(97.2)},
		{"T-300", domain.StatusOK, domain.AlertNormal, ptr(2827.5), ptr(83.3)},
		{"T-400", domain.StatusInactive, domain.AlertNoRecent, ptr(0), ptr(0)},
		{"T-500", domain.StatusUnknown, domain.AlertNoValidLevel, nil, nil},
	}

	raws := fixtureRawReadings(t)
	require.Len(t, raws, len(expected))

	for i, value := range raws {
		want := expected[i]
		t.Run(want.tankID, func(t *testing.T) {
			m, err := tfm.Transform(context.Background(), domain.RawEvent{Value: value})
			require.NoError(t, err)

			assert.Equal(t, want.tankID, m.TankID)
			assert.Equal(t, want.status, m.Status)
			assert.Equal(t, want.alert, m.Alert)
			assert.Equal(t, fixtureNow, m.ComputedAt)
			assertNullableNear(t, want.volume, m.VolumeL)
			assertNullableNear(t, want.fill, m.FillPct)
		})
	}

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.StaleReadings), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.TankStatus.WithLabelValues("OK")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TankStatus.WithLabelValues("Unknown")), 0)
}

func TestTankTransformer_InvalidMessage(t *testing.T) {
	tfm := pipeline.NewTransformer(newFixtureStore(t), clockwork.NewFakeClockAt(fixtureNow), slog.Default(), newTestMetrics())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestTankTransformer_GeometryLookupFailure(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	tfm := pipeline.NewTransformer(store, clockwork.NewFakeClockAt(fixtureNow), slog.Default(), newTestMetrics())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{"tank_id":"T-100","distance_m":1}`)})
	require.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTankTransformer_InvalidGeometryIsNotRetried(t *testing.T) {
	bad := fixtureTanks(t)[0]
	bad.DiameterM = ptr(posInf())
	tfm := pipeline.NewTransformer(&memStore{tanks: []domain.TankGeometry{bad}}, clockwork.NewFakeClockAt(fixtureNow), slog.Default(), newTestMetrics())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{"tank_id":"T-100","distance_m":1,"observed_at":"2026-03-01T11:59:00Z"}`)})
	var gerr *domain.GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.NotErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func assertNullableNear(t *testing.T, want, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.InDelta(t, *want, *got, 0.05)
}
