package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

// fixtureNow is the evaluation instant the mock readings were recorded against.
var fixtureNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func readFixture(t *testing.T, name string, v any) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func fixtureTanks(t *testing.T) []domain.TankGeometry {
	t.Helper()
	var tanks []domain.TankGeometry
	readFixture(t, "tanks.json", &tanks)
	return tanks
}

// fixtureRawReadings returns each mock reading as the collector would have
// published it.
func fixtureRawReadings(t *testing.T) []json.RawMessage {
	t.Helper()
	var raws []json.RawMessage
	readFixture(t, "readings.json", &raws)
	return raws
}

func fixtureReadings(t *testing.T) []domain.SensorReading {
	t.Helper()
	var readings []domain.SensorReading
	readFixture(t, "readings.json", &readings)
	return readings
}

// memStore is an in-memory tank registry and reading history.
type memStore struct {
	mu       sync.Mutex
	tanks    []domain.TankGeometry
	readings []domain.SensorReading
	err      error
	lookups  int
}

func (s *memStore) Geometry(_ context.Context, tankID string) (domain.TankGeometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return domain.TankGeometry{}, s.err
	}
	for _, g := range s.tanks {
		if g.TankID == tankID {
			return g, nil
		}
	}
	return domain.TankGeometry{}, domain.ErrTankNotFound
}

func (s *memStore) ListTanks(_ context.Context) ([]domain.TankGeometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.TankGeometry(nil), s.tanks...), nil
}

func (s *memStore) LatestReadings(_ context.Context) ([]domain.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.SensorReading(nil), s.readings...), nil
}

func (s *memStore) LatestReading(ctx context.Context, tankID string) (domain.SensorReading, error) {
	all, err := s.LatestReadings(ctx)
	if err != nil {
		return domain.SensorReading{}, err
	}
	var own []domain.SensorReading
	for _, r := range all {
		if r.TankID == tankID {
			own = append(own, r)
		}
	}
	inputs := domain.PairLatest(nil, own)
	if len(inputs) == 0 {
		return domain.SensorReading{}, domain.ErrNoReading
	}
	return *inputs[0].Reading, nil
}

func newFixtureStore(t *testing.T) *memStore {
	t.Helper()
	return &memStore{tanks: fixtureTanks(t), readings: fixtureReadings(t)}
}
