//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

// fixtureNow is the evaluation instant the mock readings were recorded against.
var fixtureNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("tank-level-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readFixture(t *testing.T, name string, v any) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// loadMockReadings returns the mock readings as raw collector payloads.
func loadMockReadings(t *testing.T) []json.RawMessage {
	t.Helper()
	var raws []json.RawMessage
	readFixture(t, "readings.json", &raws)
	return raws
}

// geometryStore serves the mock tank registry from memory.
type geometryStore map[string]domain.TankGeometry

func loadGeometryStore(t *testing.T) geometryStore {
	t.Helper()
	var tanks []domain.TankGeometry
	readFixture(t, "tanks.json", &tanks)

	store := make(geometryStore, len(tanks))
	for _, g := range tanks {
		store[g.TankID] = g
	}
	return store
}

func (s geometryStore) Geometry(_ context.Context, tankID string) (domain.TankGeometry, error) {
	g, ok := s[tankID]
	if !ok {
		return domain.TankGeometry{}, domain.ErrTankNotFound
	}
	return g, nil
}
