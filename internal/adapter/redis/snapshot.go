package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/tank-level-service/internal/config"
	"github.com/couchcryptid/tank-level-service/internal/domain"
	"github.com/couchcryptid/tank-level-service/internal/observability"
)

// AlertChannel receives every Warning or Inactive metrics record as JSON.
const AlertChannel = "tanks:alerts"

// SnapshotStore keeps the latest metrics of every tank in a Redis hash and
// publishes alerting records. It implements pipeline.BatchLoader.
type SnapshotStore struct {
	client  *goredis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient connects to the configured Redis and verifies it with a ping.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewSnapshotStore creates a SnapshotStore over an existing client.
func NewSnapshotStore(client *goredis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func snapshotKey(tankID string) string {
	return fmt.Sprintf("tank:%s:metrics", tankID)
}

// writeSnapshot replaces a tank snapshot unless the stored one was observed
// later, so redelivered or late readings never roll a tank back. Equal
// observation times go to the newer write. Alerts are published only for
// accepted snapshots.
//
// KEYS[1] snapshot hash
// ARGV[1] observed_ms, ARGV[2] ttl ms, ARGV[3] alert channel or "",
// ARGV[4] payload, ARGV[5..] remaining field/value pairs.
var writeSnapshot = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'observed_ms')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'observed_ms', ARGV[1], 'payload', ARGV[4], unpack(ARGV, 5))
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if ARGV[3] ~= '' then
	redis.call('PUBLISH', ARGV[3], ARGV[4])
end
return 1
`)

// unstampedMillis orders readings without a timestamp before every stamped one.
const unstampedMillis = -1

// LoadBatch writes one hash per record and publishes alerts, all in one
// pipeline round trip.
func (s *SnapshotStore) LoadBatch(ctx context.Context, metrics []domain.TankMetrics) error {
	if len(metrics) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.Cmd, 0, len(metrics))
	for i := range metrics {
		m := &metrics[i]
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", m.TankID, err)
		}

		channel := ""
		if alerting(m.Status) {
			channel = AlertChannel
		}
		args := []any{observedMillis(m), s.ttl.Milliseconds(), channel, payload}
		args = append(args, snapshotFields(m)...)
		cmds = append(cmds, writeSnapshot.Eval(ctx, pipe, []string{snapshotKey(m.TankID)}, args...))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.metrics.SnapshotWrites.WithLabelValues("error").Add(float64(len(metrics)))
		return fmt.Errorf("redis snapshot pipeline: %w", err)
	}

	var written, superseded int
	for i, cmd := range cmds {
		if n, _ := cmd.Int(); n == 1 {
			written++
			continue
		}
		superseded++
		s.logger.Debug("snapshot superseded by a newer reading", "tank_id", metrics[i].TankID)
	}
	s.metrics.SnapshotWrites.WithLabelValues("success").Add(float64(written))
	s.metrics.SnapshotWrites.WithLabelValues("superseded").Add(float64(superseded))
	return nil
}

// Get returns the latest snapshot of a tank, or domain.ErrNoSnapshot.
func (s *SnapshotStore) Get(ctx context.Context, tankID string) (domain.TankMetrics, error) {
	payload, err := s.client.HGet(ctx, snapshotKey(tankID), "payload").Result()
	if errors.Is(err, goredis.Nil) {
		return domain.TankMetrics{}, domain.ErrNoSnapshot
	}
	if err != nil {
		return domain.TankMetrics{}, fmt.Errorf("redis get snapshot %s: %w", tankID, err)
	}

	var m domain.TankMetrics
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return domain.TankMetrics{}, fmt.Errorf("decode snapshot %s: %w", tankID, err)
	}
	return m, nil
}

// CheckReadiness pings Redis.
func (s *SnapshotStore) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func alerting(status domain.Status) bool {
	return status == domain.StatusWarning || status == domain.StatusInactive
}

// snapshotFields flattens the headline values next to the full JSON payload
// so operators can read them with HGETALL.
func snapshotFields(m *domain.TankMetrics) []any {
	return []any{
		"status", string(m.Status),
		"alert", m.Alert,
		"stale", strconv.FormatBool(m.Stale),
		"computed_at", m.ComputedAt.Format(time.RFC3339),
		"fill_pct", formatNullable(m.FillPct),
		"volume_l", formatNullable(m.VolumeL),
	}
}

func observedMillis(m *domain.TankMetrics) int64 {
	if m.ObservedAt == nil || m.ObservedAt.IsZero() {
		return unstampedMillis
	}
	return m.ObservedAt.UnixMilli()
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
