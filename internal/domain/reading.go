package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SensorReading is one distance sample for a tank. DistanceM is nil when the
// sensor failed; ObservedAt is nil when the device did not stamp the sample.
type SensorReading struct {
	TankID     string     `json:"tank_id"`
	DistanceM  *float64   `json:"distance_m"`
	ObservedAt *time.Time `json:"observed_at"`
}

// rawReading mirrors the collector JSON. Timestamps are kept as strings so a
// malformed value degrades to "no timestamp" instead of failing the message.
type rawReading struct {
	TankID     string   `json:"tank_id"`
	DistanceM  *float64 `json:"distance_m"`
	ObservedAt *string  `json:"observed_at"`
}

// ErrMissingTankID is returned for readings that cannot be attributed to a tank.
var ErrMissingTankID = errors.New("missing tank_id")

// ParseRawEvent deserializes a RawEvent's value into a SensorReading. The
// message key is used as the tank id when the payload does not carry one.
func ParseRawEvent(raw RawEvent) (SensorReading, error) {
	var rec rawReading
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return SensorReading{}, fmt.Errorf("parse raw reading: %w", err)
	}

	tankID := strings.TrimSpace(rec.TankID)
	if tankID == "" {
		tankID = strings.TrimSpace(string(raw.Key))
	}
	if tankID == "" {
		return SensorReading{}, fmt.Errorf("parse raw reading: %w", ErrMissingTankID)
	}

	return SensorReading{
		TankID:     tankID,
		DistanceM:  rec.DistanceM,
		ObservedAt: parseObservedAt(rec.ObservedAt),
	}, nil
}

// parseObservedAt accepts RFC 3339 with or without fractional seconds.
// Anything else is treated as absent, which the staleness guard reports.
func parseObservedAt(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
