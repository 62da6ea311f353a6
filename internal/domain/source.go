package domain

import (
	"context"
	"errors"
)

var (
	// ErrTankNotFound is returned by sources for tanks without geometry.
	ErrTankNotFound = errors.New("tank not found")

	// ErrNoReading is returned by sources for tanks that never reported.
	ErrNoReading = errors.New("no reading")

	// ErrNoSnapshot is returned by snapshot caches without a live entry.
	ErrNoSnapshot = errors.New("no metrics snapshot")
)

// GeometrySource looks up the configured geometry of a tank.
type GeometrySource interface {
	// Geometry returns ErrTankNotFound when the tank is not configured.
	Geometry(ctx context.Context, tankID string) (TankGeometry, error)
}

// TankLister lists every configured tank.
type TankLister interface {
	ListTanks(ctx context.Context) ([]TankGeometry, error)
}

// ReadingSource supplies the most recent reading per tank. Implementations
// own the ordering rule: latest observed_at, ties broken by insertion order.
type ReadingSource interface {
	LatestReadings(ctx context.Context) ([]SensorReading, error)
	// LatestReading returns ErrNoReading when the tank never reported.
	LatestReading(ctx context.Context, tankID string) (SensorReading, error)
}
