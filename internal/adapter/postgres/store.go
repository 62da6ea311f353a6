package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/tank-level-service/internal/config"
	"github.com/couchcryptid/tank-level-service/internal/domain"
)

//go:embed schema.sql
var schema string

// Store reads tank geometry and reading history from Postgres.
// It implements domain.GeometrySource, domain.TankLister and domain.ReadingSource.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool and verifies it with a ping.
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = cfg.DBMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const tankColumns = `tank_id, name, shape, diameter_m, length_m, width_m, max_height_m,
	capacity_l, upper_limit, lower_limit, limit_unit, level_model, status_tag, status_alert`

func (s *Store) ListTanks(ctx context.Context) ([]domain.TankGeometry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tankColumns+` FROM tanks ORDER BY tank_id`)
	if err != nil {
		return nil, fmt.Errorf("query tanks: %w", err)
	}
	tanks, err := pgx.CollectRows(rows, pgx.RowToStructByName[tankRow])
	if err != nil {
		return nil, fmt.Errorf("scan tanks: %w", err)
	}

	out := make([]domain.TankGeometry, len(tanks))
	for i, t := range tanks {
		out[i] = t.toDomain()
	}
	return out, nil
}

func (s *Store) Geometry(ctx context.Context, tankID string) (domain.TankGeometry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tankColumns+` FROM tanks WHERE tank_id = $1`, tankID)
	if err != nil {
		return domain.TankGeometry{}, fmt.Errorf("query tank %s: %w", tankID, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[tankRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TankGeometry{}, domain.ErrTankNotFound
	}
	if err != nil {
		return domain.TankGeometry{}, fmt.Errorf("scan tank %s: %w", tankID, err)
	}
	return t.toDomain(), nil
}

// Latest per tank: newest observed_at, unstamped readings last, ties to the
// most recently inserted row.
const latestReadingsQuery = `
	SELECT DISTINCT ON (tank_id) tank_id, distance_m, observed_at
	FROM tank_readings
	ORDER BY tank_id, observed_at DESC NULLS LAST, id DESC`

const latestReadingQuery = `
	SELECT tank_id, distance_m, observed_at
	FROM tank_readings
	WHERE tank_id = $1
	ORDER BY observed_at DESC NULLS LAST, id DESC
	LIMIT 1`

func (s *Store) LatestReadings(ctx context.Context) ([]domain.SensorReading, error) {
	rows, err := s.pool.Query(ctx, latestReadingsQuery)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	readings, err := pgx.CollectRows(rows, pgx.RowToStructByName[readingRow])
	if err != nil {
		return nil, fmt.Errorf("scan latest readings: %w", err)
	}

	out := make([]domain.SensorReading, len(readings))
	for i, r := range readings {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) LatestReading(ctx context.Context, tankID string) (domain.SensorReading, error) {
	rows, err := s.pool.Query(ctx, latestReadingQuery, tankID)
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("query latest reading %s: %w", tankID, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[readingRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SensorReading{}, domain.ErrNoReading
	}
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("scan latest reading %s: %w", tankID, err)
	}
	return r.toDomain(), nil
}

type tankRow struct {
	TankID      string   `db:"tank_id"`
	Name        string   `db:"name"`
	Shape       string   `db:"shape"`
	DiameterM   *float64 `db:"diameter_m"`
	LengthM     *float64 `db:"length_m"`
	WidthM      *float64 `db:"width_m"`
	MaxHeightM  *float64 `db:"max_height_m"`
	CapacityL   *float64 `db:"capacity_l"`
	UpperLimit  *float64 `db:"upper_limit"`
	LowerLimit  *float64 `db:"lower_limit"`
	LimitUnit   string   `db:"limit_unit"`
	LevelModel  string   `db:"level_model"`
	StatusTag   *string  `db:"status_tag"`
	StatusAlert *string  `db:"status_alert"`
}

func (r tankRow) toDomain() domain.TankGeometry {
	g := domain.TankGeometry{
		TankID:     r.TankID,
		Name:       r.Name,
		Shape:      domain.ParseShape(r.Shape),
		DiameterM:  r.DiameterM,
		LengthM:    r.LengthM,
		WidthM:     r.WidthM,
		MaxHeightM: r.MaxHeightM,
		CapacityL:  r.CapacityL,
		UpperLimit: r.UpperLimit,
		LowerLimit: r.LowerLimit,
		LimitUnit:  domain.ParseLimitUnit(r.LimitUnit),
		LevelModel: domain.ParseLevelModel(r.LevelModel),
	}
	if r.StatusTag != nil && *r.StatusTag != "" {
		tag := &domain.Classification{Status: domain.Status(*r.StatusTag)}
		if r.StatusAlert != nil {
			tag.Alert = *r.StatusAlert
		}
		g.StatusTag = tag
	}
	return g
}

type readingRow struct {
	TankID     string     `db:"tank_id"`
	DistanceM  *float64   `db:"distance_m"`
	ObservedAt *time.Time `db:"observed_at"`
}

func (r readingRow) toDomain() domain.SensorReading {
	reading := domain.SensorReading{TankID: r.TankID, DistanceM: r.DistanceM}
	if r.ObservedAt != nil {
		at := r.ObservedAt.UTC()
		reading.ObservedAt = &at
	}
	return reading
}
