package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestTankRow_ToDomain(t *testing.T) {
	row := tankRow{
		TankID:     "T-100",
		Name:       "Diesel 1",
		Shape:      "Horizontal_Cylinder",
		DiameterM:  ptr(2.0),
		LengthM:    ptr(5.0),
		CapacityL:  ptr(15708.0),
		UpperLimit: ptr(90.0),
		LowerLimit: ptr(10.0),
		LimitUnit:  "litres",
		LevelModel: "LINEAR",
	}

	g := row.toDomain()

	assert.Equal(t, "T-100", g.TankID)
	assert.Equal(t, domain.ShapeCylinder, g.Shape)
	assert.Equal(t, domain.LimitLiters, g.LimitUnit)
	assert.Equal(t, domain.LevelLinear, g.LevelModel)
	assert.Equal(t, 2.0, *g.DiameterM)
	assert.Nil(t, g.WidthM)
	assert.Nil(t, g.StatusTag)
}

func TestTankRow_ToDomain_StatusTag(t *testing.T) {
	t.Run("tag with alert", func(t *testing.T) {
		g := tankRow{TankID: "T-1", Shape: "box", StatusTag: ptr("Warning"), StatusAlert: ptr("Maintenance")}.toDomain()
		require.NotNil(t, g.StatusTag)
		assert.Equal(t, domain.Classification{Status: domain.StatusWarning, Alert: "Maintenance"}, *g.StatusTag)
		assert.Equal(t, domain.ShapeRectangular, g.Shape)
	})

	t.Run("empty tag ignored", func(t *testing.T) {
		g := tankRow{TankID: "T-1", Shape: "sphere", StatusTag: ptr("")}.toDomain()
		assert.Nil(t, g.StatusTag)
		assert.Equal(t, domain.ShapeUnknown, g.Shape)
		assert.Equal(t, domain.LimitPercent, g.LimitUnit)
		assert.Equal(t, domain.LevelGeometric, g.LevelModel)
	})
}

func TestReadingRow_ToDomain(t *testing.T) {
	local := time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("EET", 2*60*60))

	r := readingRow{TankID: "T-1", DistanceM: ptr(0.8), ObservedAt: &local}.toDomain()
	require.NotNil(t, r.ObservedAt)
	assert.Equal(t, time.UTC, r.ObservedAt.Location())
	assert.True(t, r.ObservedAt.Equal(local))

	empty := readingRow{TankID: "T-2"}.toDomain()
	assert.Nil(t, empty.DistanceM)
	assert.Nil(t, empty.ObservedAt)
}
