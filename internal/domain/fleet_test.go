package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairLatest(t *testing.T) {
	cyl := cylinderTank()
	rect := rectangularTank()

	readings := []SensorReading{
		{TankID: "T-100", DistanceM: ptr(1.5), ObservedAt: ago(20 * time.Minute)},
		{TankID: "T-100", DistanceM: ptr(1.0), ObservedAt: ago(5 * time.Minute)},
		{TankID: "T-100", DistanceM: ptr(0.5), ObservedAt: ago(10 * time.Minute)},
		{TankID: "T-050", DistanceM: ptr(2.0), ObservedAt: ago(time.Minute)},
	}

	inputs := PairLatest([]TankGeometry{rect, cyl}, readings)
	require.Len(t, inputs, 3)

	assert.Equal(t, "T-050", inputs[0].TankID)
	assert.Nil(t, inputs[0].Geometry)
	require.NotNil(t, inputs[0].Reading)

	assert.Equal(t, "T-100", inputs[1].TankID)
	require.NotNil(t, inputs[1].Reading)
	assert.Equal(t, 1.0, *inputs[1].Reading.DistanceM)

	assert.Equal(t, "T-200", inputs[2].TankID)
	assert.NotNil(t, inputs[2].Geometry)
	assert.Nil(t, inputs[2].Reading)
}

func TestPairLatest_TieBreaksByInsertionOrder(t *testing.T) {
	at := ago(5 * time.Minute)
	readings := []SensorReading{
		{TankID: "T-100", DistanceM: ptr(1.0), ObservedAt: at},
		{TankID: "T-100", DistanceM: ptr(0.7), ObservedAt: at},
	}

	inputs := PairLatest([]TankGeometry{cylinderTank()}, readings)
	require.Len(t, inputs, 1)
	assert.Equal(t, 0.7, *inputs[0].Reading.DistanceM)
}

func TestPairLatest_TimestampedReadingBeatsUnstamped(t *testing.T) {
	readings := []SensorReading{
		{TankID: "T-100", DistanceM: ptr(1.0), ObservedAt: ago(time.Minute)},
		{TankID: "T-100", DistanceM: ptr(0.2)},
	}

	inputs := PairLatest([]TankGeometry{cylinderTank()}, readings)
	assert.Equal(t, 1.0, *inputs[0].Reading.DistanceM)
}

func TestPairLatest_DuplicateGeometryKeepsFirst(t *testing.T) {
	first := cylinderTank()
	second := cylinderTank()
	second.Name = "duplicate"

	inputs := PairLatest([]TankGeometry{first, second}, nil)
	require.Len(t, inputs, 1)
	assert.Equal(t, "Diesel 1", inputs[0].Geometry.Name)
}

func TestComputeFleet(t *testing.T) {
	tanks := []TankGeometry{cylinderTank(), rectangularTank()}
	readings := []SensorReading{
		{TankID: "T-100", DistanceM: ptr(1), ObservedAt: ago(time.Minute)},
		{TankID: "T-300", DistanceM: ptr(1), ObservedAt: ago(time.Minute)},
	}

	metrics, err := ComputeFleet(tanks, readings, testNow)
	require.NoError(t, err)
	require.Len(t, metrics, 3)

	assert.Equal(t, "T-100", metrics[0].TankID)
	assert.Equal(t, StatusOK, metrics[0].Status)

	assert.Equal(t, "T-200", metrics[1].TankID)
	assert.Equal(t, StatusUnknown, metrics[1].Status)
	assert.Equal(t, AlertNoData, metrics[1].Alert)
	assert.Nil(t, metrics[1].VolumeL)

	assert.Equal(t, "T-300", metrics[2].TankID)
	assert.Nil(t, metrics[2].CapacityL)
	assert.Nil(t, metrics[2].VolumeL)
}

func TestComputeFleet_GeometryErrorAborts(t *testing.T) {
	bad := cylinderTank()
	bad.LengthM = ptr(math.NaN())

	_, err := ComputeFleet([]TankGeometry{bad}, []SensorReading{{TankID: "T-100", DistanceM: ptr(1)}}, testNow)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
}

func TestSummarizeFleet(t *testing.T) {
	metrics := []TankMetrics{
		{TankID: "a", Status: StatusOK, CapacityL: ptr(1000), VolumeL: ptr(400), FillPct: ptr(40)},
		{TankID: "b", Status: StatusWarning, CapacityL: ptr(2000), VolumeL: ptr(1900), FillPct: ptr(95)},
		{TankID: "c", Status: StatusInactive, Stale: true, CapacityL: ptr(500), VolumeL: ptr(0), FillPct: ptr(0)},
		{TankID: "d", Status: StatusUnknown},
	}

	s := SummarizeFleet(metrics)

	assert.Equal(t, 4, s.TankCount)
	assert.Equal(t, map[Status]int{StatusOK: 1, StatusWarning: 1, StatusInactive: 1, StatusUnknown: 1}, s.StatusCounts)
	assert.Equal(t, 1, s.StaleCount)
	assert.Equal(t, 3500.0, s.TotalCapacityL)
	assert.Equal(t, 2300.0, s.TotalVolumeL)

	assert.Equal(t, 3, s.FillPct.Count)
	assert.Equal(t, 0.0, *s.FillPct.Min)
	assert.Equal(t, 95.0, *s.FillPct.Max)
	assert.Equal(t, 45.0, *s.FillPct.Avg)
}

func TestFoldWindow(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		st := FoldWindow(nil)
		assert.Zero(t, st.Count)
		assert.Nil(t, st.Min)
		assert.Nil(t, st.Max)
		assert.Nil(t, st.Avg)
	})

	t.Run("only nulls", func(t *testing.T) {
		st := FoldWindow([]*float64{nil, nil})
		assert.Zero(t, st.Count)
		assert.Nil(t, st.Avg)
	})

	t.Run("mixed", func(t *testing.T) {
		st := FoldWindow([]*float64{ptr(12.5), nil, ptr(-3), ptr(40)})
		assert.Equal(t, 3, st.Count)
		assert.Equal(t, -3.0, *st.Min)
		assert.Equal(t, 40.0, *st.Max)
		assert.Equal(t, 16.5, *st.Avg)
	})
}
