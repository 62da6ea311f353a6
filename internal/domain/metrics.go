package domain

import (
	"fmt"
	"math"
	"time"
)

// TankMetrics is the level report for one tank at one instant. Every
// nullable field is nil when it cannot be computed from the inputs.
type TankMetrics struct {
	TankID           string     `json:"tank_id"`
	Name             string     `json:"name,omitempty"`
	Shape            Shape      `json:"shape,omitempty"`
	CapacityL        *float64   `json:"capacity_l"`
	DepthM           *float64   `json:"depth_m"`
	VolumeL          *float64   `json:"volume_l"`
	FreeVolumeL      *float64   `json:"free_volume_l"`
	FillPct          *float64   `json:"fill_pct"`
	Status           Status     `json:"status"`
	Alert            string     `json:"alert"`
	Stale            bool       `json:"stale"`
	MinutesSinceLast *float64   `json:"minutes_since_last"`
	ObservedAt       *time.Time `json:"observed_at,omitempty"`
	ComputedAt       time.Time  `json:"computed_at"`
}

// ComputeMetrics runs the level engine for one tank: depth from distance,
// volume from geometry, fill against capacity, the staleness override and
// finally status classification on the post-staleness values.
//
// Either input may be nil. A tank without a reading is Unknown "No Data"; a
// reading without geometry keeps its freshness but has no volume fields. The
// only error is a *GeometryError for non-finite geometry inputs.
func ComputeMetrics(g *TankGeometry, r *SensorReading, now time.Time) (TankMetrics, error) {
	m := TankMetrics{ComputedAt: now}

	if r != nil {
		m.TankID = r.TankID
		m.ObservedAt = r.ObservedAt
	}
	if g != nil {
		if err := g.Validate(); err != nil {
			return TankMetrics{}, fmt.Errorf("tank %s: %w", g.TankID, err)
		}
		m.TankID = g.TankID
		m.Name = g.Name
		m.Shape = g.Shape
		if g.CapacityL != nil && *g.CapacityL >= 0 {
			capacity := *g.CapacityL
			m.CapacityL = &capacity
		}
	}

	if r == nil {
		m.Status, m.Alert = StatusUnknown, AlertNoData
		return m, nil
	}

	freshness := CheckFreshness(r.ObservedAt, now)

	if g == nil {
		m.Status, m.Alert = StatusUnknown, AlertNoValidLevel
		ApplyStaleness(&m, freshness, false)
		return m, nil
	}

	depth := ResolveDepth(*g, r.DistanceM)
	if depth == nil {
		m.Status, m.Alert = StatusUnknown, AlertNoValidLevel
		ApplyStaleness(&m, freshness, true)
		return m, nil
	}

	volume, err := g.VolumeAt(*depth)
	if err != nil {
		return TankMetrics{}, fmt.Errorf("tank %s: %w", g.TankID, err)
	}

	m.DepthM = roundPtr(*depth, 3)
	m.VolumeL = roundPtr(volume, 1)
	m.FillPct = fillPct(volume, m.CapacityL)
	m.FreeVolumeL = freeVolume(volume, m.CapacityL)

	ApplyStaleness(&m, freshness, true)
	if m.Stale {
		return m, nil
	}

	c := classifyLevel(*g, volume)
	m.Status, m.Alert = c.Status, c.Alert
	return m, nil
}

// classifyLevel feeds Classify with the level in the unit the limits use.
// Percent limits on a tank without capacity cannot be evaluated, so the
// limits are treated as unconfigured.
func classifyLevel(g TankGeometry, volume float64) Classification {
	if g.LimitUnit == LimitLiters {
		return Classify(volume, g.UpperLimit, g.LowerLimit, g.StatusTag)
	}
	capacity, ok := g.Capacity()
	if !ok {
		return Classify(0, nil, nil, g.StatusTag)
	}
	return Classify(volume/capacity*100, g.UpperLimit, g.LowerLimit, g.StatusTag)
}

func fillPct(volume float64, capacity *float64) *float64 {
	if capacity == nil || *capacity <= 0 {
		return nil
	}
	return roundPtr(volume / *capacity * 100, 1)
}

func freeVolume(volume float64, capacity *float64) *float64 {
	if capacity == nil {
		return nil
	}
	free := math.Max(*capacity-volume, 0)
	return roundPtr(free, 0)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundPtr(v float64, places int) *float64 {
	r := round(v, places)
	return &r
}
