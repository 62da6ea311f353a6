package domain

import (
	"sort"
	"time"
)

// TankInput pairs a tank's geometry with its latest reading. Either side may
// be nil.
type TankInput struct {
	TankID   string
	Geometry *TankGeometry
	Reading  *SensorReading
}

// FleetReport is the fleet-wide view returned to API callers.
type FleetReport struct {
	Tanks      []TankMetrics `json:"tanks"`
	Summary    FleetSummary  `json:"summary"`
	ComputedAt time.Time     `json:"computed_at"`
}

// FleetSummary folds the per-tank records of a fleet report.
type FleetSummary struct {
	TankCount      int            `json:"tank_count"`
	StatusCounts   map[Status]int `json:"status_counts"`
	StaleCount     int            `json:"stale_count"`
	TotalCapacityL float64        `json:"total_capacity_l"`
	TotalVolumeL   float64        `json:"total_volume_l"`
	FillPct        WindowStats    `json:"fill_pct"`
	VolumeL        WindowStats    `json:"volume_l"`
}

// WindowStats is the min/max/avg of the non-null values in a window.
type WindowStats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
}

// PairLatest matches every configured tank with its most recent reading and
// appends readings whose tank has no geometry. When several readings exist
// for one tank the latest observed_at wins; ties go to the later element,
// matching insertion order. Readings without a timestamp only win when the
// tank has no timestamped reading. Results are sorted by tank id.
func PairLatest(tanks []TankGeometry, readings []SensorReading) []TankInput {
	latest := make(map[string]*SensorReading, len(readings))
	for i := range readings {
		r := &readings[i]
		if cur, ok := latest[r.TankID]; !ok || !newerThan(cur, r) {
			latest[r.TankID] = r
		}
	}

	inputs := make([]TankInput, 0, len(tanks)+len(latest))
	seen := make(map[string]bool, len(tanks))
	for i := range tanks {
		g := &tanks[i]
		if seen[g.TankID] {
			continue
		}
		seen[g.TankID] = true
		inputs = append(inputs, TankInput{TankID: g.TankID, Geometry: g, Reading: latest[g.TankID]})
	}
	for id, r := range latest {
		if seen[id] {
			continue
		}
		inputs = append(inputs, TankInput{TankID: id, Reading: r})
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].TankID < inputs[j].TankID })
	return inputs
}

// newerThan reports whether cur is strictly newer than candidate.
func newerThan(cur, candidate *SensorReading) bool {
	switch {
	case cur.ObservedAt == nil:
		return false
	case candidate.ObservedAt == nil:
		return true
	default:
		return cur.ObservedAt.After(*candidate.ObservedAt)
	}
}

// ComputeFleet evaluates every tank sequentially. The first geometry error
// aborts the evaluation.
func ComputeFleet(tanks []TankGeometry, readings []SensorReading, now time.Time) ([]TankMetrics, error) {
	inputs := PairLatest(tanks, readings)
	out := make([]TankMetrics, 0, len(inputs))
	for _, in := range inputs {
		m, err := ComputeMetrics(in.Geometry, in.Reading, now)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SummarizeFleet folds per-tank metrics into fleet totals.
func SummarizeFleet(metrics []TankMetrics) FleetSummary {
	s := FleetSummary{
		TankCount:    len(metrics),
		StatusCounts: make(map[Status]int),
	}
	fills := make([]*float64, 0, len(metrics))
	volumes := make([]*float64, 0, len(metrics))
	for _, m := range metrics {
		s.StatusCounts[m.Status]++
		if m.Stale {
			s.StaleCount++
		}
		if m.CapacityL != nil {
			s.TotalCapacityL += *m.CapacityL
		}
		if m.VolumeL != nil {
			s.TotalVolumeL += *m.VolumeL
		}
		fills = append(fills, m.FillPct)
		volumes = append(volumes, m.VolumeL)
	}
	s.TotalCapacityL = round(s.TotalCapacityL, 1)
	s.TotalVolumeL = round(s.TotalVolumeL, 1)
	s.FillPct = FoldWindow(fills)
	s.VolumeL = FoldWindow(volumes)
	return s
}

// FoldWindow computes min, max and average over the non-nil values. All
// three are nil for an empty window.
func FoldWindow(values []*float64) WindowStats {
	var st WindowStats
	var sum, lo, hi float64
	for _, v := range values {
		if v == nil {
			continue
		}
		if st.Count == 0 || *v < lo {
			lo = *v
		}
		if st.Count == 0 || *v > hi {
			hi = *v
		}
		sum += *v
		st.Count++
	}
	if st.Count == 0 {
		return st
	}
	st.Min = &lo
	st.Max = &hi
	st.Avg = roundPtr(sum/float64(st.Count), 1)
	return st
}
