package domain

import "time"

// FreshnessWindow is how old a reading may be and still count as live.
const FreshnessWindow = 30 * time.Minute

// Freshness is the age assessment of a reading.
type Freshness struct {
	Stale            bool
	MinutesSinceLast *float64
}

// CheckFreshness compares a reading timestamp against now. A missing
// timestamp is always stale. The age is reported whenever a timestamp exists,
// including for readings stamped in the future (negative minutes).
func CheckFreshness(observedAt *time.Time, now time.Time) Freshness {
	if observedAt == nil || observedAt.IsZero() {
		return Freshness{Stale: true}
	}
	age := now.Sub(*observedAt)
	minutes := round(age.Minutes(), 1)
	return Freshness{
		Stale:            age > FreshnessWindow,
		MinutesSinceLast: &minutes,
	}
}

// ApplyStaleness overrides the computed values of a stale reading: volume is
// forced to zero, fill is recomputed against that zero and the tank becomes
// Inactive. Fresh readings pass through untouched. Volume fields are only
// forced for tanks with a known geometry; without one they stay nil.
func ApplyStaleness(m *TankMetrics, f Freshness, hasGeometry bool) {
	m.MinutesSinceLast = f.MinutesSinceLast
	if !f.Stale {
		m.Stale = false
		return
	}

	m.Stale = true
	m.Status = StatusInactive
	m.Alert = AlertNoRecent

	if !hasGeometry {
		return
	}
	zero := 0.0
	m.VolumeL = &zero
	m.FillPct = fillPct(zero, m.CapacityL)
	m.FreeVolumeL = freeVolume(zero, m.CapacityL)
}
