package domain

import "math"

// Status is the discrete state reported for a tank.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "Warning"
	StatusInactive Status = "Inactive"
	StatusUnknown  Status = "Unknown"
)

// Alert messages attached to a status.
const (
	AlertNormal       = "Normal"
	AlertHighLevel    = "High level"
	AlertLowLevel     = "Low level"
	AlertNoRecent     = "No reading in last 30 minutes"
	AlertNoData       = "No Data"
	AlertNoValidLevel = "No valid level"
)

// Classification pairs a status with its alert message.
type Classification struct {
	Status Status `json:"status"`
	Alert  string `json:"alert"`
}

var normal = Classification{Status: StatusOK, Alert: AlertNormal}

// Classify maps a level (fill percentage or liters, matching the unit the
// limits are configured in) onto a status. Limit comparisons are inclusive, so
// a level exactly at a limit raises the alert. Nil or NaN limits count as not
// configured; with neither configured the external tag wins, defaulting to
// OK "Normal".
func Classify(level float64, upper, lower *float64, external *Classification) Classification {
	hasUpper := configured(upper)
	hasLower := configured(lower)

	if !hasUpper && !hasLower {
		if external != nil && external.Status != "" {
			return *external
		}
		return normal
	}

	switch {
	case hasUpper && level >= *upper:
		return Classification{Status: StatusWarning, Alert: AlertHighLevel}
	case hasLower && level <= *lower:
		return Classification{Status: StatusWarning, Alert: AlertLowLevel}
	default:
		return normal
	}
}

func configured(limit *float64) bool {
	return limit != nil && !math.IsNaN(*limit)
}
