// Package domain models storage tanks instrumented with a single top-mounted
// distance sensor and derives level metrics from their readings.
//
// # Data Source
//
// Each sensor (ultrasonic or lidar) reports the distance from its fixed mount
// at the top of the tank down to the liquid surface. An upstream collector
// publishes each reading as flat JSON to the Kafka source topic:
//
//	{"tank_id": "T-104", "distance_m": 1.42, "observed_at": "2026-03-01T09:15:00Z"}
//
// distance_m is null when the sensor failed to produce an echo. observed_at is
// null when the device clock was not set.
//
// # Tank Conventions
//
// Shapes:
//
//	cylinder     horizontal cylinder lying on its side; diameter_m, length_m.
//	             The tallest possible liquid column equals the diameter.
//	rectangular  rectangular prism; width_m, length_m, max_height_m.
//
// The shape is an explicit field on [TankGeometry]. It is never inferred from
// the tank name.
//
// Depth from distance:
//
//	depth = clamp(max_depth - distance, 0, max_depth)
//
// Volume:
//
//	cylinder     L * (R²·acos((R-h)/R) - (R-h)·√(2Rh-h²)) * 1000 liters
//	rectangular  W * L * h * 1000 liters
//
// A tank may opt into the linear level model, where volume is
// capacity * depth / max_depth. The geometric model is the default.
//
// # Status Classification
//
// Safe limits are configured per tank either in percent of capacity or in
// absolute liters. Comparisons are inclusive on both ends:
//
//	level >= upper_limit  Warning "High level"
//	level <= lower_limit  Warning "Low level"
//	otherwise             OK      "Normal"
//
// # Staleness
//
// A reading older than [FreshnessWindow] (30 minutes), or one without a
// timestamp, is never reported as a live level: volume is forced to zero and
// the tank is reported as Inactive "No reading in last 30 minutes".
//
// # Rounding
//
// Depth is rounded to the millimetre, volume and fill percentage to one
// decimal place, free volume to the nearest liter. Fill percentage is not
// clamped: values above 100 mean the configured capacity disagrees with the
// geometry.
package domain
