package domain

import (
	"fmt"
	"math"
	"strings"
)

// Shape identifies the tank body used for volume conversion.
type Shape string

const (
	ShapeCylinder    Shape = "cylinder"
	ShapeRectangular Shape = "rectangular"
	ShapeUnknown     Shape = ""
)

// ParseShape normalizes a configured shape string. Unrecognized values map to
// ShapeUnknown so the engine can report them instead of failing.
func ParseShape(value string) Shape {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cylinder", "cylindrical", "horizontal_cylinder":
		return ShapeCylinder
	case "rectangular", "rectangle", "box":
		return ShapeRectangular
	default:
		return ShapeUnknown
	}
}

// UnmarshalText normalizes shapes decoded from JSON the same way as shapes
// read from the tank registry.
func (s *Shape) UnmarshalText(text []byte) error {
	*s = ParseShape(string(text))
	return nil
}

// LimitUnit is the unit the safe limits of a tank are expressed in.
type LimitUnit string

const (
	LimitPercent LimitUnit = "percent"
	LimitLiters  LimitUnit = "liters"
)

// ParseLimitUnit defaults to percent for anything that is not liters.
func ParseLimitUnit(value string) LimitUnit {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "liters", "litres", "l":
		return LimitLiters
	default:
		return LimitPercent
	}
}

func (u *LimitUnit) UnmarshalText(text []byte) error {
	*u = ParseLimitUnit(string(text))
	return nil
}

// LevelModel selects how depth is converted into volume.
type LevelModel string

const (
	// LevelGeometric uses the exact shape formula.
	LevelGeometric LevelModel = "geometric"
	// LevelLinear scales capacity by depth / max depth.
	LevelLinear LevelModel = "linear"
)

// ParseLevelModel defaults to the geometric model.
func ParseLevelModel(value string) LevelModel {
	if strings.EqualFold(strings.TrimSpace(value), string(LevelLinear)) {
		return LevelLinear
	}
	return LevelGeometric
}

func (m *LevelModel) UnmarshalText(text []byte) error {
	*m = ParseLevelModel(string(text))
	return nil
}

// TankGeometry is the long-lived configuration of one tank.
type TankGeometry struct {
	TankID     string     `json:"tank_id"`
	Name       string     `json:"name,omitempty"`
	Shape      Shape      `json:"shape"`
	DiameterM  *float64   `json:"diameter_m,omitempty"`
	LengthM    *float64   `json:"length_m,omitempty"`
	WidthM     *float64   `json:"width_m,omitempty"`
	MaxHeightM *float64   `json:"max_height_m,omitempty"`
	CapacityL  *float64   `json:"capacity_l,omitempty"`
	UpperLimit *float64   `json:"upper_limit,omitempty"`
	LowerLimit *float64   `json:"lower_limit,omitempty"`
	LimitUnit  LimitUnit  `json:"limit_unit,omitempty"`
	LevelModel LevelModel `json:"level_model,omitempty"`

	// StatusTag is an externally assigned classification (e.g. set by an
	// operator). It is only used when the tank has no usable limits.
	StatusTag *Classification `json:"status_tag,omitempty"`
}

// GeometryError reports a non-finite numeric input. It signals a data
// integrity defect on the caller side and is never retried by the engine.
type GeometryError struct {
	Field string
	Value float64
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s is not finite (%v)", e.Field, e.Value)
}

func checkFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &GeometryError{Field: field, Value: v}
	}
	return nil
}

// CylinderVolumeLiters returns the liquid volume of a horizontal cylinder of
// diameter d and length l filled to depth h. All lengths are in meters.
func CylinderVolumeLiters(d, l, h float64) (float64, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{{"diameter_m", d}, {"length_m", l}, {"depth_m", h}} {
		if err := checkFinite(f.name, f.v); err != nil {
			return 0, err
		}
	}
	if d <= 0 || l <= 0 || h <= 0 {
		return 0, nil
	}

	r := d / 2
	if h >= d {
		return math.Pi * r * r * l * 1000, nil
	}

	// Circular segment of height h.
	area := r*r*math.Acos((r-h)/r) - (r-h)*math.Sqrt(2*r*h-h*h)
	return l * area * 1000, nil
}

// RectangularVolumeLiters returns w*l*h in liters. The caller clamps h to the
// tank's max height.
func RectangularVolumeLiters(w, l, h float64) (float64, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{{"width_m", w}, {"length_m", l}, {"depth_m", h}} {
		if err := checkFinite(f.name, f.v); err != nil {
			return 0, err
		}
	}
	if w <= 0 || l <= 0 || h <= 0 {
		return 0, nil
	}
	return w * l * h * 1000, nil
}

// Validate rejects non-finite dimensions, capacity and limits. Missing or
// non-positive values are not errors; they degrade to unknown or zero results.
func (g TankGeometry) Validate() error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"diameter_m", g.DiameterM},
		{"length_m", g.LengthM},
		{"width_m", g.WidthM},
		{"max_height_m", g.MaxHeightM},
		{"capacity_l", g.CapacityL},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if err := checkFinite(f.name, *f.v); err != nil {
			return err
		}
	}
	// Limits use NaN as "not configured", so only infinities are rejected.
	for _, f := range []struct {
		name string
		v    *float64
	}{{"upper_limit", g.UpperLimit}, {"lower_limit", g.LowerLimit}} {
		if f.v != nil && math.IsInf(*f.v, 0) {
			return &GeometryError{Field: f.name, Value: *f.v}
		}
	}
	return nil
}

// MaxDepth is the tallest liquid column the tank can hold: the diameter of a
// cylinder or the max height of a rectangular tank. It reports false when the
// shape is unknown or the dimension is missing or non-positive.
func (g TankGeometry) MaxDepth() (float64, bool) {
	var v *float64
	switch g.Shape {
	case ShapeCylinder:
		v = g.DiameterM
	case ShapeRectangular:
		v = g.MaxHeightM
	default:
		return 0, false
	}
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// Capacity returns the configured capacity when it is known and positive.
func (g TankGeometry) Capacity() (float64, bool) {
	if g.CapacityL == nil || *g.CapacityL <= 0 {
		return 0, false
	}
	return *g.CapacityL, true
}

// VolumeAt converts a resolved depth into liters using the tank's shape and
// level model. This is the only place shape dispatch happens.
func (g TankGeometry) VolumeAt(depth float64) (float64, error) {
	if g.LevelModel == LevelLinear {
		maxDepth, okDepth := g.MaxDepth()
		capacity, okCap := g.Capacity()
		if okDepth && okCap {
			if err := checkFinite("depth_m", depth); err != nil {
				return 0, err
			}
			return capacity * clamp(depth, 0, maxDepth) / maxDepth, nil
		}
		// Without a capacity the linear model has nothing to scale; use the shape.
	}

	switch g.Shape {
	case ShapeCylinder:
		return CylinderVolumeLiters(deref(g.DiameterM), deref(g.LengthM), depth)
	case ShapeRectangular:
		h := depth
		if maxH, ok := g.MaxDepth(); ok {
			h = clamp(depth, 0, maxH)
		}
		return RectangularVolumeLiters(deref(g.WidthM), deref(g.LengthM), h)
	default:
		return 0, nil
	}
}

// FullVolume is the geometric volume of the tank filled to its max depth.
func (g TankGeometry) FullVolume() (float64, error) {
	maxDepth, ok := g.MaxDepth()
	if !ok {
		return 0, nil
	}
	return g.VolumeAt(maxDepth)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
