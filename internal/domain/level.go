package domain

import "math"

// ResolveDepth converts a downward sensor distance into a liquid depth,
// clamped to [0, max depth]. It returns nil when the distance is absent or
// not finite, or when the tank's shape does not define a max depth; callers
// report that as "No valid level", never as an empty tank.
func ResolveDepth(g TankGeometry, distance *float64) *float64 {
	if distance == nil || math.IsNaN(*distance) || math.IsInf(*distance, 0) {
		return nil
	}
	maxDepth, ok := g.MaxDepth()
	if !ok {
		return nil
	}
	depth := clamp(maxDepth-*distance, 0, maxDepth)
	return &depth
}
