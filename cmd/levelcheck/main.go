// Command levelcheck runs the level engine over tank and reading fixtures and
// verifies data integrity: geometry validity, volume model invariants,
// reading plausibility and metrics consistency. When an expected metrics file
// is given it also checks the engine reproduces it exactly.
//
// Usage:
//
//	go run ./cmd/levelcheck \
//	  -tanks data/mock/tanks.json \
//	  -readings data/mock/readings.json \
//	  -now 2026-03-01T12:00:00Z \
//	  [-expected data/generated/metrics.json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/tank-level-service/internal/config"
	"github.com/couchcryptid/tank-level-service/internal/domain"
)

const (
	volumeSamples     = 50
	capacityTolerance = 0.05
	floatTolerance    = 1e-6
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	tanksPath := flag.String("tanks", config.EnvOrDefault("LEVELCHECK_TANKS", ""), "path to tank geometry JSON")
	readingsPath := flag.String("readings", config.EnvOrDefault("LEVELCHECK_READINGS", ""), "path to sensor reading JSON")
	expectedPath := flag.String("expected", "", "optional path to expected metrics JSON")
	nowFlag := flag.String("now", "", "evaluation instant (RFC3339, default: current time)")
	flag.Parse()

	if *tanksPath == "" || *readingsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -now: %v\n", err)
			os.Exit(1)
		}
		now = t.UTC()
	}

	os.Exit(run(*tanksPath, *readingsPath, *expectedPath, now))
}

func run(tanksPath, readingsPath, expectedPath string, now time.Time) int {
	fmt.Println("=== Tank Level Integrity Check ===")
	fmt.Println()

	tanks, err := loadJSON[domain.TankGeometry](tanksPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load tanks: %v\n", err)
		return 1
	}
	readings, err := loadJSON[domain.SensorReading](readingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load readings: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkGeometry(tanks),
		checkVolumeModel(tanks),
		checkReadings(tanks, readings),
	}

	metrics, err := domain.ComputeFleet(tanks, readings, now)
	metricsPhase := &phase{name: "Metrics consistency"}
	if err != nil {
		metricsPhase.errorf("engine rejected fleet: %v", err)
	} else {
		checkMetrics(metricsPhase, tanks, metrics)
	}
	phases = append(phases, metricsPhase)

	if expectedPath != "" && err == nil {
		phases = append(phases, checkExpected(expectedPath, metrics))
	}

	report(phases)
	if err == nil {
		printSummary(domain.SummarizeFleet(metrics), len(tanks), len(readings))
	}

	for _, p := range phases {
		if !p.passed() {
			return 1
		}
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func checkGeometry(tanks []domain.TankGeometry) *phase {
	p := &phase{name: "Geometry validity"}
	seen := map[string]bool{}
	for _, g := range tanks {
		if g.TankID == "" {
			p.errorf("tank without tank_id (name %q)", g.Name)
			continue
		}
		if seen[g.TankID] {
			p.errorf("%s: duplicate tank_id", g.TankID)
		}
		seen[g.TankID] = true

		if err := g.Validate(); err != nil {
			p.errorf("%s: %v", g.TankID, err)
			continue
		}
		if g.Shape == domain.ShapeUnknown {
			p.errorf("%s: unrecognized shape", g.TankID)
			continue
		}
		if _, ok := g.MaxDepth(); !ok {
			p.errorf("%s: missing max depth dimension", g.TankID)
		}

		capacity, ok := g.Capacity()
		if !ok {
			p.notef("%s: no capacity, fill percentage unavailable", g.TankID)
			continue
		}
		full, err := g.FullVolume()
		if err != nil || full <= 0 {
			continue
		}
		if diff := math.Abs(full-capacity) / capacity; diff > capacityTolerance {
			p.errorf("%s: capacity %.1f L differs from geometric volume %.1f L by %.1f%%",
				g.TankID, capacity, full, diff*100)
		}
	}
	return p
}

// checkVolumeModel samples each tank from empty to full and verifies the
// volume curve starts at zero, never decreases and never exceeds full.
func checkVolumeModel(tanks []domain.TankGeometry) *phase {
	p := &phase{name: "Volume model invariants"}
	for _, g := range tanks {
		maxDepth, ok := g.MaxDepth()
		if !ok || g.Validate() != nil {
			continue
		}
		full, err := g.FullVolume()
		if err != nil {
			p.errorf("%s: full volume: %v", g.TankID, err)
			continue
		}

		prev := -1.0
		for i := 0; i <= volumeSamples; i++ {
			depth := maxDepth * float64(i) / volumeSamples
			v, err := g.VolumeAt(depth)
			if err != nil {
				p.errorf("%s: volume at %.3f m: %v", g.TankID, depth, err)
				break
			}
			if i == 0 && v != 0 {
				p.errorf("%s: empty tank holds %.3f L", g.TankID, v)
			}
			if v < prev-floatTolerance {
				p.errorf("%s: volume decreases at %.3f m (%.3f < %.3f)", g.TankID, depth, v, prev)
				break
			}
			if v > full+floatTolerance {
				p.errorf("%s: volume %.3f L above full %.3f L at %.3f m", g.TankID, v, full, depth)
				break
			}
			prev = v
		}
	}
	return p
}

func checkReadings(tanks []domain.TankGeometry, readings []domain.SensorReading) *phase {
	p := &phase{name: "Reading plausibility"}
	byID := make(map[string]domain.TankGeometry, len(tanks))
	for _, g := range tanks {
		byID[g.TankID] = g
	}

	orphans := map[string]int{}
	for i, r := range readings {
		if r.TankID == "" {
			p.errorf("reading %d: missing tank_id", i)
			continue
		}
		g, ok := byID[r.TankID]
		if !ok {
			orphans[r.TankID]++
			continue
		}
		if r.DistanceM == nil {
			continue
		}
		d := *r.DistanceM
		if math.IsNaN(d) || math.IsInf(d, 0) {
			p.errorf("reading %d (%s): distance is not finite", i, r.TankID)
			continue
		}
		if d < 0 {
			p.notef("reading %d (%s): negative distance %.3f m clamps to full", i, r.TankID, d)
		}
		if maxDepth, ok := g.MaxDepth(); ok && d > maxDepth {
			p.notef("reading %d (%s): distance %.3f m beyond max depth %.3f m clamps to empty", i, r.TankID, d, maxDepth)
		}
	}

	ids := make([]string, 0, len(orphans))
	for id := range orphans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p.notef("%s: %d readings for an unregistered tank", id, orphans[id])
	}
	return p
}

func checkMetrics(p *phase, tanks []domain.TankGeometry, metrics []domain.TankMetrics) {
	configured := make(map[string]bool, len(tanks))
	for _, g := range tanks {
		configured[g.TankID] = true
	}

	for _, m := range metrics {
		if m.Stale {
			if m.Status != domain.StatusInactive {
				p.errorf("%s: stale but status %s", m.TankID, m.Status)
			}
			if configured[m.TankID] && (m.VolumeL == nil || *m.VolumeL != 0) {
				p.errorf("%s: stale but volume not zeroed", m.TankID)
			}
		}
		if m.Status == domain.StatusInactive && !m.Stale {
			p.errorf("%s: inactive without a stale reading", m.TankID)
		}
		if m.VolumeL != nil && *m.VolumeL < 0 {
			p.errorf("%s: negative volume %.1f L", m.TankID, *m.VolumeL)
		}
		if m.FillPct != nil && *m.FillPct > 100 {
			p.notef("%s: fill %.1f%% exceeds capacity", m.TankID, *m.FillPct)
		}
		if m.DepthM == nil && m.VolumeL != nil && *m.VolumeL != 0 {
			p.errorf("%s: volume without a depth", m.TankID)
		}
		if m.MinutesSinceLast != nil && *m.MinutesSinceLast < 0 {
			p.notef("%s: reading %.1f minutes in the future", m.TankID, -*m.MinutesSinceLast)
		}
	}
}

func checkExpected(path string, metrics []domain.TankMetrics) *phase {
	p := &phase{name: "Expected metrics parity"}
	expected, err := loadJSON[domain.TankMetrics](path)
	if err != nil {
		p.errorf("load expected metrics: %v", err)
		return p
	}
	if len(expected) != len(metrics) {
		p.errorf("count mismatch: expected %d, computed %d", len(expected), len(metrics))
	}

	got := make(map[string]domain.TankMetrics, len(metrics))
	for _, m := range metrics {
		got[m.TankID] = m
	}
	for _, want := range expected {
		m, ok := got[want.TankID]
		if !ok {
			p.errorf("%s: missing from computed metrics", want.TankID)
			continue
		}
		if m.Status != want.Status || m.Alert != want.Alert {
			p.errorf("%s: status %s/%q, expected %s/%q", want.TankID, m.Status, m.Alert, want.Status, want.Alert)
		}
		if !sameNullable(m.VolumeL, want.VolumeL) {
			p.errorf("%s: volume %s, expected %s", want.TankID, fmtNullable(m.VolumeL), fmtNullable(want.VolumeL))
		}
		if !sameNullable(m.FillPct, want.FillPct) {
			p.errorf("%s: fill %s, expected %s", want.TankID, fmtNullable(m.FillPct), fmtNullable(want.FillPct))
		}
	}
	return p
}

func sameNullable(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= floatTolerance
}

func fmtNullable(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.1f", *v)
}

func report(phases []*phase) {
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  ERROR %s\n", e)
		}
		for _, n := range p.notes {
			fmt.Printf("  note  %s\n", n)
		}
	}
}

func printSummary(s domain.FleetSummary, tanks, readings int) {
	fmt.Println()
	fmt.Printf("Tanks: %d configured, %d evaluated, %d readings, %d stale\n", tanks, s.TankCount, readings, s.StaleCount)
	for _, st := range []domain.Status{domain.StatusOK, domain.StatusWarning, domain.StatusInactive, domain.StatusUnknown} {
		fmt.Printf("  %-10s %d\n", st, s.StatusCounts[st])
	}
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}
