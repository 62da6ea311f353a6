// Command genmock generates a synthetic tank fleet with sensor readings and
// the metrics the level engine computes for it. The expected metrics are
// produced by the real domain package so fixtures always match service
// behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -tanks 40 -seed 7 -now 2026-03-01T12:00:00Z \
//	  -tanks-out data/generated/tanks.json \
//	  -readings-out data/generated/readings.json \
//	  -metrics-out data/generated/metrics.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/tank-level-service/internal/domain"
)

var fluids = []string{"Diesel", "Raw water", "Fire water", "Lube oil", "Caustic", "Condensate"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("tanks", 25, "number of tanks to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	nowFlag := flag.String("now", "", "evaluation instant (RFC3339, default: current time)")
	tanksOut := flag.String("tanks-out", "", "output path for tank geometry fixture")
	readingsOut := flag.String("readings-out", "", "output path for sensor reading fixture")
	metricsOut := flag.String("metrics-out", "", "output path for expected metrics fixture")
	flag.Parse()

	if *tanksOut == "" || *readingsOut == "" || *metricsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -tanks-out, -readings-out, -metrics-out")
	}
	if *count < 1 {
		return fmt.Errorf("-tanks must be positive")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = t.UTC()
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	tanks := make([]domain.TankGeometry, 0, *count)
	var readings []domain.SensorReading
	for i := range *count {
		g := genTank(rng, i)
		tanks = append(tanks, g)
		readings = append(readings, genReadings(rng, g, now)...)
	}
	// A couple of readings from collectors that are not registered yet.
	for i := range 2 {
		readings = append(readings, domain.SensorReading{
			TankID:     fmt.Sprintf("X-%03d", i+1),
			DistanceM:  ptr(round(rng.Float64()*3, 3)),
			ObservedAt: ptr(now.Add(-time.Duration(rng.IntN(40)) * time.Minute)),
		})
	}

	metrics, err := domain.ComputeFleet(tanks, readings, now)
	if err != nil {
		return fmt.Errorf("compute expected metrics: %w", err)
	}

	for path, v := range map[string]any{*tanksOut: tanks, *readingsOut: readings, *metricsOut: metrics} {
		if err := writeJSON(path, v); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}

	printStats(domain.SummarizeFleet(metrics), len(readings))
	return nil
}

func genTank(rng *rand.Rand, i int) domain.TankGeometry {
	g := domain.TankGeometry{
		TankID:     fmt.Sprintf("T-%03d", i+1),
		Name:       fmt.Sprintf("%s %d", fluids[rng.IntN(len(fluids))], i/len(fluids)+1),
		LimitUnit:  domain.LimitPercent,
		LevelModel: domain.LevelGeometric,
	}

	if rng.IntN(5) < 3 {
		g.Shape = domain.ShapeCylinder
		g.DiameterM = ptr(round(1+rng.Float64()*2.5, 2))
		g.LengthM = ptr(round(3+rng.Float64()*9, 2))
	} else {
		g.Shape = domain.ShapeRectangular
		g.WidthM = ptr(round(2+rng.Float64()*8, 2))
		g.LengthM = ptr(round(2+rng.Float64()*8, 2))
		g.MaxHeightM = ptr(round(2+rng.Float64()*16, 2))
	}

	full, err := g.FullVolume()
	if err == nil {
		g.CapacityL = ptr(round(full, 1))
	}

	switch rng.IntN(10) {
	case 0:
		// No limits; an operator tag decides.
		g.StatusTag = &domain.Classification{Status: domain.StatusWarning, Alert: "Maintenance"}
	case 1, 2:
		g.LimitUnit = domain.LimitLiters
		g.UpperLimit = ptr(round(full*0.9, 0))
		g.LowerLimit = ptr(round(full*0.1, 0))
	default:
		g.UpperLimit = ptr(float64(85 + rng.IntN(11)))
		g.LowerLimit = ptr(float64(5 + rng.IntN(11)))
	}

	if rng.IntN(8) == 0 {
		g.LevelModel = domain.LevelLinear
	}
	return g
}

// genReadings emits one to three samples per tank spread over the last hour,
// with occasional sensor failures and unstamped samples.
func genReadings(rng *rand.Rand, g domain.TankGeometry, now time.Time) []domain.SensorReading {
	maxDepth, _ := g.MaxDepth()
	n := 1 + rng.IntN(3)
	out := make([]domain.SensorReading, 0, n)
	for range n {
		r := domain.SensorReading{TankID: g.TankID}
		if rng.IntN(12) != 0 {
			r.DistanceM = ptr(round(rng.Float64()*maxDepth, 3))
		}
		if rng.IntN(20) != 0 {
			r.ObservedAt = ptr(now.Add(-time.Duration(rng.IntN(60*60)) * time.Second))
		}
		out = append(out, r)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(s domain.FleetSummary, readings int) {
	fmt.Println()
	fmt.Println("=== Generated Fleet ===")
	fmt.Printf("Tanks: %d, readings: %d, stale: %d\n", s.TankCount, readings, s.StaleCount)

	statuses := make([]string, 0, len(s.StatusCounts))
	for st := range s.StatusCounts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Printf("  %-10s %d\n", st, s.StatusCounts[domain.Status(st)])
	}

	fmt.Printf("Capacity: %.1f L, volume: %.1f L\n", s.TotalCapacityL, s.TotalVolumeL)
	if s.FillPct.Avg != nil {
		fmt.Printf("Fill %%: min %.1f, max %.1f, avg %.1f\n", *s.FillPct.Min, *s.FillPct.Max, *s.FillPct.Avg)
	}
}
