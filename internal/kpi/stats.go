package kpi

import (
	"math"

	"github.com/pulsoview/maestro-engine/internal/models"
)

// Snapshot summarises how the latest sample of a series sits against its
// trailing baseline.
type Snapshot struct {
	Latest   float64
	Previous float64
	Mean     float64
	StdDev   float64
	// Score is the signed deviation of the latest sample from the trailing
	// baseline, in standard deviations.
	Score float64
	// ChangePct is the relative movement of the latest sample vs the baseline
	// mean, in percent.
	ChangePct float64
}

// Analyze computes baseline statistics over all samples except the most
// recent one and scores that sample against them. Series shorter than three
// points carry no statistical signal and return ok=false.
func Analyze(series models.TimeSeries) (Snapshot, bool) {
	points := series.Points
	if len(points) < 3 {
		return Snapshot{}, false
	}

	baseline := points[:len(points)-1]
	latest := points[len(points)-1].Value
	previous := points[len(points)-2].Value

	mean := 0.0
	for _, p := range baseline {
		mean += p.Value
	}
	mean /= float64(len(baseline))

	variance := 0.0
	for _, p := range baseline {
		variance += math.Pow(p.Value-mean, 2)
	}
	variance /= float64(len(baseline))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		stdDev = 0.01
	}

	change := 0.0
	if mean != 0 {
		change = (latest - mean) / math.Abs(mean) * 100
	}

	return Snapshot{
		Latest:    latest,
		Previous:  previous,
		Mean:      mean,
		StdDev:    stdDev,
		Score:     (latest - mean) / stdDev,
		ChangePct: change,
	}, true
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
