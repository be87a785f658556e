package runner

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/celeritas-project/celer-engine/internal/store"
)

// Summary describes a finished run.
type Summary struct {
	RunID   string
	Streams int
	Events  int
	Steps   int
	Killed  int
	Photons int
	Elapsed time.Duration

	// ActiveMean and ActiveStdDev describe the occupied track slots per step.
	ActiveMean   float64
	ActiveStdDev float64
	// StepsPerEvent is the mean number of step iterations per event.
	StepsPerEvent float64

	// ActionTimes sums each action's seconds over streams.
	ActionTimes map[string]float64
	Digests     []store.StateDigest
}

func summarize(runID string, results []streamResult, elapsed time.Duration) *Summary {
	s := &Summary{
		RunID:       runID,
		Streams:     len(results),
		Elapsed:     elapsed,
		ActionTimes: make(map[string]float64),
		Digests:     sortedDigests(results),
	}

	var active []float64
	for _, res := range results {
		s.Steps += res.steps
		s.Killed += res.killed
		for _, c := range res.counters {
			active = append(active, float64(c.Active))
		}
		for label, sec := range res.times {
			s.ActionTimes[label] += sec
		}
		if res.optical != nil {
			s.Photons += res.optical.Photons
		}
	}
	if len(active) > 0 {
		s.ActiveMean, s.ActiveStdDev = stat.MeanStdDev(active, nil)
	}

	s.Events = len(s.Digests)
	if s.Events > 0 {
		perEvent := make([]float64, len(s.Digests))
		for i, d := range s.Digests {
			perEvent[i] = float64(d.Steps)
		}
		s.StepsPerEvent = stat.Mean(perEvent, nil)
	}
	return s
}
