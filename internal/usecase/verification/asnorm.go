package verification

import (
	"math"

	"github.com/kailas-cloud/voicegate/internal/domain"
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
)

// Normalizer applies symmetric adaptive score normalisation against the
// cohort neighbourhoods of both sides of a trial.
type Normalizer struct {
	StdFloor      float64
	MinCohortSize int
}

// Normalize returns 0.5*((raw-μe)/max(σe,floor) + (raw-μt)/max(σt,floor))
// with population standard deviations. An empty side yields ErrEmptyCohort.
func (n Normalizer) Normalize(raw float64, enrollScores, testScores []float64) (float64, domattempt.CohortStatistics, error) {
	if len(enrollScores) == 0 || len(testScores) == 0 {
		return 0, domattempt.CohortStatistics{}, domain.ErrEmptyCohort
	}
	floor := n.StdFloor
	if floor <= 0 {
		floor = 1e-6
	}

	em, es := meanStd(enrollScores)
	tm, ts := meanStd(testScores)
	stats := domattempt.CohortStatistics{
		EnrollMean: em,
		EnrollStd:  es,
		EnrollSize: len(enrollScores),
		TestMean:   tm,
		TestStd:    ts,
		TestSize:   len(testScores),
	}
	stats.LowConfidence = stats.Size() < n.MinCohortSize

	score := 0.5 * ((raw-em)/math.Max(es, floor) + (raw-tm)/math.Max(ts, floor))
	return score, stats, nil
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
