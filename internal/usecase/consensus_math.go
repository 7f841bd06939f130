package usecase

import (
	"math"
	"sort"

	"TrendForge/internal/domain/models"
)

// weightedVote pairs one node's attestation with its trust weight.
type weightedVote struct {
	NodeID     string
	Confidence float64
	Flagged    bool
	Trust      float64
}

// trustWeightedMedian returns the trust-weighted median confidence.
// Votes are ordered by confidence; the median is the first vote at
// which the running trust sum reaches half the total. Ties between
// equal confidences are broken toward the lower node id so the result
// is deterministic across evaluation runs.
func trustWeightedMedian(votes []weightedVote) float64 {
	if len(votes) == 0 {
		return 0
	}
	sorted := make([]weightedVote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence < sorted[j].Confidence
		}
		return sorted[i].NodeID < sorted[j].NodeID
	})

	var total float64
	for _, v := range sorted {
		total += v.Trust
	}
	if total <= 0 {
		// all trust exhausted, fall back to the plain median
		return sorted[len(sorted)/2].Confidence
	}

	half := total / 2
	var running float64
	for _, v := range sorted {
		running += v.Trust
		if running >= half {
			return v.Confidence
		}
	}
	return sorted[len(sorted)-1].Confidence
}

// confidenceStdDev is the population standard deviation of the raw
// confidence values, ignoring trust.
func confidenceStdDev(votes []weightedVote) float64 {
	if len(votes) < 2 {
		return 0
	}
	var sum float64
	for _, v := range votes {
		sum += v.Confidence
	}
	mean := sum / float64(len(votes))
	var sq float64
	for _, v := range votes {
		d := v.Confidence - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(votes)))
}

// deceptionRisk combines confidence dispersion and the share of nodes
// that raised a deception flag into a 0-100 risk score. The dispersion
// component saturates at stdDevCeiling so a pathological spread cannot
// dominate the flag signal.
func deceptionRisk(votes []weightedVote, varianceWeight, flagWeight float64) float64 {
	if len(votes) == 0 {
		return 0
	}

	const stdDevCeiling = 25.0
	sd := confidenceStdDev(votes)
	if sd > stdDevCeiling {
		sd = stdDevCeiling
	}
	scaledSD := sd / stdDevCeiling * 100

	var flagged int
	for _, v := range votes {
		if v.Flagged {
			flagged++
		}
	}
	flagRatio := float64(flagged) / float64(len(votes))

	return models.ClampScore(varianceWeight*scaledSD + flagWeight*flagRatio*100)
}

// trustReward computes the EMA update for one node's trust score after
// a signal resolves. Nodes whose local confidence landed within
// epsilon of the consensus value earn the full reward; everyone else
// earns zero and drifts down.
func trustReward(trust, localConfidence, consensus, alpha, epsilon float64) float64 {
	reward := 0.0
	if math.Abs(localConfidence-consensus) <= epsilon {
		reward = 100.0
	}
	return models.ClampScore((1-alpha)*trust + alpha*reward)
}
