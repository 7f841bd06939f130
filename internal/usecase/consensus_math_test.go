package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustWeightedMedian_EqualTrust(t *testing.T) {
	votes := []weightedVote{
		{NodeID: "a", Confidence: 72, Trust: 50},
		{NodeID: "b", Confidence: 80, Trust: 50},
		{NodeID: "c", Confidence: 75, Trust: 50},
	}
	assert.Equal(t, 75.0, trustWeightedMedian(votes))
}

func TestTrustWeightedMedian_TrustSkewsResult(t *testing.T) {
	// the heavy node alone holds more than half the total trust, so
	// the median lands on its vote
	votes := []weightedVote{
		{NodeID: "a", Confidence: 20, Trust: 90},
		{NodeID: "b", Confidence: 80, Trust: 10},
		{NodeID: "c", Confidence: 85, Trust: 10},
	}
	assert.Equal(t, 20.0, trustWeightedMedian(votes))
}

func TestTrustWeightedMedian_ZeroTrustFallsBackToPlainMedian(t *testing.T) {
	votes := []weightedVote{
		{NodeID: "a", Confidence: 10, Trust: 0},
		{NodeID: "b", Confidence: 50, Trust: 0},
		{NodeID: "c", Confidence: 90, Trust: 0},
	}
	assert.Equal(t, 50.0, trustWeightedMedian(votes))
}

func TestTrustWeightedMedian_TieBreaksOnNodeID(t *testing.T) {
	a := []weightedVote{
		{NodeID: "b", Confidence: 60, Trust: 50},
		{NodeID: "a", Confidence: 60, Trust: 50},
	}
	b := []weightedVote{
		{NodeID: "a", Confidence: 60, Trust: 50},
		{NodeID: "b", Confidence: 60, Trust: 50},
	}
	assert.Equal(t, trustWeightedMedian(a), trustWeightedMedian(b))
}

func TestTrustWeightedMedian_Empty(t *testing.T) {
	assert.Equal(t, 0.0, trustWeightedMedian(nil))
}

func TestConfidenceStdDev(t *testing.T) {
	votes := []weightedVote{
		{Confidence: 70}, {Confidence: 80},
	}
	assert.InDelta(t, 5.0, confidenceStdDev(votes), 1e-9)

	assert.Equal(t, 0.0, confidenceStdDev([]weightedVote{{Confidence: 42}}))
	assert.Equal(t, 0.0, confidenceStdDev(nil))
}

func TestDeceptionRisk_NoDispersionNoFlags(t *testing.T) {
	votes := []weightedVote{
		{Confidence: 75}, {Confidence: 75}, {Confidence: 75},
	}
	assert.Equal(t, 0.0, deceptionRisk(votes, 0.6, 0.4))
}

func TestDeceptionRisk_AllFlagged(t *testing.T) {
	votes := []weightedVote{
		{Confidence: 75, Flagged: true},
		{Confidence: 75, Flagged: true},
	}
	// no dispersion, full flag ratio
	assert.InDelta(t, 40.0, deceptionRisk(votes, 0.6, 0.4), 1e-9)
}

func TestDeceptionRisk_DispersionSaturates(t *testing.T) {
	// stddev of {0, 100} is 50, well past the ceiling; the variance
	// component must cap at its full weight
	votes := []weightedVote{
		{Confidence: 0}, {Confidence: 100},
	}
	assert.InDelta(t, 60.0, deceptionRisk(votes, 0.6, 0.4), 1e-9)
}

func TestTrustReward_WithinEpsilon(t *testing.T) {
	// reward 100 pulls trust up by alpha
	got := trustReward(50, 73, 75, 0.1, 5)
	assert.InDelta(t, 55.0, got, 1e-9)
}

func TestTrustReward_OutsideEpsilon(t *testing.T) {
	// reward 0 decays trust
	got := trustReward(50, 90, 75, 0.1, 5)
	assert.InDelta(t, 45.0, got, 1e-9)
}

func TestTrustReward_Clamped(t *testing.T) {
	got := trustReward(100, 75, 75, 0.1, 5)
	assert.LessOrEqual(t, got, 100.0)
	got = trustReward(0, 0, 100, 0.1, 5)
	assert.GreaterOrEqual(t, got, 0.0)
}
