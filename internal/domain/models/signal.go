package models

import "time"

// SignalStatus is the consensus lifecycle state of an oracle signal.
//
// PENDING -> {FLAGGED, APPROVED, REJECTED}
// FLAGGED -> {APPROVED, REJECTED}
// APPROVED and REJECTED are terminal for automated transitions; admin
// overrides are a separate audited path.
type SignalStatus string

const (
	SignalPending  SignalStatus = "PENDING"
	SignalFlagged  SignalStatus = "FLAGGED"
	SignalApproved SignalStatus = "APPROVED"
	SignalRejected SignalStatus = "REJECTED"
)

// Terminal reports whether the status is terminal for automated transitions.
func (s SignalStatus) Terminal() bool {
	return s == SignalApproved || s == SignalRejected
}

// RawMetrics carries the raw engagement measurements of one signal.
type RawMetrics struct {
	Likes    float64 `json:"likes"`
	Shares   float64 `json:"shares"`
	Comments float64 `json:"comments"`
	Mentions float64 `json:"mentions"`
	VPMX     float64 `json:"vpmx"`
}

// Engagement is the combined engagement component used by aggregation.
func (m RawMetrics) Engagement() float64 {
	return m.Likes + m.Shares + m.Comments + m.Mentions
}

// OracleSignal is one measurement of a trend symbol from one source.
// Status and scores are mutated only by the consensus engine or an
// audited admin action.
type OracleSignal struct {
	ID              string
	SourceKey       string
	Symbol          string
	DetectedAt      time.Time
	Metrics         RawMetrics
	Status          SignalStatus
	ConfidenceScore float64 // 0-100
	DeceptionRisk   float64 // 0-100
	RequiresReview  bool
	FlagReason      string
	RejectionReason string

	ApprovedBy string
	RejectedBy string
	FlaggedBy  string
	ResolvedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConsensusAttestation is one validator node's judgment for one signal.
// Write-once per (signal, node); resubmission replaces the prior entry
// only while the signal is still PENDING.
type ConsensusAttestation struct {
	ID                 string
	SignalID           string
	NodeID             string
	LocalConfidence    float64 // 0-100
	LocalDeceptionFlag bool
	SubmittedAt        time.Time
}

// SignalFilter selects signals for admin review queries. Zero-valued
// fields are not applied; MaxConfidence 0 means no confidence bound.
type SignalFilter struct {
	SourceKey     string
	Status        SignalStatus
	MaxConfidence float64
	MinRisk       float64
	Limit         int
}

// ConsensusSettings is one version of the global consensus thresholds.
// Versions are append-only; the highest version is current.
type ConsensusSettings struct {
	Version              int
	MinAttestors         int
	AutoApproveThreshold float64 // 0-100
	RiskCeiling          float64 // 0-100
	UpdatedBy            string
	Reason               string
	CreatedAt            time.Time
}

// ClampScore bounds a confidence/deception value to [0, 100].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
