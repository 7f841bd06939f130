package models

import "time"

// HealthStatus is the operational health of an oracle source.
type HealthStatus string

const (
	HealthActive   HealthStatus = "ACTIVE"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthOffline  HealthStatus = "OFFLINE"
)

// SourceMode controls whether a source's signals can drive live markets.
type SourceMode string

const (
	ModeLive      SourceMode = "LIVE"
	ModeSimulated SourceMode = "SIMULATED"
	ModeSeed      SourceMode = "SEED"
)

// OracleSource is an external provider of raw engagement measurements
// (e.g. a social platform feed). Sources are never hard-deleted; health
// and mode gate how their signals participate downstream.
type OracleSource struct {
	SourceKey       string
	Health          HealthStatus
	Mode            SourceMode
	ConfidenceScore float64 // 0-100, rolling
	DeceptionRisk   float64 // 0-100, rolling
	LastHealthCheck time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LiveEligible reports whether signals from this source may contribute
// to LIVE candle aggregation.
func (s *OracleSource) LiveEligible() bool {
	return s.Health != HealthOffline && s.Mode == ModeLive
}

// ValidatorNode is an independent scorer that attests to signal
// authenticity. Disabled nodes keep their history but are excluded
// from quorum counting.
type ValidatorNode struct {
	NodeID         string
	Region         string
	TrustScore     float64 // 0-100, derived from historical attestation accuracy
	Enabled        bool
	KeyFingerprint string
	LastRestartAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
