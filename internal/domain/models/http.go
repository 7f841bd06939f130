package models

// Requests for the admin/control and query HTTP endpoints. Defined in
// domain for consistency and reuse.

type IngestSignalRequest struct {
	SourceKey  string     `json:"source_key" validate:"required"`
	Symbol     string     `json:"symbol" validate:"required"`
	DetectedAt int64      `json:"detected_at" validate:"gt=0"`
	Metrics    RawMetrics `json:"metrics"`
}

type SubmitAttestationRequest struct {
	NodeID          string  `param:"node_id" json:"node_id" validate:"required"`
	LocalConfidence float64 `json:"local_confidence" validate:"gte=0,lte=100"`
	DeceptionFlag   bool    `json:"deception_flag"`
}

type SignalDecisionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type UpdateConfidenceRequest struct {
	Confidence float64 `json:"confidence" validate:"gte=0,lte=100"`
	Reason     string  `json:"reason" validate:"required"`
}

type ListSignalsRequest struct {
	SourceKey     string  `query:"source" json:"source"`
	Status        string  `query:"status" json:"status" validate:"omitempty,oneof=PENDING FLAGGED APPROVED REJECTED"`
	MaxConfidence float64 `query:"max_confidence" json:"max_confidence" default:"100" validate:"gte=0,lte=100"`
	MinRisk       float64 `query:"min_risk" json:"min_risk" default:"0" validate:"gte=0,lte=100"`
	Limit         int     `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type UpdateThresholdsRequest struct {
	MinAttestors         int     `json:"min_attestors" validate:"gte=1,lte=100"`
	AutoApproveThreshold float64 `json:"auto_approve_threshold" validate:"gte=0,lte=100"`
	RiskCeiling          float64 `json:"risk_ceiling" validate:"gte=0,lte=100"`
	Reason               string  `json:"reason" validate:"required"`
}

type MaintenanceRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason" validate:"required"`
}

type RegisterSourceRequest struct {
	SourceKey string `json:"source_key" validate:"required"`
	Mode      string `json:"mode" default:"LIVE" validate:"oneof=LIVE SIMULATED SEED"`
}

type UpdateHealthRequest struct {
	Status          string   `json:"status" validate:"required,oneof=ACTIVE DEGRADED OFFLINE"`
	ConfidenceScore *float64 `json:"confidence_score" validate:"omitempty,gte=0,lte=100"`
	DeceptionRisk   *float64 `json:"deception_risk" validate:"omitempty,gte=0,lte=100"`
	Notes           string   `json:"notes"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=LIVE SIMULATED SEED"`
}

type AddNodeRequest struct {
	NodeID         string `json:"node_id" validate:"required"`
	Region         string `json:"region" validate:"required"`
	KeyFingerprint string `json:"key_fingerprint" validate:"required"`
}

type RotateNodeKeyRequest struct {
	KeyFingerprint string `json:"key_fingerprint" validate:"required"`
}

type UpsertRuleRequest struct {
	Weights         AggregationWeights `json:"weights"`
	Smoothing       bool               `json:"smoothing"`
	SmoothingPeriod int                `json:"smoothing_period" default:"14" validate:"gte=1,lte=500"`
	Timeframes      []string           `json:"timeframes" validate:"required,min=1,dive,oneof=1m 5m 15m 1h 4h 1d"`
}

type RebuildRequest struct {
	Timeframe string `json:"timeframe" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	Start     int64  `json:"start" validate:"gt=0"`
	End       int64  `json:"end" validate:"gt=0"`
	Force     bool   `json:"force"`
}

type CandleQueryRequest struct {
	Market string `query:"market" json:"market" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}
