package models

import "time"

// AggregationEventKind discriminates events flowing into candle aggregation.
type AggregationEventKind string

const (
	EventSignal AggregationEventKind = "signal"
	EventTrade  AggregationEventKind = "trade"
)

// AggregationEvent is one input to candle aggregation: either an
// approved oracle signal or a trade-volume event. Events for the same
// (market, timeframe) are applied strictly in timestamp order.
type AggregationEvent struct {
	Kind      AggregationEventKind
	Market    string
	Timestamp time.Time

	// signal fields. LiveEligible snapshots the source's eligibility at
	// append time so rebuilds exclude exactly what live aggregation
	// excluded. Trade events are always eligible.
	SignalID     string
	Metrics      RawMetrics
	Confidence   float64
	LiveEligible bool

	// trade fields
	TradeVolume float64
}

// RawMetricEvent is the kafka envelope produced by the signal
// ingestion pipeline; it terminates in Signal Intake.
type RawMetricEvent struct {
	SourceKey  string     `json:"source_key"`
	Symbol     string     `json:"symbol"`
	DetectedAt int64      `json:"detected_at"` // unix seconds or ms
	Metrics    RawMetrics `json:"metrics"`
}

// TradeVolumeEvent is the kafka envelope supplied by the trade/market
// module; its volume feeds the volume component of aggregation.
type TradeVolumeEvent struct {
	Market    string  `json:"market"`
	Timestamp int64   `json:"timestamp"` // unix seconds or ms
	Volume    float64 `json:"volume"`
}

// ConsensusEvalPayload is the queue message carried by the
// intake -> consensus hand-off.
type ConsensusEvalPayload struct {
	SignalID string `json:"signal_id"`
}

// RebuildJobPayload is the queue message dispatching one rebuild job.
type RebuildJobPayload struct {
	JobID string `json:"job_id"`
}

// EventTime converts an event timestamp that may be in seconds or
// milliseconds into time.Time.
func EventTime(ts int64) time.Time {
	if ts > 1e11 { // ms
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
