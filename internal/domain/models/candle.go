package models

import "time"

// Candle is an OHLC(+volume) summary of a market's derived virality
// score over one time bucket. (Market, Timeframe, BucketStart) is the
// natural key. A finalized candle is immutable outside a rebuild.
type Candle struct {
	Market      string
	Timeframe   string
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	VPMXScore   float64
	IsFinal     bool
	RuleVersion int
	UpdatedAt   time.Time
}

// AggregationWeights are the per-component weights of a rule. The
// primary group (volume/vpmx/engagement) need not sum to 1; scores are
// normalized by the sum of weights actually applied.
type AggregationWeights struct {
	Volume     float64 `yaml:"volume" json:"volume"`
	VPMX       float64 `yaml:"vpmx" json:"vpmx"`
	Engagement float64 `yaml:"engagement" json:"engagement"`
	Mentions   float64 `yaml:"mentions" json:"mentions"`
	Shares     float64 `yaml:"shares" json:"shares"`
	Likes      float64 `yaml:"likes" json:"likes"`
	Comments   float64 `yaml:"comments" json:"comments"`
}

// Valid reports whether all weights are non-negative with at least one
// positive component.
func (w AggregationWeights) Valid() bool {
	vals := []float64{w.Volume, w.VPMX, w.Engagement, w.Mentions, w.Shares, w.Likes, w.Comments}
	any := false
	for _, v := range vals {
		if v < 0 {
			return false
		}
		if v > 0 {
			any = true
		}
	}
	return any
}

// AggregationRule is one version of a market's aggregation config.
// Every update creates a new version; old versions are retained so a
// rebuild can pin the version active at the historical time.
type AggregationRule struct {
	Market          string
	Version         int
	Weights         AggregationWeights
	Smoothing       bool
	SmoothingPeriod int
	Timeframes      []string
	CreatedAt       time.Time
	CreatedBy       string
}

// TimeframeEnabled reports whether tf is in the rule's enabled set.
func (r *AggregationRule) TimeframeEnabled(tf string) bool {
	for _, t := range r.Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}
