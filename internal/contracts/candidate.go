package contracts

import "time"

// Direction is the trade side of a vote, candidate or signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// QualityTier grades consensus strength. LOW candidates are never forwarded
// past the aggregator.
type QualityTier string

const (
	TierLow     QualityTier = "LOW"
	TierMedium  QualityTier = "MEDIUM"
	TierHigh    QualityTier = "HIGH"
	TierPremium QualityTier = "PREMIUM"
)

// Rank orders tiers so threshold checks can compare them.
func (t QualityTier) Rank() int {
	switch t {
	case TierPremium:
		return 3
	case TierHigh:
		return 2
	case TierMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether t is the same tier as other or better.
func (t QualityTier) AtLeast(other QualityTier) bool {
	return t.Rank() >= other.Rank()
}

// Vote is one detector's opinion on a symbol. Target and Stop are optional
// suggestions; zero means the detector offered none.
type Vote struct {
	Detector   string    `json:"detector"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0-100
	Target     float64   `json:"target,omitempty"`
	Stop       float64   `json:"stop,omitempty"`
	Weight     float64   `json:"weight"` // filled in by the aggregator
}

// Candidate is an unpublished trade idea produced by consensus. It is
// immutable once handed downstream; rejected candidates are discarded and
// only aggregate counters persist.
type Candidate struct {
	Symbol           string         `json:"symbol"`
	Direction        Direction      `json:"direction"`
	Votes            []Vote         `json:"votes"`
	Confidence       float64        `json:"confidence"`      // weighted agreement, 0-100
	AgreementRatio   float64        `json:"agreement_ratio"` // 0-1
	Tier             QualityTier    `json:"tier"`
	Regime           Regime         `json:"regime"`
	RegimeConfidence float64        `json:"regime_confidence"` // 0-1
	Strategy         string         `json:"strategy"`          // lead detector attribution
	Features         MarketFeatures `json:"features"`
	Price            float64        `json:"price"` // market price at evaluation time
	CreatedAt        time.Time      `json:"created_at"`
}

// AgreeingVotes returns the votes that share the candidate direction.
func (c *Candidate) AgreeingVotes() []Vote {
	agree := make([]Vote, 0, len(c.Votes))
	for _, v := range c.Votes {
		if v.Direction == c.Direction {
			agree = append(agree, v)
		}
	}
	return agree
}
