package contracts

import "time"

// PerformanceRecord tracks rolling outcome counts for one (strategy, regime)
// pair. Written only by the learning loop; read by the consensus aggregator
// and the quality scorer for weighting.
type PerformanceRecord struct {
	Strategy  string    `json:"strategy"`
	Regime    Regime    `json:"regime"`
	Wins      float64   `json:"wins"`   // training-weight weighted
	Losses    float64   `json:"losses"` // training-weight weighted
	Samples   int       `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WinRate returns the observed win rate, or 0.5 when the record has too few
// samples to mean anything.
func (p *PerformanceRecord) WinRate() float64 {
	if p == nil {
		return 0.5
	}
	total := p.Wins + p.Losses
	if total <= 0 {
		return 0.5
	}
	return p.Wins / total
}

// Reliable reports whether the record has enough samples to bias decisions.
func (p *PerformanceRecord) Reliable(minSamples int) bool {
	return p != nil && p.Samples >= minSamples
}

// CalibrationBuckets is the number of confidence deciles tracked.
const CalibrationBuckets = 10

// CalibrationTable maps raw confidence deciles to observed win rates. The
// quality scorer uses it to convert a model probability into a confidence
// that matches history; the learning loop recomputes it incrementally.
type CalibrationTable struct {
	Buckets   [CalibrationBuckets]CalibrationBucket `json:"buckets"`
	UpdatedAt time.Time                             `json:"updated_at"`
}

// CalibrationBucket holds observed outcomes for one confidence decile.
type CalibrationBucket struct {
	Wins  float64 `json:"wins"`
	Total float64 `json:"total"`
}

// WinRate returns the bucket's observed win rate, defaulting to the bucket
// midpoint prior when empty.
func (b CalibrationBucket) WinRate(bucket int) float64 {
	if b.Total <= 0 {
		return (float64(bucket) + 0.5) / CalibrationBuckets
	}
	return b.Wins / b.Total
}

// BucketFor returns the decile index for a confidence in [0,100].
func BucketFor(confidence float64) int {
	idx := int(confidence / 10)
	if idx < 0 {
		return 0
	}
	if idx >= CalibrationBuckets {
		return CalibrationBuckets - 1
	}
	return idx
}

// Observe records one outcome into the matching confidence bucket.
func (t *CalibrationTable) Observe(confidence float64, won bool, weight float64) {
	idx := BucketFor(confidence)
	t.Buckets[idx].Total += weight
	if won {
		t.Buckets[idx].Wins += weight
	}
}

// Calibrate maps a raw win probability (0-1) through the table, blending the
// observed rate with the raw value while a bucket is thin.
func (t *CalibrationTable) Calibrate(rawProb float64, minSamples float64) float64 {
	idx := BucketFor(rawProb * 100)
	b := t.Buckets[idx]
	if b.Total <= 0 {
		return rawProb
	}
	observed := b.Wins / b.Total
	if b.Total >= minSamples {
		return observed
	}
	// Thin bucket: weight observed by fill ratio.
	w := b.Total / minSamples
	return observed*w + rawProb*(1-w)
}
