package strategyconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ignitex/engine/internal/contracts"
)

// Config is the full tuning surface of the signal pipeline. Every threshold
// the evaluation stages consult lives here so operators can retune without a
// redeploy; the numeric values are operational, not load-bearing design.
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Universe  Universe  `yaml:"universe" json:"universe"`
	Consensus Consensus `yaml:"consensus" json:"consensus"`
	Gate      Gate      `yaml:"gate" json:"gate"`
	Quality   Quality   `yaml:"quality" json:"quality"`
	Risk      Risk      `yaml:"risk" json:"risk"`
	Expiry    Expiry    `yaml:"expiry" json:"expiry"`
	Tiers     []Tier    `yaml:"tiers" json:"tiers"`
	Tracker   Tracker   `yaml:"tracker" json:"tracker"`
	Learning  Learning  `yaml:"learning" json:"learning"`
}

// Meta identifies the strategy revision.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe defines what the evaluation loop scans.
type Universe struct {
	Symbols      []string `yaml:"symbols" json:"symbols"`
	CandleWindow int      `yaml:"candle_window" json:"candle_window"` // candles per snapshot
}

// Consensus tunes the vote aggregation stage.
type Consensus struct {
	MinDetectors          int     `yaml:"min_detectors" json:"min_detectors"`
	RegimeBoost           float64 `yaml:"regime_boost" json:"regime_boost"`   // multiplier for regime-favored detectors
	RegimeDampen          float64 `yaml:"regime_dampen" json:"regime_dampen"` // multiplier for the rest
	PremiumMinConfidence  float64 `yaml:"premium_min_confidence" json:"premium_min_confidence"`
	HighMinConfidence     float64 `yaml:"high_min_confidence" json:"high_min_confidence"`
	MediumMinConfidence   float64 `yaml:"medium_min_confidence" json:"medium_min_confidence"`
	PerformanceMinSamples int     `yaml:"performance_min_samples" json:"performance_min_samples"`
}

// Gate tunes the regime-aware filter. MinTier applies when a regime has no
// override; regime confidence below LowRegimeConfidence forces the strictest
// requirement regardless of overrides.
type Gate struct {
	MinTier             string            `yaml:"min_tier" json:"min_tier"`
	LowRegimeConfidence float64           `yaml:"low_regime_confidence" json:"low_regime_confidence"`
	PerRegimeMinTier    map[string]string `yaml:"per_regime_min_tier" json:"per_regime_min_tier"`
}

// Quality tunes the ML-style gate. RegimeBias multiplies every threshold for
// that regime: below 1 is looser (range-bound), above 1 stricter (trending).
type Quality struct {
	MinScore              float64            `yaml:"min_score" json:"min_score"`
	MinWinProbability     float64            `yaml:"min_win_probability" json:"min_win_probability"`
	MinStrategyWinRate    float64            `yaml:"min_strategy_win_rate" json:"min_strategy_win_rate"`
	CalibrationMinSamples float64            `yaml:"calibration_min_samples" json:"calibration_min_samples"`
	RegimeBias            map[string]float64 `yaml:"regime_bias" json:"regime_bias"`
	Weights               QualityWeights     `yaml:"weights" json:"weights"`
}

// QualityWeights are the sub-score weights of the 0-100 quality score. They
// must sum to 1.
type QualityWeights struct {
	Confidence float64 `yaml:"confidence" json:"confidence"`
	WinRate    float64 `yaml:"win_rate" json:"win_rate"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
	Liquidity  float64 `yaml:"liquidity" json:"liquidity"`
	Volume     float64 `yaml:"volume" json:"volume"`
	Sentiment  float64 `yaml:"sentiment" json:"sentiment"`
}

// Sum returns the total of all weights.
func (w QualityWeights) Sum() float64 {
	return w.Confidence + w.WinRate + w.Volatility + w.Liquidity + w.Volume + w.Sentiment
}

// Risk tunes signal assembly.
type Risk struct {
	RewardRiskFloor float64   `yaml:"reward_risk_floor" json:"reward_risk_floor"`
	KellyFraction   float64   `yaml:"kelly_fraction" json:"kelly_fraction"`     // cap on the Kelly formula output
	MaxPositionPct  float64   `yaml:"max_position_pct" json:"max_position_pct"` // hard cap, fraction of equity
	StopATRMult     float64   `yaml:"stop_atr_mult" json:"stop_atr_mult"`       // stop distance in volatility units
	TargetATRMults  []float64 `yaml:"target_atr_mults" json:"target_atr_mults"`
}

// Expiry bounds signal lifetimes. RegimeScale stretches or shrinks the base:
// slow mean-reversion regimes run long, breakout regimes invalidate fast.
type Expiry struct {
	Base        Duration           `yaml:"base" json:"base"`
	Min         Duration           `yaml:"min" json:"min"`
	Max         Duration           `yaml:"max" json:"max"`
	RegimeScale map[string]float64 `yaml:"regime_scale" json:"regime_scale"`
}

// Tier is one subscription class.
type Tier struct {
	ID         string   `yaml:"id" json:"id"`
	Interval   Duration `yaml:"interval" json:"interval"`
	DailyQuota int      `yaml:"daily_quota" json:"daily_quota"`
	Stagger    Duration `yaml:"stagger" json:"stagger"` // cold-start offset
}

// Tracker tunes outcome classification at timeout.
type Tracker struct {
	FavorableMovePct float64 `yaml:"favorable_move_pct" json:"favorable_move_pct"` // min move for TIMEOUT_VALID
	LowVolBandPct    float64 `yaml:"lowvol_band_pct" json:"lowvol_band_pct"`       // band for TIMEOUT_LOWVOL
}

// Learning tunes the feedback loop cadence.
type Learning struct {
	MinSamples     int `yaml:"min_samples" json:"min_samples"`         // before weights move at all
	RecomputeEvery int `yaml:"recompute_every" json:"recompute_every"` // outcomes between recomputes
}

// Duration wraps time.Duration with YAML string parsing ("4h", "30m").
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON keeps config hashing deterministic.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// GateMinTier resolves the minimum quality tier for a regime, honoring the
// low-regime-confidence degradation rule.
func (c *Config) GateMinTier(regime contracts.Regime, regimeConfidence float64) contracts.QualityTier {
	if regimeConfidence < c.Gate.LowRegimeConfidence {
		return contracts.TierHigh
	}
	if tier, ok := c.Gate.PerRegimeMinTier[string(regime)]; ok {
		return contracts.QualityTier(tier)
	}
	return contracts.QualityTier(c.Gate.MinTier)
}

// QualityBias returns the threshold multiplier for a regime, 1.0 when none
// is configured.
func (c *Config) QualityBias(regime contracts.Regime) float64 {
	if bias, ok := c.Quality.RegimeBias[string(regime)]; ok && bias > 0 {
		return bias
	}
	return 1.0
}

// ExpiryFor computes the regime-scaled signal lifetime clamped to [Min, Max].
func (c *Config) ExpiryFor(regime contracts.Regime) time.Duration {
	dur := c.Expiry.Base.Std()
	if scale, ok := c.Expiry.RegimeScale[string(regime)]; ok && scale > 0 {
		dur = time.Duration(float64(dur) * scale)
	}
	if min := c.Expiry.Min.Std(); dur < min {
		dur = min
	}
	if max := c.Expiry.Max.Std(); dur > max {
		dur = max
	}
	return dur
}

// TierByID returns the tier definition, or nil.
func (c *Config) TierByID(id string) *Tier {
	for i := range c.Tiers {
		if c.Tiers[i].ID == id {
			return &c.Tiers[i]
		}
	}
	return nil
}
