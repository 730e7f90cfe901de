package strategyconfig

import (
	"fmt"
	"math"

	"github.com/ignitex/engine/internal/contracts"
)

// ValidationError aborts startup; the config cannot be run as written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but suspicious setting.
type Warning struct {
	Code    string
	Message string
}

var validTiers = map[string]bool{
	string(contracts.TierLow):     true,
	string(contracts.TierMedium):  true,
	string(contracts.TierHigh):    true,
	string(contracts.TierPremium): true,
}

// Validate checks all required constraints.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	if len(cfg.Universe.Symbols) == 0 {
		return ValidationError{"universe.symbols", "at least one symbol required"}
	}
	if cfg.Universe.CandleWindow < 20 {
		return ValidationError{"universe.candle_window", "must be >= 20"}
	}

	// === Consensus ===
	if cfg.Consensus.MinDetectors < 1 {
		return ValidationError{"consensus.min_detectors", "must be >= 1"}
	}
	if cfg.Consensus.RegimeBoost < 1 {
		return ValidationError{"consensus.regime_boost", "must be >= 1"}
	}
	if cfg.Consensus.RegimeDampen <= 0 || cfg.Consensus.RegimeDampen > 1 {
		return ValidationError{"consensus.regime_dampen", "must be in (0, 1]"}
	}
	if !(cfg.Consensus.MediumMinConfidence < cfg.Consensus.HighMinConfidence &&
		cfg.Consensus.HighMinConfidence < cfg.Consensus.PremiumMinConfidence) {
		return ValidationError{"consensus", "tier confidence thresholds must be strictly increasing"}
	}

	// === Gate ===
	if !validTiers[cfg.Gate.MinTier] {
		return ValidationError{"gate.min_tier", fmt.Sprintf("unknown tier %q", cfg.Gate.MinTier)}
	}
	for regime, tier := range cfg.Gate.PerRegimeMinTier {
		if !validTiers[tier] {
			return ValidationError{"gate.per_regime_min_tier", fmt.Sprintf("unknown tier %q for regime %s", tier, regime)}
		}
	}
	if cfg.Gate.LowRegimeConfidence < 0 || cfg.Gate.LowRegimeConfidence > 1 {
		return ValidationError{"gate.low_regime_confidence", "must be in [0, 1]"}
	}

	// === Quality ===
	if cfg.Quality.MinScore < 0 || cfg.Quality.MinScore > 100 {
		return ValidationError{"quality.min_score", "must be in [0, 100]"}
	}
	if cfg.Quality.MinWinProbability < 0 || cfg.Quality.MinWinProbability > 1 {
		return ValidationError{"quality.min_win_probability", "must be in [0, 1]"}
	}
	if math.Abs(cfg.Quality.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"quality.weights", fmt.Sprintf("must sum to 1.0, got %.4f", cfg.Quality.Weights.Sum())}
	}

	// === Risk ===
	if cfg.Risk.RewardRiskFloor < 1 {
		return ValidationError{"risk.reward_risk_floor", "must be >= 1"}
	}
	if cfg.Risk.KellyFraction <= 0 || cfg.Risk.KellyFraction > 1 {
		return ValidationError{"risk.kelly_fraction", "must be in (0, 1]"}
	}
	if cfg.Risk.MaxPositionPct <= 0 || cfg.Risk.MaxPositionPct > 0.5 {
		return ValidationError{"risk.max_position_pct", "must be in (0, 0.5]"}
	}
	if cfg.Risk.StopATRMult <= 0 {
		return ValidationError{"risk.stop_atr_mult", "must be > 0"}
	}
	if len(cfg.Risk.TargetATRMults) == 0 || len(cfg.Risk.TargetATRMults) > 3 {
		return ValidationError{"risk.target_atr_mults", "must have 1-3 entries"}
	}
	for i := 1; i < len(cfg.Risk.TargetATRMults); i++ {
		if cfg.Risk.TargetATRMults[i] <= cfg.Risk.TargetATRMults[i-1] {
			return ValidationError{"risk.target_atr_mults", "must be strictly increasing"}
		}
	}

	// === Expiry ===
	if cfg.Expiry.Min.Std() <= 0 {
		return ValidationError{"expiry.min", "must be > 0"}
	}
	if cfg.Expiry.Max.Std() < cfg.Expiry.Min.Std() {
		return ValidationError{"expiry.max", "must be >= expiry.min"}
	}
	if cfg.Expiry.Base.Std() <= 0 {
		return ValidationError{"expiry.base", "must be > 0"}
	}

	// === Tiers ===
	if len(cfg.Tiers) == 0 {
		return ValidationError{"tiers", "at least one tier required"}
	}
	seen := make(map[string]bool)
	for i, tier := range cfg.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if tier.ID == "" {
			return ValidationError{field + ".id", "required"}
		}
		if seen[tier.ID] {
			return ValidationError{field + ".id", fmt.Sprintf("duplicate tier %q", tier.ID)}
		}
		seen[tier.ID] = true
		if tier.Interval.Std() <= 0 {
			return ValidationError{field + ".interval", "must be > 0"}
		}
		if tier.DailyQuota < 1 {
			return ValidationError{field + ".daily_quota", "must be >= 1"}
		}
	}

	// === Tracker ===
	if cfg.Tracker.FavorableMovePct <= 0 {
		return ValidationError{"tracker.favorable_move_pct", "must be > 0"}
	}
	if cfg.Tracker.LowVolBandPct <= 0 {
		return ValidationError{"tracker.lowvol_band_pct", "must be > 0"}
	}

	// === Learning ===
	if cfg.Learning.MinSamples < 1 {
		return ValidationError{"learning.min_samples", "must be >= 1"}
	}
	if cfg.Learning.RecomputeEvery < 1 {
		return ValidationError{"learning.recompute_every", "must be >= 1"}
	}

	return nil
}

// Warn returns advisory findings that do not block startup.
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Quality.MinWinProbability < 0.5 {
		warnings = append(warnings, Warning{
			Code:    "W001",
			Message: fmt.Sprintf("quality.min_win_probability %.2f accepts negative-edge signals", cfg.Quality.MinWinProbability),
		})
	}

	if cfg.Risk.RewardRiskFloor < 1.5 {
		warnings = append(warnings, Warning{
			Code:    "W002",
			Message: fmt.Sprintf("risk.reward_risk_floor %.2f is aggressive; 1.5+ recommended", cfg.Risk.RewardRiskFloor),
		})
	}

	for _, tier := range cfg.Tiers {
		if tier.Interval.Std() < cfg.Expiry.Min.Std()/4 {
			warnings = append(warnings, Warning{
				Code:    "W003",
				Message: fmt.Sprintf("tier %q releases much faster than signals resolve", tier.ID),
			})
		}
	}

	for regime, bias := range cfg.Quality.RegimeBias {
		if bias < 0.5 || bias > 2.0 {
			warnings = append(warnings, Warning{
				Code:    "W004",
				Message: fmt.Sprintf("quality.regime_bias[%s]=%.2f is outside the sane range [0.5, 2.0]", regime, bias),
			})
		}
	}

	return warnings
}
