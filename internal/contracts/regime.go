package contracts

// Regime is a discrete label summarizing recent market behavior. The
// classifier derives it deterministically from an OHLC window.
type Regime string

const (
	RegimeTrendingUp       Regime = "TRENDING_UP"
	RegimeTrendingDown     Regime = "TRENDING_DOWN"
	RegimeRangeBound       Regime = "RANGE_BOUND"
	RegimeChoppy           Regime = "CHOPPY"
	RegimeVolatileBreakout Regime = "VOLATILE_BREAKOUT"
	RegimeUnknown          Regime = "UNKNOWN"
)

// Trending reports whether the regime is directional.
func (r Regime) Trending() bool {
	return r == RegimeTrendingUp || r == RegimeTrendingDown
}

// AllRegimes lists every classifiable regime, used for per-regime tables.
func AllRegimes() []Regime {
	return []Regime{
		RegimeTrendingUp,
		RegimeTrendingDown,
		RegimeRangeBound,
		RegimeChoppy,
		RegimeVolatileBreakout,
	}
}

// RegimeReading is the classifier output: a label plus how confident the
// classifier is in it (0-1). Low confidence degrades the gate to its
// strictest tier requirement.
type RegimeReading struct {
	Regime     Regime  `json:"regime"`
	Confidence float64 `json:"confidence"`
}
