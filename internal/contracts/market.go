package contracts

import "time"

// Ticker is a point-in-time snapshot from the market data gateway.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// OHLC is a single candle.
type OHLC struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// MarketSnapshot bundles everything one evaluation cycle needs for a symbol.
// Candles are ordered oldest first. Candles may be empty when the gateway is
// degraded; consumers must reject rather than score on missing OHLC.
type MarketSnapshot struct {
	Symbol  string  `json:"symbol"`
	Ticker  *Ticker `json:"ticker"`
	Candles []OHLC  `json:"candles"`
}

// HasCandles reports whether the snapshot carries at least n real candles.
func (m *MarketSnapshot) HasCandles(n int) bool {
	return m != nil && len(m.Candles) >= n
}

// LastClose returns the close of the most recent candle, or the ticker price
// when no candles are present.
func (m *MarketSnapshot) LastClose() float64 {
	if len(m.Candles) > 0 {
		return m.Candles[len(m.Candles)-1].Close
	}
	if m.Ticker != nil {
		return m.Ticker.Price
	}
	return 0
}

// MarketFeatures are the enrichment inputs to scoring. Each field defaults to
// a neutral value when its data source is unavailable; they are never
// fabricated from synthetic prices.
type MarketFeatures struct {
	Volatility  float64 `json:"volatility"`   // ATR-style fraction of price, e.g. 0.02
	Liquidity   float64 `json:"liquidity"`    // 0-1 score from quote depth/spread
	VolumeRatio float64 `json:"volume_ratio"` // current vs 20-candle average, 1.0 neutral
	Momentum    float64 `json:"momentum"`     // signed fraction over the window
	Sentiment   float64 `json:"sentiment"`    // 0-100 market sentiment index, 50 neutral
}

// NeutralFeatures returns features with every proxy at its neutral value.
func NeutralFeatures() MarketFeatures {
	return MarketFeatures{
		Volatility:  0,
		Liquidity:   0.5,
		VolumeRatio: 1.0,
		Momentum:    0,
		Sentiment:   50,
	}
}
