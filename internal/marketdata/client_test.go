package marketdata

import (
	"testing"
	"time"
)

func TestParseKline(t *testing.T) {
	row := []interface{}{
		float64(1700000000000),
		"50000.10", "50500.00", "49800.25", "50200.00", "1234.5",
		float64(1700000299999),
	}

	candle, err := parseKline(row)
	if err != nil {
		t.Fatalf("parseKline failed: %v", err)
	}

	if candle.Open != 50000.10 || candle.High != 50500.00 || candle.Low != 49800.25 {
		t.Errorf("unexpected OHLC: %+v", candle)
	}
	if candle.Close != 50200.00 || candle.Volume != 1234.5 {
		t.Errorf("unexpected close/volume: %+v", candle)
	}
	if !candle.OpenTime.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected open time: %v", candle.OpenTime)
	}
}

func TestParseKline_Malformed(t *testing.T) {
	tests := []struct {
		name string
		row  []interface{}
	}{
		{"too short", []interface{}{float64(1), "1", "2"}},
		{"non-string price", []interface{}{float64(1), 50000.0, "2", "3", "4", "5"}},
		{"unparseable price", []interface{}{float64(1), "abc", "2", "3", "4", "5"}},
		{"non-numeric time", []interface{}{"not-a-time", "1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseKline(tt.row); err == nil {
				t.Error("expected error for malformed kline")
			}
		})
	}
}

func TestTickerResponse_ToTicker(t *testing.T) {
	resp := tickerResponse{
		Symbol:    "BTCUSDT",
		LastPrice: "50000.5",
		BidPrice:  "50000.0",
		AskPrice:  "50001.0",
		Volume:    "9876.5",
	}

	ticker, err := resp.toTicker()
	if err != nil {
		t.Fatalf("toTicker failed: %v", err)
	}
	if ticker.Price != 50000.5 || ticker.Bid != 50000.0 || ticker.Ask != 50001.0 {
		t.Errorf("unexpected ticker: %+v", ticker)
	}

	// Zero or garbage last price is unusable.
	bad := tickerResponse{LastPrice: "0"}
	if _, err := bad.toTicker(); err == nil {
		t.Error("expected error for zero price")
	}
	bad = tickerResponse{LastPrice: "garbage"}
	if _, err := bad.toTicker(); err == nil {
		t.Error("expected error for unparseable price")
	}
}
