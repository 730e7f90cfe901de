package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/config"
	"github.com/ignitex/engine/pkg/httputil"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

// ErrUnavailable marks market data that could not be fetched. Callers must
// degrade (skip the symbol, use neutral features) rather than fabricate
// values when they see it.
var ErrUnavailable = errors.New("market data unavailable")

// Client is the REST market data gateway. It is the only component talking
// to the exchange API; everything downstream consumes contracts types.
type Client struct {
	http     *httputil.Client
	baseURL  string
	interval string
	limiter  *rate.Limiter
	cache    *redis.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

// NewClient creates a market data client from config.
func NewClient(cfg *config.Config, log *logger.Logger, httpClient *httputil.Client, cache *redis.Cache) *Client {
	return &Client{
		http:     httpClient,
		baseURL:  cfg.MarketData.BaseURL,
		interval: cfg.MarketData.CandleInterval,
		limiter:  rate.NewLimiter(rate.Limit(cfg.MarketData.RateLimit), cfg.MarketData.RateLimit),
		cache:    cache,
		cacheTTL: cfg.MarketData.CacheTTL,
		timeout:  cfg.MarketData.RequestTimeout,
		logger:   log.Component("marketdata"),
	}
}

// tickerResponse is the exchange 24hr ticker payload; prices come as strings.
type tickerResponse struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	Volume    string `json:"volume"`
}

// GetTicker returns the current ticker snapshot for a symbol. Recent values
// are served from the shared cache so concurrent monitor loops do not each
// hit the exchange.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*contracts.Ticker, error) {
	cacheKey := "ticker:" + symbol
	var cached contracts.Ticker
	if found, _ := c.cache.Get(ctx, cacheKey, &cached); found {
		return &cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	var resp tickerResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Ticker fetch failed")
		return nil, fmt.Errorf("%w: ticker %s: %v", ErrUnavailable, symbol, err)
	}

	ticker, err := resp.toTicker()
	if err != nil {
		return nil, fmt.Errorf("%w: ticker %s: %v", ErrUnavailable, symbol, err)
	}

	if err := c.cache.Set(ctx, cacheKey, ticker, c.cacheTTL); err != nil {
		c.logger.WithError(err).Debug("Ticker cache write failed")
	}

	return ticker, nil
}

func (r tickerResponse) toTicker() (*contracts.Ticker, error) {
	price, err := strconv.ParseFloat(r.LastPrice, 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("bad last price %q", r.LastPrice)
	}
	bid, _ := strconv.ParseFloat(r.BidPrice, 64)
	ask, _ := strconv.ParseFloat(r.AskPrice, 64)
	volume, _ := strconv.ParseFloat(r.Volume, 64)

	return &contracts.Ticker{
		Symbol:    r.Symbol,
		Price:     price,
		Bid:       bid,
		Ask:       ask,
		Volume:    volume,
		Timestamp: time.Now(),
	}, nil
}

// GetCandles returns up to count OHLC candles, oldest first. On any failure
// it returns ErrUnavailable; it never synthesizes candles.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, count int) ([]contracts.OHLC, error) {
	if interval == "" {
		interval = c.interval
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(interval), count)

	// Klines arrive as positional arrays of mixed number/string values.
	var raw [][]interface{}
	if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Candle fetch failed")
		return nil, fmt.Errorf("%w: candles %s: %v", ErrUnavailable, symbol, err)
	}

	candles := make([]contracts.OHLC, 0, len(raw))
	for _, row := range raw {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: candles %s: %v", ErrUnavailable, symbol, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseKline converts one positional kline row into an OHLC candle.
func parseKline(row []interface{}) (contracts.OHLC, error) {
	if len(row) < 6 {
		return contracts.OHLC{}, fmt.Errorf("kline row has %d fields", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return contracts.OHLC{}, fmt.Errorf("kline open time is %T", row[0])
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return contracts.OHLC{}, fmt.Errorf("kline field %d is %T", i, row[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return contracts.OHLC{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return contracts.OHLC{
		OpenTime: time.UnixMilli(int64(openTime)),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}

// Snapshot fetches everything one evaluation needs for a symbol. A missing
// ticker fails the snapshot; missing candles produce an ErrUnavailable so
// the caller can reject for insufficient real data.
func (c *Client) Snapshot(ctx context.Context, symbol string, candleCount int) (*contracts.MarketSnapshot, error) {
	ticker, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	candles, err := c.GetCandles(ctx, symbol, "", candleCount)
	if err != nil {
		return nil, err
	}

	return &contracts.MarketSnapshot{
		Symbol:  symbol,
		Ticker:  ticker,
		Candles: candles,
	}, nil
}
