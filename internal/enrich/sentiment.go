package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignitex/engine/pkg/config"
	"github.com/ignitex/engine/pkg/httputil"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

const sentimentCacheKey = "sentiment:index"

// SentimentClient scrapes the market-wide fear/greed index and caches it.
// The index is global, not per-symbol, so one fetch serves a whole
// evaluation cycle.
type SentimentClient struct {
	cfg    config.SentimentConfig
	http   *httputil.Client
	cache  *redis.Cache
	logger *logger.Logger
}

// NewSentimentClient creates a sentiment scraper.
func NewSentimentClient(cfg config.SentimentConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *SentimentClient {
	return &SentimentClient{
		cfg:    cfg,
		http:   httpClient,
		cache:  cache,
		logger: log.Component("sentiment"),
	}
}

// Index returns the current 0-100 sentiment index. The second return is
// false when the index is unavailable; callers fall back to neutral.
func (s *SentimentClient) Index(ctx context.Context) (float64, bool) {
	if !s.cfg.Enabled {
		return 0, false
	}

	var cached float64
	if hit, err := s.cache.Get(ctx, sentimentCacheKey, &cached); err == nil && hit {
		return cached, true
	}

	value, err := s.fetch(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Sentiment fetch failed, falling back to neutral")
		return 0, false
	}

	if err := s.cache.Set(ctx, sentimentCacheKey, value, s.cfg.CacheTTL); err != nil {
		s.logger.WithError(err).Debug("Sentiment cache write failed")
	}

	s.logger.WithField("index", value).Debug("Fetched sentiment index")
	return value, true
}

func (s *SentimentClient) fetch(ctx context.Context) (float64, error) {
	resp, err := s.http.Get(ctx, s.cfg.URL)
	if err != nil {
		return 0, fmt.Errorf("sentiment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sentiment page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("sentiment parse failed: %w", err)
	}

	value, err := parseIndex(doc)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// parseIndex pulls the index value out of the page. The gauge widget
// renders it inside the .fng-circle element; an unexpected layout is an
// error rather than a silent zero.
func parseIndex(doc *goquery.Document) (float64, error) {
	text := strings.TrimSpace(doc.Find(".fng-circle").First().Text())
	if text == "" {
		return 0, fmt.Errorf("sentiment index element not found")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("sentiment index %q not numeric: %w", text, err)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("sentiment index %.1f out of range", value)
	}
	return value, nil
}
