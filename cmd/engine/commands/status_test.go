package commands

import (
	"strings"
	"testing"

	"github.com/ignitex/engine/internal/strategyconfig"
)

func TestStrategyBanner_FromShippedConfig(t *testing.T) {
	cfg, _, err := strategyconfig.Load("../../../config/strategy/ignitex_v1.yaml")
	if err != nil {
		t.Fatalf("load shipped strategy: %v", err)
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		t.Fatalf("hash strategy: %v", err)
	}

	banner := strategyBanner(cfg, hash)
	if !strings.HasPrefix(banner, "ignitex_v1 (") {
		t.Fatalf("banner %q does not lead with the strategy id", banner)
	}
	if !strings.Contains(banner, hash[:12]) {
		t.Fatalf("banner %q does not carry the hash prefix", banner)
	}
}

func TestStrategyBanner_ShortHash(t *testing.T) {
	cfg := &strategyconfig.Config{}
	cfg.Meta.StrategyID = "test_v1"

	if got := strategyBanner(cfg, "abc"); got != "test_v1 (abc)" {
		t.Fatalf("banner = %q, want %q", got, "test_v1 (abc)")
	}
}
