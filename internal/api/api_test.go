package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignitex/engine/internal/api/handlers"
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/engine"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/pkg/logger"
)

type repoStub struct {
	active  []contracts.Signal
	history []contracts.Signal
}

func (r *repoStub) Save(ctx context.Context, sig *contracts.Signal) error { return nil }
func (r *repoStub) UpdateOutcome(ctx context.Context, outcome *contracts.Outcome) error {
	return nil
}
func (r *repoStub) LoadActive(ctx context.Context, tier string) ([]contracts.Signal, error) {
	return r.active, nil
}
func (r *repoStub) LastReleaseTime(ctx context.Context, tier string) (*time.Time, error) {
	return nil, nil
}
func (r *repoStub) CountReleasedSince(ctx context.Context, tier string, since time.Time) (int, error) {
	return 0, nil
}
func (r *repoStub) History(ctx context.Context, tier string, limit int) ([]contracts.Signal, error) {
	if limit > 0 && limit < len(r.history) {
		return r.history[:limit], nil
	}
	return r.history, nil
}

type rejStub struct {
	entries []contracts.Rejection
}

func (r *rejStub) Log(ctx context.Context, rejection *contracts.Rejection) error { return nil }
func (r *rejStub) List(ctx context.Context, stage string, limit int) ([]contracts.Rejection, error) {
	return r.entries, nil
}
func (r *rejStub) Prune(ctx context.Context, keep int) error { return nil }

type perfStub struct{}

func (perfStub) Get(ctx context.Context, strategy string, regime contracts.Regime) (*contracts.PerformanceRecord, error) {
	return nil, nil
}
func (perfStub) All(ctx context.Context) ([]contracts.PerformanceRecord, error) {
	return []contracts.PerformanceRecord{{Strategy: "momentum", Regime: contracts.RegimeRangeBound, Wins: 12, Losses: 8, Samples: 20}}, nil
}
func (perfStub) Upsert(ctx context.Context, record *contracts.PerformanceRecord) error { return nil }
func (perfStub) MarkProcessed(ctx context.Context, signalID string) (bool, error) {
	return true, nil
}

type trackerStub struct{ n int }

func (t trackerStub) ActiveCount() int { return t.n }

func testRouter(t *testing.T, repo *repoStub) http.Handler {
	t.Helper()
	log := logger.NewNop()

	cfg := &strategyconfig.Config{}
	cfg.Tiers = []strategyconfig.Tier{{ID: "premium", Interval: strategyconfig.Duration(time.Minute)}}
	sched := tiers.New(cfg, repo, func(ctx context.Context, s *contracts.Signal) error { return nil }, log)
	eng := engine.New(cfg, engine.Deps{Tiers: sched}, time.Second, log)

	return NewRouter(Handlers{
		Signals:     handlers.NewSignalHandler(repo, log),
		Rejections:  handlers.NewRejectionHandler(&rejStub{}, log),
		Status:      handlers.NewStatusHandler(eng, sched, trackerStub{n: 3}, nil, log),
		Performance: handlers.NewPerformanceHandler(perfStub{}, nil, log),
	}, log)
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, testRouter(t, &repoStub{}), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestActiveSignals(t *testing.T) {
	repo := &repoStub{active: []contracts.Signal{{ID: "a"}, {ID: "b"}}}
	rec := get(t, testRouter(t, repo), "/api/signals/active?tier=premium")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count   int                `json:"count"`
		Signals []contracts.Signal `json:"signals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 2 || len(body.Signals) != 2 {
		t.Errorf("count = %d signals = %d, want 2", body.Count, len(body.Signals))
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	router := testRouter(t, &repoStub{})

	if rec := get(t, router, "/api/signals/history?limit=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rec.Code)
	}
	if rec := get(t, router, "/api/signals/history?limit=9999"); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=9999 status = %d, want 400", rec.Code)
	}
	if rec := get(t, router, "/api/signals/history?limit=10"); rec.Code != http.StatusOK {
		t.Errorf("limit=10 status = %d, want 200", rec.Code)
	}
}

func TestRejectionsStageValidation(t *testing.T) {
	router := testRouter(t, &repoStub{})

	if rec := get(t, router, "/api/rejections?stage=bogus"); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus stage status = %d, want 400", rec.Code)
	}
	if rec := get(t, router, "/api/rejections?stage=quality"); rec.Code != http.StatusOK {
		t.Errorf("quality stage status = %d, want 200", rec.Code)
	}
}

func TestStatusSnapshot(t *testing.T) {
	rec := get(t, testRouter(t, &repoStub{}), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Tiers          []tiers.Status `json:"tiers"`
		ActiveMonitors int            `json:"active_monitors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tiers) != 1 {
		t.Errorf("tiers = %d, want 1", len(body.Tiers))
	}
	if body.ActiveMonitors != 3 {
		t.Errorf("active monitors = %d, want 3", body.ActiveMonitors)
	}
}

func TestTickWithoutScheduler(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/tick", nil)
	rec := httptest.NewRecorder()
	testRouter(t, &repoStub{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when internal scheduler absent", rec.Code)
	}
}

func TestPerformance(t *testing.T) {
	rec := get(t, testRouter(t, &repoStub{}), "/api/performance")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, testRouter(t, &repoStub{}), "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
