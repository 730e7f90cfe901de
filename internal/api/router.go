package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ignitex/engine/internal/api/handlers"
	"github.com/ignitex/engine/internal/feed"
	"github.com/ignitex/engine/internal/metrics"
	"github.com/ignitex/engine/pkg/logger"
)

// Handlers bundles everything the router mounts. Hub may be nil when the
// websocket feed is not running.
type Handlers struct {
	Signals     *handlers.SignalHandler
	Rejections  *handlers.RejectionHandler
	Status      *handlers.StatusHandler
	Performance *handlers.PerformanceHandler
	Hub         *feed.Hub
}

// NewRouter wires all HTTP routes and middleware.
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	if h.Hub != nil {
		r.HandleFunc("/ws", h.Hub.HandleWS).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signals/active", h.Signals.Active).Methods("GET")
	api.HandleFunc("/signals/history", h.Signals.History).Methods("GET")
	api.HandleFunc("/rejections", h.Rejections.List).Methods("GET")
	api.HandleFunc("/status", h.Status.Get).Methods("GET")
	api.HandleFunc("/performance", h.Performance.Get).Methods("GET")
	api.HandleFunc("/tick", h.Status.Tick).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "ignitex-engine",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
