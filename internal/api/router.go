package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/miyagi/internal/api/handlers"
	"github.com/wonny/miyagi/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(webhookHandler *handlers.WebhookHandler, jobsHandler *handlers.JobsHandler, signalsHandler *handlers.SignalsHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Ingestion
	r.HandleFunc("/webhooks/tradingview", webhookHandler.Receive).Methods("POST")

	// Job callbacks (dispatcher / scheduler)
	r.HandleFunc("/jobs/process", jobsHandler.ProcessWebhook).Methods("POST")
	r.HandleFunc("/jobs/update-pnl", jobsHandler.UpdatePnl).Methods("POST")

	// Read API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signals", signalsHandler.ListSignals).Methods("GET")
	api.HandleFunc("/signals/{id}", signalsHandler.GetSignal).Methods("GET")
	api.HandleFunc("/trades", signalsHandler.ListTrades).Methods("GET")
	api.HandleFunc("/webhooks/{id}", signalsHandler.GetWebhookEvent).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "miyagi-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
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
