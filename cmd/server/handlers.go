package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/internal/formatting"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// GET /api/v1/decisions?limit=50
func (api *APIServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	decisions, err := api.journal.Recent(r.Context(), limit)
	if err != nil {
		api.logger.Error("Failed to read decisions", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	api.respondJSON(w, http.StatusOK, decisions)
}

// GET /api/v1/decisions/resource?kind=Job&namespace=default&name=train
func (api *APIServer) handleResourceDecisions(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	namespace := r.URL.Query().Get("namespace")
	name := r.URL.Query().Get("name")

	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if kind == "" {
		kind = api.policy.TargetKind
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	decisions, err := api.journal.ForResource(r.Context(), kind, namespace, name, limit)
	if err != nil {
		api.logger.Error("Failed to read decisions", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	explanations := make([]string, 0, len(decisions))
	for _, d := range decisions {
		explanations = append(explanations, formatting.FormatDecision(d))
	}

	response := map[string]interface{}{
		"resource": map[string]string{
			"kind":      kind,
			"namespace": namespace,
			"name":      name,
		},
		"decisions":    decisions,
		"explanations": explanations,
	}

	api.respondJSON(w, http.StatusOK, response)
}

// GET /api/v1/stats
func (api *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	decisions, err := api.journal.Recent(r.Context(), 0)
	if err != nil {
		api.logger.Error("Failed to read decisions", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	api.respondJSON(w, http.StatusOK, formatting.Summarize(decisions))
}

// GET /api/v1/policy
func (api *APIServer) handlePolicy(w http.ResponseWriter, r *http.Request) {
	api.respondJSON(w, http.StatusOK, map[string]interface{}{
		"target_kind":                   api.policy.TargetKind,
		"min_expected_duration_seconds": int64(api.policy.MinExpectedDuration / time.Second),
		"cooldown_seconds":              int64(api.policy.Cooldown / time.Second),
	})
}

// GET /health
func (api *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	}
	status := http.StatusOK

	if api.database != nil {
		if err := api.database.Ping(); err != nil {
			health["status"] = "unhealthy"
			health["database"] = "disconnected"
			status = http.StatusServiceUnavailable
		} else {
			health["database"] = "connected"
		}
	} else {
		health["database"] = "in-memory"
	}

	api.respondJSON(w, status, health)
}

// GET /ready
func (api *APIServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := map[string]interface{}{
		"ready": true,
	}
	status := http.StatusOK

	if api.cluster != nil {
		if err := api.cluster(); err != nil {
			ready["ready"] = false
			ready["cluster"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	api.respondJSON(w, status, ready)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, true
	}
	l, err := strconv.Atoi(limitStr)
	if err != nil || l <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	if l > maxLimit {
		l = maxLimit
	}
	return l, true
}

func (api *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (api *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		api.logger.Debug("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (api *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
