package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// HealthResponse represents the JSON response structure for HTTP health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" | "unhealthy"
	Service   string                 `json:"service,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// CheckStatus represents the status of an individual check in the HTTP response.
type CheckStatus struct {
	Status  string `json:"status"` // "ok" | "error"
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// WithService stamps every HTTP response with the service name and version.
func WithService(name, version string) Option {
	return func(h *HealthChecker) {
		h.service = name
		h.version = version
	}
}

// Mount registers GET /health (liveness) and GET /ready (readiness) on r.
func (h *HealthChecker) Mount(r chi.Router) {
	r.Get("/health", h.LivenessHandler())
	r.Get("/ready", h.ReadinessHandler())
}

// LivenessHandler returns 200 while the process is alive and 503 when it should be restarted.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckLiveness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

// ReadinessHandler returns 200 when the service can take traffic and 503 otherwise.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckReadiness(r.Context())
		h.writeHealthResponse(w, status, err)
	}
}

func (h *HealthChecker) writeHealthResponse(w http.ResponseWriter, status *HealthStatus, err error) {
	response := HealthResponse{
		Service:   h.service,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckStatus, len(status.Checks)),
	}

	code := http.StatusOK
	response.Status = "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		response.Status = "unhealthy"
		if err != nil {
			response.Message = err.Error()
		}
	}

	for _, checkResult := range status.Checks {
		checkStatus := CheckStatus{
			Status:  "ok",
			Latency: checkResult.Latency.String(),
		}
		if !checkResult.Healthy {
			checkStatus.Status = "error"
			checkStatus.Error = checkResult.Error
		}
		response.Checks[checkResult.Name] = checkStatus
	}

	body, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		if h.logger != nil {
			h.logger.Error("Failed to encode health response", logger.ErrorField(marshalErr))
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
