package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-alerts/internal/models"
	"weather-alerts/internal/repository"
	"weather-alerts/internal/services"
	"weather-alerts/pkg/logging"
	"weather-alerts/pkg/metrics"
)

// DefaultRecordsLimit is used when ?limit is absent.
const DefaultRecordsLimit = 50

// WeatherHandler handles the read-only weather API endpoints
type WeatherHandler struct {
	records *services.RecordsService
	alerts  *services.AlertService
	store   repository.Store
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	records *services.RecordsService,
	alerts *services.AlertService,
	store repository.Store,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		records: records,
		alerts:  alerts,
		store:   store,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// RecordsResponse is returned by GET /api/records
type RecordsResponse struct {
	Data  []models.AlertRecord `json:"data"`
	Count int                  `json:"count"`
	Limit int                  `json:"limit"`
}

// PreviewResponse is returned by GET /api/alerts/preview
type PreviewResponse struct {
	Triggered bool                 `json:"triggered"`
	Evaluated int                  `json:"evaluated"`
	Matches   []models.AlertRecord `json:"matches"`
	Subject   string               `json:"subject,omitempty"`
	Body      string               `json:"body,omitempty"`
}

// GetRecords handles GET /api/records
func (h *WeatherHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/records"
	defer h.observe(endpoint, time.Now())

	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	records, err := h.records.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error(r.Context(), "[API_GET_RECORDS_ERROR] Failed to read records", logging.Fields{
			"limit": limit,
		}, err)
		h.sendError(w, r, "failed to retrieve records", http.StatusBadGateway)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, RecordsResponse{Data: records, Count: len(records), Limit: limit}, http.StatusOK)
}

// GetSummary handles GET /api/records/summary
func (h *WeatherHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/records/summary"
	defer h.observe(endpoint, time.Now())

	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	summary, err := h.records.Summarize(r.Context(), limit)
	if err != nil {
		h.logger.Error(r.Context(), "[API_GET_SUMMARY_ERROR] Failed to summarize records", logging.Fields{
			"limit": limit,
		}, err)
		h.sendError(w, r, "failed to summarize records", http.StatusBadGateway)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// PreviewAlert handles GET /api/alerts/preview. It never sends notifications.
func (h *WeatherHandler) PreviewAlert(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/alerts/preview"
	defer h.observe(endpoint, time.Now())

	result, err := h.alerts.Preview(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "[API_PREVIEW_ERROR] Failed to evaluate alert", nil, err)
		h.sendError(w, r, "failed to read recent records", http.StatusBadGateway)
		return
	}

	resp := PreviewResponse{
		Triggered: result.Decision.Triggered,
		Evaluated: len(result.Records),
		Matches:   result.Decision.Matches,
	}
	if result.Message != nil {
		resp.Subject = result.Message.Subject
		resp.Body = result.Message.Body
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, resp, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"backend":   h.store.Backend(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Store is unreachable", logging.Fields{
			"backend": h.store.Backend(),
			"error":   err.Error(),
		})
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *WeatherHandler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return DefaultRecordsLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > services.MaxRecordsLimit {
		h.sendError(w, r, "invalid limit, expected integer between 1 and "+strconv.Itoa(services.MaxRecordsLimit), http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func (h *WeatherHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/records", h.GetRecords).Methods("GET")
	router.HandleFunc("/api/records/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/alerts/preview", h.PreviewAlert).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
