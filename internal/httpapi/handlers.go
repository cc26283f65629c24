package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// ErrorResponse is the engine's standard error envelope, grounded on the
// teacher's internal/interfaces/http/contracts.go ErrorResponse shape.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is the §6 /v1/healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Breaker string `json:"breaker,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.facade != nil && s.facade.Breaker != nil {
		resp.Breaker = s.facade.Breaker.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDiagnose implements GET /v1/diagnose/{symbol}?force=bool&end=YYYY-MM-DD
// per §6's HTTP surface.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_symbol", "symbol path segment is required")
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_force", "force must be true or false")
			return
		}
		force = parsed
	}

	var endDate *time.Time
	if v := r.URL.Query().Get("end"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_end", "end must be formatted YYYY-MM-DD")
			return
		}
		endDate = &parsed
	}

	resp, err := s.facade.Diagnose(r.Context(), symbol, endDate, force)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "diagnose_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}
