package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/suprachakra/AeroFusionXR-sub002/internal/lifecycle"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/observability/metrics"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/privacy"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

// Handler serves the privacy daemon's HTTP API: private queries, erasure
// request intake, budget introspection, and health probes.
type Handler struct {
	logger    *logrus.Logger
	engine    *privacy.DifferentialPrivacyEngine
	lifecycle *lifecycle.DataLifecycleManager
	metrics   *metrics.PrivacyMetrics
	startedAt time.Time
}

// NewHandler wires the API handler
func NewHandler(engine *privacy.DifferentialPrivacyEngine, manager *lifecycle.DataLifecycleManager, pm *metrics.PrivacyMetrics, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		logger:    logger,
		engine:    engine,
		lifecycle: manager,
		metrics:   pm,
		startedAt: time.Now(),
	}
}

// GetHealth reports liveness and uptime
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// GetBudget reports the current privacy budget state
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	ledger := h.engine.Ledger()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_epsilon":     ledger.Total(),
		"spent_epsilon":     ledger.Spent(),
		"remaining_epsilon": ledger.Remaining(),
		"delta":             ledger.Delta(),
		"allocations":       ledger.Allocations(),
	})
}

// PrivateMean computes a differentially private mean over the posted values.
// A request that would exceed the remaining budget is refused with 429 and
// spends nothing.
func (h *Handler) PrivateMean(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values  []float64 `json:"values"`
		Epsilon float64   `json:"epsilon"`
		Lower   float64   `json:"lower"`
		Upper   float64   `json:"upper"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := h.engine.PrivateMean(r.Context(), body.Values, body.Epsilon,
		privacy.Bounds{Lower: body.Lower, Upper: body.Upper})
	if err != nil {
		if errors.IsBudgetExhausted(err) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mean":              result,
		"epsilon_spent":     body.Epsilon,
		"remaining_epsilon": h.engine.Ledger().Remaining(),
	})
}

// GetQueryLog exposes the append-only accountant log for audit
func (h *Handler) GetQueryLog(w http.ResponseWriter, r *http.Request) {
	records := h.engine.Accountant().Records()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":         len(records),
		"total_epsilon": h.engine.Accountant().TotalEpsilon(),
		"queries":       records,
	})
}

// SubmitErasureRequest accepts a right-to-erasure request for a data subject
// and processes it asynchronously.
func (h *Handler) SubmitErasureRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SubjectID string `json:"subject_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	request, err := h.lifecycle.SubmitErasureRequest(body.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The request context dies with this handler; processing outlives it.
	go func() {
		if err := h.lifecycle.Process(context.Background(), request.RequestID); err != nil {
			h.logger.WithError(err).WithField("request_id", request.RequestID).Error("Erasure processing failed")
			if h.metrics != nil {
				h.metrics.RecordErasureRequest(string(models.ErasureStatusFailed))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordErasureRequest(string(models.ErasureStatusCompleted))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"request_id":   request.RequestID,
		"status":       request.Status,
		"submitted_at": request.SubmittedAt,
	})
}

// GetErasureRequest reports the state of a previously submitted request
func (h *Handler) GetErasureRequest(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	request, err := h.lifecycle.GetErasureRequest(requestID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]interface{}{
		"request_id":   request.RequestID,
		"subject_id":   request.SubjectID,
		"status":       request.Status,
		"submitted_at": request.SubmittedAt,
	}
	if request.Status == models.ErasureStatusCompleted || request.Status == models.ErasureStatusFailed {
		response["records_deleted"] = request.RecordsDeleted
	}
	if request.Error != "" {
		response["error"] = request.Error
	}
	if request.CompletedAt != nil {
		response["completed_at"] = request.CompletedAt
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
