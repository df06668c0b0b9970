package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Mohd-sharique79/cell-traceability-system/internal/logger"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/metrics"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/models"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/storage"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/validation"

	"github.com/google/uuid"
)

// KitsHandler routes between POST (allocate a kit) and GET (list all kits)
func KitsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		handleAllocateKit(w, r)
	case http.MethodGet:
		handleListKits(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAllocateKit creates a kit and binds its cells in one transaction
func handleAllocateKit(w http.ResponseWriter, r *http.Request) {
	// Limit request body size; even large kits are a few KB of serials
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

	var req models.AllocateKitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("failed to decode allocation request", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.CheckAllocationRequest(req.KitSerialNumber, req.CellSerialNumbers); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	kitID, err := storage.AllocateKit(req.KitSerialNumber, req.CellSerialNumbers)
	metrics.AllocationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			metrics.AllocationConflictsTotal.Inc()
			logger.Warn("allocation conflict", map[string]interface{}{
				"kit_serial_number": req.KitSerialNumber,
			})
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("failed to allocate kit", map[string]interface{}{
			"error":             err.Error(),
			"kit_serial_number": req.KitSerialNumber,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	metrics.KitsAllocatedTotal.Inc()
	metrics.CellsAllocatedTotal.Add(float64(len(req.CellSerialNumbers)))
	logger.Info("kit allocated", map[string]interface{}{
		"kit_id":            kitID,
		"kit_serial_number": req.KitSerialNumber,
		"cells":             len(req.CellSerialNumbers),
		"operator":          req.OperatorName,
	})

	writeJSON(w, http.StatusOK, models.AllocateKitResponse{
		Success:         true,
		KitID:           kitID,
		KitSerialNumber: req.KitSerialNumber,
		AllocatedCells:  len(req.CellSerialNumbers),
	})
}

// handleListKits returns all kits, newest first
func handleListKits(w http.ResponseWriter, r *http.Request) {
	kits, err := storage.ListKits()
	if err != nil {
		logger.Error("failed to list kits", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if kits == nil {
		kits = []models.Kit{}
	}
	writeJSON(w, http.StatusOK, kits)
}

// KitDetailHandler returns one kit and its allocated cell serial numbers.
// Path: GET /api/kits/{kitSerialNumber}
func KitDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kitSerialNumber := strings.TrimPrefix(r.URL.Path, "/api/kits/")
	if kitSerialNumber == "" || strings.Contains(kitSerialNumber, "/") {
		writeError(w, http.StatusBadRequest, "kit serial number required")
		return
	}

	kit, cells, err := storage.GetKitBySerial(kitSerialNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Kit not found")
			return
		}
		logger.Error("failed to get kit", map[string]interface{}{
			"error":             err.Error(),
			"kit_serial_number": kitSerialNumber,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if cells == nil {
		cells = []string{}
	}

	writeJSON(w, http.StatusOK, models.KitDetail{Kit: kit, Cells: cells})
}

// StartSessionHandler opens a validation session against an existing kit.
// Path: POST /api/validation/start
func StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.CheckSerialNumber("kit serial number", req.KitSerialNumber); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.CheckOperatorName(req.OperatorName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := uuid.NewString()
	kitID, err := storage.CreateSession(sessionID, req.KitSerialNumber, req.OperatorName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Kit not found")
			return
		}
		logger.Error("failed to start validation session", map[string]interface{}{
			"error":             err.Error(),
			"kit_serial_number": req.KitSerialNumber,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	metrics.SessionsStartedTotal.Inc()
	logger.Info("validation session started", map[string]interface{}{
		"session_id":        sessionID,
		"kit_serial_number": req.KitSerialNumber,
		"operator":          req.OperatorName,
	})

	writeJSON(w, http.StatusOK, models.StartSessionResponse{
		Success:         true,
		SessionID:       sessionID,
		KitID:           kitID,
		KitSerialNumber: req.KitSerialNumber,
	})
}

// ScanHandler validates a scanned cell against the session's kit and appends
// an audit log entry. Path: POST /api/validation/scan
func ScanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)

	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if err := validation.CheckSerialNumber("cell serial number", req.CellSerialNumber); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	session, err := storage.GetSession(req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Validation session not found")
			return
		}
		logger.Error("failed to resolve session for scan", map[string]interface{}{
			"error":      err.Error(),
			"session_id": req.SessionID,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	isValid, err := storage.CellInKit(req.CellSerialNumber, session.KitID)
	if err != nil {
		logger.Error("failed to check cell membership", map[string]interface{}{
			"error":              err.Error(),
			"session_id":         req.SessionID,
			"cell_serial_number": req.CellSerialNumber,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	result := models.ResultInvalid
	message := "Cell does not belong to this kit"
	if isValid {
		result = models.ResultValid
		message = "Cell validated successfully"
	}

	// Best-effort audit write: a log failure is reported server-side but
	// does not invalidate the verdict already computed for the operator.
	if err := storage.AppendValidationLog(req.SessionID, req.CellSerialNumber, result); err != nil {
		logger.Error("failed to log validation scan", map[string]interface{}{
			"error":              err.Error(),
			"session_id":         req.SessionID,
			"cell_serial_number": req.CellSerialNumber,
		})
	}

	metrics.ScansTotal.WithLabelValues(result).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, models.ScanResponse{
		Success:          true,
		IsValid:          isValid,
		CellSerialNumber: req.CellSerialNumber,
		KitSerialNumber:  session.KitSerialNumber,
		Message:          message,
	})
}

// CompleteSessionHandler transitions a session to completed. Completing an
// already-completed session succeeds without changing it.
// Path: POST /api/validation/complete
func CompleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)

	var req models.CompleteSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if err := storage.CompleteSession(req.SessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Validation session not found")
			return
		}
		logger.Error("failed to complete validation session", map[string]interface{}{
			"error":      err.Error(),
			"session_id": req.SessionID,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	metrics.SessionsCompletedTotal.Inc()
	logger.Info("validation session completed", map[string]interface{}{
		"session_id": req.SessionID,
	})

	writeJSON(w, http.StatusOK, models.CompleteSessionResponse{
		Success: true,
		Message: "Validation session completed",
	})
}

// SessionDetailHandler returns a session and its ordered scan log.
// Path: GET /api/validation/{sessionId}
func SessionDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/validation/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	session, err := storage.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		logger.Error("failed to get session", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sessionID,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	logs, err := storage.SessionLogs(sessionID)
	if err != nil {
		logger.Error("failed to get session logs", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sessionID,
		})
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if logs == nil {
		logs = []models.ValidationLogEntry{}
	}

	writeJSON(w, http.StatusOK, models.SessionDetail{Session: session, Logs: logs})
}

// HealthHandler returns service health status
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
