package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openfield/gatepass/internal/domain"
	mw "github.com/openfield/gatepass/internal/http/middleware"
	"github.com/openfield/gatepass/internal/http/response"
	"github.com/openfield/gatepass/internal/service"
	"github.com/openfield/gatepass/internal/verify"
	"github.com/openfield/gatepass/pkg/logger"
	"github.com/openfield/gatepass/pkg/metrics"
)

// ScannerHandlers serves the gate-device API: login, directory download,
// check-in submission (single and batch sync), online verification and stats.
type ScannerHandlers struct {
	sessions  service.SessionService
	checkins  service.CheckinService
	directory service.DirectoryService
	verifier  *verify.Verifier
	metrics   *metrics.Metrics
}

func NewScannerHandlers(
	sessions service.SessionService,
	checkins service.CheckinService,
	directory service.DirectoryService,
	verifier *verify.Verifier,
	m *metrics.Metrics,
) *ScannerHandlers {
	return &ScannerHandlers{
		sessions:  sessions,
		checkins:  checkins,
		directory: directory,
		verifier:  verifier,
		metrics:   m,
	}
}

// Login authenticates a scanner operator for one gate and returns the
// shift-length session token plus the gate's display metadata.
func (h *ScannerHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req service.ScannerLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.Username == "" || req.Password == "" || req.GateNumber == "" {
		response.BadRequest(w, "username, password and gate_number are required")
		return
	}

	session, err := h.sessions.ScannerLogin(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownGate):
			response.BadRequest(w, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(w, "Invalid credentials or not authorized as scanner")
		default:
			logger.ErrorContext(r.Context(), "Scanner login failed", "error", err)
			response.InternalError(w, "Login failed")
		}
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"operator":   session.Operator,
		"gate_info":  session.Gate,
	})
}

// Entries is the bulk export consumed by devices before going offline.
// Always the complete current set; the device replaces its cache wholesale.
func (h *ScannerHandlers) Entries(w http.ResponseWriter, r *http.Request) {
	export, err := h.directory.Export(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Entries export failed", "error", err)
		response.RetryLater(w, "Directory export unavailable, retry later")
		return
	}

	entries := export.Entries
	if entries == nil {
		entries = []domain.Attendee{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"count":        export.Count,
		"last_updated": export.LastUpdated,
		"entries":      entries,
	})
}

type checkinRequest struct {
	EntryID         int64     `json:"entry_id"`
	PassType        string    `json:"pass_type"`
	GateNumber      string    `json:"gate_number"`
	GateLocation    string    `json:"gate_location"`
	CheckInTime     time.Time `json:"check_in_time"`
	ScannerDeviceID string    `json:"scanner_device_id"`
	ScannerOperator string    `json:"scanner_operator"`
	QRData          string    `json:"qr_data,omitempty"`
}

func (req *checkinRequest) toSubmission(r *http.Request) (*domain.CheckinSubmission, error) {
	pt, err := domain.ParsePassType(req.PassType)
	if err != nil {
		return nil, err
	}

	sub := &domain.CheckinSubmission{
		EntryID:         req.EntryID,
		PassType:        pt,
		GateNumber:      req.GateNumber,
		GateLocation:    req.GateLocation,
		CheckInTime:     req.CheckInTime,
		ScannerDeviceID: req.ScannerDeviceID,
		ScannerOperator: req.ScannerOperator,
		QRData:          req.QRData,
	}

	// Session claims fill in what the device omitted.
	if claims := mw.Claims(r); claims != nil {
		if sub.ScannerOperator == "" {
			sub.ScannerOperator = claims.Operator
		}
		if sub.ScannerDeviceID == "" {
			sub.ScannerDeviceID = claims.DeviceID
		}
		if sub.GateNumber == "" {
			sub.GateNumber = claims.Gate
		}
	}
	return sub, nil
}

// Checkin records a single online check-in. A duplicate is a normal
// outcome, answered 200 with the original admission time.
func (h *ScannerHandlers) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.EntryID <= 0 {
		response.BadRequest(w, "entry_id must be a positive integer")
		return
	}

	sub, err := req.toSubmission(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	outcome, err := h.checkins.Record(r.Context(), sub)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEntry) {
			response.NotFound(w, "Entry not found")
			return
		}
		logger.ErrorContext(r.Context(), "Check-in failed", "error", err, "entry_id", sub.EntryID)
		response.RetryLater(w, "Check-in storage unavailable, retry later")
		return
	}

	if !outcome.Recorded {
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"success":       false,
			"message":       "Duplicate check-in - already recorded",
			"check_in_time": outcome.CheckInTime,
		})
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Check-in recorded successfully",
		"check_in_id":   outcome.CheckinID,
		"entry_id":      outcome.EntryID,
		"name":          outcome.AttendeeName,
		"check_in_time": outcome.CheckInTime,
	})
}

type batchRequest struct {
	Checkins []checkinRequest `json:"checkins"`
}

// CheckinBatch syncs deferred check-ins from an offline device. Items
// succeed, duplicate or error independently; the response counts always
// add up to the submitted total.
func (h *ScannerHandlers) CheckinBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	outcome := &domain.BatchOutcome{Total: len(req.Checkins)}
	subs := make([]domain.CheckinSubmission, 0, len(req.Checkins))
	for _, item := range req.Checkins {
		sub, err := item.toSubmission(r)
		if err != nil || item.EntryID <= 0 {
			outcome.Errors++
			outcome.ErrorDetails = append(outcome.ErrorDetails, invalidItemDetail(item, err))
			continue
		}
		subs = append(subs, *sub)
	}

	deviceID := ""
	if claims := mw.Claims(r); claims != nil {
		deviceID = claims.DeviceID
	}

	stored, err := h.checkins.RecordBatch(r.Context(), subs, deviceID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Batch sync failed", "error", err)
		response.RetryLater(w, "Batch sync storage unavailable, retry later")
		return
	}

	outcome.Recorded = stored.Recorded
	outcome.Duplicates = stored.Duplicates
	outcome.Errors += stored.Errors
	outcome.ErrorDetails = append(outcome.ErrorDetails, stored.ErrorDetails...)

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       outcome.Errors == 0,
		"total":         outcome.Total,
		"uploaded":      outcome.Recorded,
		"duplicates":    outcome.Duplicates,
		"errors":        outcome.Errors,
		"error_details": outcome.ErrorDetails,
	})
}

func invalidItemDetail(item checkinRequest, err error) string {
	if item.EntryID <= 0 {
		return "entry ID must be a positive integer"
	}
	if err != nil {
		return err.Error()
	}
	return "invalid item"
}

type verifyRequest struct {
	QRData     string `json:"qr_data"`
	GateNumber string `json:"gate_number,omitempty"`
}

// VerifyQR is the optional online double-check. Devices verify locally
// against their snapshot; this endpoint runs the same checks against the
// live directory when connectivity allows extra assurance.
func (h *ScannerHandlers) VerifyQR(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	gate := req.GateNumber
	if gate == "" {
		if claims := mw.Claims(r); claims != nil {
			gate = claims.Gate
		}
	}

	decision, err := h.verifier.Verify(r.Context(), req.QRData, gate)
	if err != nil {
		logger.ErrorContext(r.Context(), "Online verification failed", "error", err)
		response.RetryLater(w, "Verification unavailable, retry later")
		return
	}

	if decision.Allowed {
		h.metrics.ScansTotal.WithLabelValues("admitted").Inc()
	} else {
		h.metrics.ScansTotal.WithLabelValues(string(decision.Reason)).Inc()
	}

	response.WriteJSON(w, http.StatusOK, decision)
}

// Stats reports scan counts for the session's gate, a named gate, or all.
func (h *ScannerHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	gate := r.URL.Query().Get("gate_number")
	if gate == "" {
		if claims := mw.Claims(r); claims != nil {
			gate = claims.Gate
		}
	}

	stats, err := h.checkins.Stats(r.Context(), gate)
	if err != nil {
		logger.ErrorContext(r.Context(), "Stats query failed", "error", err)
		response.InternalError(w, "Failed to compute stats")
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}
