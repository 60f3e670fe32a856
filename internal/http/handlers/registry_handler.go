package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/http/response"
	"github.com/openfield/gatepass/internal/service"
	"github.com/openfield/gatepass/pkg/logger"
)

// RegistryHandlers serves the registration-desk API: admin login, attendee
// creation and listing, and credential payload retrieval for pass printing.
type RegistryHandlers struct {
	sessions  service.SessionService
	directory service.DirectoryService
	checkins  service.CheckinService
}

func NewRegistryHandlers(sessions service.SessionService, directory service.DirectoryService, checkins service.CheckinService) *RegistryHandlers {
	return &RegistryHandlers{sessions: sessions, directory: directory, checkins: checkins}
}

type registryLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *RegistryHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req registryLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password are required")
		return
	}

	session, err := h.sessions.RegistryLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(w, "Invalid credentials")
			return
		}
		logger.ErrorContext(r.Context(), "Registry login failed", "error", err)
		response.InternalError(w, "Login failed")
		return
	}

	response.WriteJSON(w, http.StatusOK, session)
}

// CreateAttendee registers an attendee and issues the credential signature.
// A reused ID number is a conflict, not a server error.
func (h *RegistryHandlers) CreateAttendee(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	attendee, err := h.directory.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateIDNumber):
			response.Conflict(w, "An attendee with this ID number already exists")
		case errors.Is(err, domain.ErrUnknownPassType):
			response.BadRequest(w, err.Error())
		case strings.HasPrefix(err.Error(), "validation failed:"):
			response.BadRequest(w, err.Error())
		default:
			logger.ErrorContext(r.Context(), "Attendee registration failed", "error", err)
			response.InternalError(w, "Registration failed")
		}
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"attendee": attendee,
	})
}

func (h *RegistryHandlers) ListAttendees(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	attendees, err := h.directory.List(r.Context(), limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Attendee listing failed", "error", err)
		response.InternalError(w, "Failed to list attendees")
		return
	}
	if attendees == nil {
		attendees = []domain.Attendee{}
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(attendees),
		"limit":     limit,
		"offset":    offset,
		"attendees": attendees,
	})
}

// Credential returns the QR payload for one held entitlement, for printing
// or re-printing a pass. The payload is derived on demand, never stored.
func (h *RegistryHandlers) Credential(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || entryID <= 0 {
		response.BadRequest(w, "Invalid entry ID")
		return
	}

	passType, err := domain.ParsePassType(r.URL.Query().Get("pass_type"))
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	payload, err := h.directory.Credential(r.Context(), entryID, passType)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownEntry):
			response.NotFound(w, "Entry not found")
		case errors.Is(err, service.ErrPassNotHeld):
			response.WriteError(w, http.StatusForbidden, "Attendee does not hold this pass type", response.CodeForbidden)
		default:
			logger.ErrorContext(r.Context(), "Credential retrieval failed", "error", err, "entry_id", entryID)
			response.InternalError(w, "Failed to build credential")
		}
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"entry_id":  entryID,
		"pass_type": passType,
		"qr_data":   payload,
	})
}

// OverrideCheckin annotates an existing check-in record as a manual override,
// for when staff admit someone past a deny. The record is amended, not replaced.
func (h *RegistryHandlers) OverrideCheckin(w http.ResponseWriter, r *http.Request) {
	checkinID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || checkinID <= 0 {
		response.BadRequest(w, "Invalid check-in ID")
		return
	}

	if err := h.checkins.Override(r.Context(), checkinID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(w, "Check-in not found")
			return
		}
		logger.ErrorContext(r.Context(), "Override failed", "error", err, "check_in_id", checkinID)
		response.InternalError(w, "Failed to mark override")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"check_in_id": checkinID,
		"status":      domain.StatusManualOverride,
	})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
