package handlers_test

import (
	"net/http"
	"testing"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/service"
)

func TestRegistryLogin_Success(t *testing.T) {
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{})

	result := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"username": "admin1", "password": "pw",
	}, http.StatusOK)

	if result["token"] != "admin-token" {
		t.Fatalf("Expected admin token, got %v", result["token"])
	}
}

func TestRegistryLogin_BadCredentials(t *testing.T) {
	server := setupServer(t, &mockSessionService{loginErr: service.ErrInvalidCredentials}, &mockCheckinService{}, &mockDirectoryService{})

	doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"username": "admin1", "password": "wrong",
	}, http.StatusUnauthorized)
}

func TestRegistryRoutes_ScannerRoleForbidden(t *testing.T) {
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{})

	doJSON(t, http.MethodGet, server.URL+"/registry/attendees", scannerToken(t), nil, http.StatusForbidden)
}

func TestCreateAttendee_Success(t *testing.T) {
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{})

	result := doJSON(t, http.MethodPost, server.URL+"/registry/attendees", adminToken(t), map[string]any{
		"name":       "Jane Doe",
		"id_type":    "passport",
		"id_number":  "P1234567",
		"pass_types": []string{"exhibition_day1", "plenary"},
	}, http.StatusCreated)

	if result["success"] != true {
		t.Fatalf("Expected success, got %v", result)
	}
	attendee, ok := result["attendee"].(map[string]any)
	if !ok || attendee["name"] != "Jane Doe" {
		t.Fatalf("Expected attendee in response, got %v", result["attendee"])
	}
}

func TestCreateAttendee_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate id number", domain.ErrDuplicateIDNumber, http.StatusConflict},
		{"unknown pass type", domain.ErrUnknownPassType, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{createErr: tt.err})
			doJSON(t, http.MethodPost, server.URL+"/registry/attendees", adminToken(t), map[string]any{
				"name": "Jane Doe", "id_type": "passport", "id_number": "P1234567",
				"pass_types": []string{"plenary"},
			}, tt.wantStatus)
		})
	}
}

func TestListAttendees_ReturnsPage(t *testing.T) {
	directory := &mockDirectoryService{attendees: []domain.Attendee{
		{ID: 1, Name: "Jane Doe"},
		{ID: 2, Name: "Sam Vendor"},
	}}
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, directory)

	result := doJSON(t, http.MethodGet, server.URL+"/registry/attendees?limit=10&offset=0", adminToken(t), nil, http.StatusOK)
	if result["count"] != float64(2) {
		t.Fatalf("Expected 2 attendees, got %v", result["count"])
	}
	if result["limit"] != float64(10) {
		t.Fatalf("Expected echoed limit, got %v", result["limit"])
	}
}

func TestCredential_Success(t *testing.T) {
	directory := &mockDirectoryService{credential: "42:plenary:abcdef"}
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, directory)

	result := doJSON(t, http.MethodGet, server.URL+"/registry/attendees/42/credential?pass_type=plenary", adminToken(t), nil, http.StatusOK)
	if result["qr_data"] != "42:plenary:abcdef" {
		t.Fatalf("Expected credential payload, got %v", result["qr_data"])
	}
	if result["pass_type"] != "plenary" {
		t.Fatalf("Expected pass type echo, got %v", result["pass_type"])
	}
}

func TestOverrideCheckin(t *testing.T) {
	server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{})

	result := doJSON(t, http.MethodPost, server.URL+"/registry/checkins/7/override", adminToken(t), nil, http.StatusOK)
	if result["status"] != "manual_override" {
		t.Fatalf("Expected manual_override status, got %v", result["status"])
	}

	doJSON(t, http.MethodPost, server.URL+"/registry/checkins/abc/override", adminToken(t), nil, http.StatusBadRequest)
}

func TestCredential_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		credErr    error
		wantStatus int
	}{
		{"bad entry id", "/registry/attendees/abc/credential?pass_type=plenary", nil, http.StatusBadRequest},
		{"missing pass type", "/registry/attendees/42/credential", nil, http.StatusBadRequest},
		{"unknown pass type", "/registry/attendees/42/credential?pass_type=vip", nil, http.StatusBadRequest},
		{"unknown entry", "/registry/attendees/42/credential?pass_type=plenary", domain.ErrUnknownEntry, http.StatusNotFound},
		{"pass not held", "/registry/attendees/42/credential?pass_type=plenary", service.ErrPassNotHeld, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupServer(t, &mockSessionService{}, &mockCheckinService{}, &mockDirectoryService{credErr: tt.credErr})
			doJSON(t, http.MethodGet, server.URL+tt.url, adminToken(t), nil, tt.wantStatus)
		})
	}
}
