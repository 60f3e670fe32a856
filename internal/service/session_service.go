package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/gates"
	"github.com/openfield/gatepass/internal/repo/postgres"
	"github.com/openfield/gatepass/pkg/auth"
	"github.com/openfield/gatepass/pkg/config"
	"github.com/openfield/gatepass/pkg/events"
	"github.com/openfield/gatepass/pkg/logger"
	"github.com/openfield/gatepass/pkg/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials or not authorized for this role")
	ErrUnknownGate        = errors.New("unknown gate")
)

type ScannerLoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	GateNumber string `json:"gate_number"`
	DeviceID   string `json:"device_id,omitempty"`
}

type ScannerSession struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Operator  string      `json:"operator"`
	Gate      domain.Gate `json:"gate_info"`
}

type RegistrySession struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Username     string    `json:"username"`
	Organization string    `json:"organization"`
	Role         string    `json:"role"`
}

// SessionService is the access controller: it authenticates operators and
// issues the scoped, time-limited tokens every other endpoint requires.
type SessionService interface {
	ScannerLogin(ctx context.Context, req *ScannerLoginRequest) (*ScannerSession, error)
	RegistryLogin(ctx context.Context, username, password string) (*RegistrySession, error)
}

type sessionService struct {
	operators postgres.OperatorRepo
	devices   postgres.DeviceRepo
	catalog   *gates.Catalog
	eventBus  events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
}

func NewSessionService(
	operators postgres.OperatorRepo,
	devices postgres.DeviceRepo,
	catalog *gates.Catalog,
	eventBus events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		operators: operators,
		devices:   devices,
		catalog:   catalog,
		eventBus:  eventBus,
		metrics:   m,
		cfg:       cfg,
	}
}

// ScannerLogin authenticates a gate operator and binds the session to one
// gate for a full shift. There is no refresh: after the shift-length TTL
// the operator logs in again.
func (s *sessionService) ScannerLogin(ctx context.Context, req *ScannerLoginRequest) (*ScannerSession, error) {
	gate, ok := s.catalog.Gate(req.GateNumber)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGate, req.GateNumber)
	}

	operator, err := s.authenticate(ctx, req.Username, req.Password, domain.RoleScanner)
	if err != nil {
		s.metrics.ScannerLogins.WithLabelValues("denied").Inc()
		return nil, err
	}

	if req.DeviceID != "" {
		if err := s.devices.Upsert(ctx, req.DeviceID, operator.Username, gate.Number); err != nil {
			// Device bookkeeping must not block a valid operator at the gate.
			logger.WarnContext(ctx, "Failed to upsert scanner device", "error", err, "device_id", req.DeviceID)
		}
	}

	if err := s.operators.MarkLogin(ctx, operator.Username); err != nil {
		logger.WarnContext(ctx, "Failed to record last login", "error", err, "username", operator.Username)
	}

	ttl := s.cfg.Auth.ScannerSessionTTL
	token, err := auth.NewSessionToken(operator.Username, domain.RoleScanner, gate.Number, req.DeviceID, s.cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	s.metrics.ScannerLogins.WithLabelValues("ok").Inc()
	if err := s.eventBus.Publish(ctx, events.ScannerLoggedIn, events.ScannerLoggedInEvent{
		Operator:   operator.Username,
		GateNumber: gate.Number,
		DeviceID:   req.DeviceID,
		LoggedInAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish scanner login event", "error", err)
	}

	return &ScannerSession{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		Operator:  operator.Username,
		Gate:      gate,
	}, nil
}

func (s *sessionService) RegistryLogin(ctx context.Context, username, password string) (*RegistrySession, error) {
	operator, err := s.authenticate(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if err := s.operators.MarkLogin(ctx, operator.Username); err != nil {
		logger.WarnContext(ctx, "Failed to record last login", "error", err, "username", operator.Username)
	}

	ttl := s.cfg.Auth.AccessTokenTTL
	token, err := auth.NewSessionToken(operator.Username, operator.Role, "", "", s.cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &RegistrySession{
		Token:        token,
		ExpiresAt:    time.Now().Add(ttl),
		Username:     operator.Username,
		Organization: operator.Organization,
		Role:         operator.Role,
	}, nil
}

func (s *sessionService) authenticate(ctx context.Context, username, password, role string) (*domain.Operator, error) {
	operator, err := s.operators.FindActive(ctx, username, role)
	if err != nil {
		return nil, fmt.Errorf("failed to look up operator: %w", err)
	}
	if operator == nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(password, operator.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	return operator, nil
}
