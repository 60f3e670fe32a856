package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/gates"
	"github.com/openfield/gatepass/internal/service"
	"github.com/openfield/gatepass/pkg/auth"
	"github.com/openfield/gatepass/pkg/config"
	"github.com/openfield/gatepass/pkg/metrics"
)

type mockOperatorRepo struct {
	operators map[string]*domain.Operator // username -> operator
	logins    []string
}

func (m *mockOperatorRepo) FindActive(_ context.Context, username, role string) (*domain.Operator, error) {
	op, ok := m.operators[username]
	if !ok || op.Role != role || !op.IsActive {
		return nil, nil
	}
	return op, nil
}

func (m *mockOperatorRepo) MarkLogin(_ context.Context, username string) error {
	m.logins = append(m.logins, username)
	return nil
}

func sessionFixture(t *testing.T) (service.SessionService, *mockOperatorRepo, *config.Config) {
	t.Helper()

	hash, err := argon2id.CreateHash("gate-password", argon2id.DefaultParams)
	require.NoError(t, err)
	adminHash, err := argon2id.CreateHash("admin-password", argon2id.DefaultParams)
	require.NoError(t, err)

	operators := &mockOperatorRepo{operators: map[string]*domain.Operator{
		"scanner1": {Username: "scanner1", PasswordHash: hash, Role: domain.RoleScanner, IsActive: true},
		"inactive": {Username: "inactive", PasswordHash: hash, Role: domain.RoleScanner, IsActive: false},
		"admin1":   {Username: "admin1", PasswordHash: adminHash, Organization: "Organizers", Role: domain.RoleAdmin, IsActive: true},
	}}

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Auth.ScannerSessionTTL = 8 * time.Hour
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	m := metrics.NewWith(prometheus.NewRegistry())
	svc := service.NewSessionService(operators, &mockDeviceRepo{}, gates.Default(time.UTC), &mockPublisher{}, m, cfg)
	return svc, operators, cfg
}

func TestScannerLogin_Success(t *testing.T) {
	svc, operators, cfg := sessionFixture(t)

	session, err := svc.ScannerLogin(context.Background(), &service.ScannerLoginRequest{
		Username:   "scanner1",
		Password:   "gate-password",
		GateNumber: "Gate 1",
		DeviceID:   "device-9",
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, "scanner1", session.Operator)
	require.Equal(t, "Gate 1", session.Gate.Number)
	require.Contains(t, operators.logins, "scanner1")

	// The shift token carries operator, role, gate and device.
	claims, err := auth.Parse(session.Token, cfg.Auth.JWTSecret)
	require.NoError(t, err)
	require.Equal(t, "scanner1", claims.Operator)
	require.Equal(t, domain.RoleScanner, claims.Role)
	require.Equal(t, "Gate 1", claims.Gate)
	require.Equal(t, "device-9", claims.DeviceID)

	require.WithinDuration(t, time.Now().Add(cfg.Auth.ScannerSessionTTL), session.ExpiresAt, time.Minute)
}

func TestScannerLogin_Failures(t *testing.T) {
	svc, _, _ := sessionFixture(t)

	tests := []struct {
		name    string
		req     service.ScannerLoginRequest
		wantErr error
	}{
		{"unknown gate", service.ScannerLoginRequest{Username: "scanner1", Password: "gate-password", GateNumber: "Gate 99"}, service.ErrUnknownGate},
		{"wrong password", service.ScannerLoginRequest{Username: "scanner1", Password: "nope", GateNumber: "Gate 1"}, service.ErrInvalidCredentials},
		{"unknown user", service.ScannerLoginRequest{Username: "ghost", Password: "gate-password", GateNumber: "Gate 1"}, service.ErrInvalidCredentials},
		{"inactive user", service.ScannerLoginRequest{Username: "inactive", Password: "gate-password", GateNumber: "Gate 1"}, service.ErrInvalidCredentials},
		{"admin cannot log in as scanner", service.ScannerLoginRequest{Username: "admin1", Password: "admin-password", GateNumber: "Gate 1"}, service.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.ScannerLogin(context.Background(), &req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistryLogin_Success(t *testing.T) {
	svc, _, cfg := sessionFixture(t)

	session, err := svc.RegistryLogin(context.Background(), "admin1", "admin-password")
	require.NoError(t, err)
	require.Equal(t, "admin1", session.Username)
	require.Equal(t, domain.RoleAdmin, session.Role)
	require.Equal(t, "Organizers", session.Organization)

	claims, err := auth.Parse(session.Token, cfg.Auth.JWTSecret)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, claims.Role)
	require.Empty(t, claims.Gate)
}

func TestRegistryLogin_ScannerRoleRejected(t *testing.T) {
	svc, _, _ := sessionFixture(t)

	_, err := svc.RegistryLogin(context.Background(), "scanner1", "gate-password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}
