package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfield/gatepass/internal/credential"
	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/mailer"
	"github.com/openfield/gatepass/internal/repo/postgres"
	"github.com/openfield/gatepass/internal/utils"
	"github.com/openfield/gatepass/pkg/cache"
	"github.com/openfield/gatepass/pkg/config"
	"github.com/openfield/gatepass/pkg/events"
	"github.com/openfield/gatepass/pkg/logger"
	"github.com/openfield/gatepass/pkg/metrics"
)

var ErrPassNotHeld = errors.New("attendee does not hold this pass type")

const exportCacheKey = "scanner:entries:export"

type RegisterRequest struct {
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	Phone        string   `json:"phone"`
	Email        string   `json:"email"`
	IDType       string   `json:"id_type"`
	IDNumber     string   `json:"id_number"`
	PassTypes    []string `json:"pass_types"`
	IsExhibitor  bool     `json:"is_exhibitor"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Organization = strings.TrimSpace(r.Organization)
	r.Email = utils.NormalizeEmail(r.Email)
	r.Phone = utils.NormalizePhone(r.Phone)
	r.IDType = strings.TrimSpace(r.IDType)
	r.IDNumber = strings.TrimSpace(r.IDNumber)
}

func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.IDType == "" || r.IDNumber == "" {
		return errors.New("id_type and id_number are required")
	}
	if len(r.PassTypes) == 0 && !r.IsExhibitor {
		return errors.New("at least one pass type is required")
	}
	if r.Email != "" && !utils.IsValidEmail(r.Email) {
		return errors.New("invalid email address")
	}
	if r.Phone != "" && !utils.IsValidPhone(r.Phone) {
		return errors.New("invalid phone number")
	}
	return nil
}

// Export is the whole-directory payload a scanning device downloads and
// caches for offline verification.
type Export struct {
	Count       int               `json:"count"`
	LastUpdated time.Time         `json:"last_updated"`
	Entries     []domain.Attendee `json:"entries"`
}

// DirectoryService is the authority side: registration with signature
// issuance, credential payload encoding and the device bulk export.
type DirectoryService interface {
	Register(ctx context.Context, req *RegisterRequest) (*domain.Attendee, error)
	List(ctx context.Context, limit, offset int) ([]domain.Attendee, error)
	Export(ctx context.Context) (*Export, error)
	Credential(ctx context.Context, entryID int64, passType domain.PassType) (string, error)
}

type directoryService struct {
	attendees postgres.AttendeeRepo
	cache     *cache.Client
	eventBus  events.Publisher
	mail      mailer.Service
	metrics   *metrics.Metrics
	cfg       *config.Config
}

func NewDirectoryService(
	attendees postgres.AttendeeRepo,
	c *cache.Client,
	eventBus events.Publisher,
	mail mailer.Service,
	m *metrics.Metrics,
	cfg *config.Config,
) DirectoryService {
	return &directoryService{
		attendees: attendees,
		cache:     c,
		eventBus:  eventBus,
		mail:      mail,
		metrics:   m,
		cfg:       cfg,
	}
}

// Register creates an attendee and issues the credential signature over the
// stable identity fields. The signature never changes afterwards, even when
// entitlements are granted or revoked.
func (s *directoryService) Register(ctx context.Context, req *RegisterRequest) (*domain.Attendee, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	a := &domain.Attendee{
		Name:         req.Name,
		Organization: req.Organization,
		Phone:        req.Phone,
		Email:        req.Email,
		IDType:       req.IDType,
		IDNumber:     req.IDNumber,
		IsExhibitor:  req.IsExhibitor,
	}
	for _, raw := range req.PassTypes {
		pt, err := domain.ParsePassType(raw)
		if err != nil {
			return nil, err
		}
		switch pt {
		case domain.PassExhibitionDay1:
			a.ExhibitionDay1 = true
		case domain.PassExhibitionDay2:
			a.ExhibitionDay2 = true
		case domain.PassInteractiveSessions:
			a.InteractiveSessions = true
		case domain.PassPlenary:
			a.Plenary = true
		case domain.PassExhibitor:
			a.IsExhibitor = true
		}
	}

	a.QRSignature = credential.Sign(a.CanonicalIdentity(), s.cfg.Auth.CredentialSecret)

	created, err := s.attendees.Create(ctx, a)
	if err != nil {
		return nil, err
	}

	s.invalidateExport(ctx)
	s.metrics.AttendeesRegistered.Inc()

	held := make([]string, 0, len(domain.AllPassTypes))
	for _, pt := range created.HeldPassTypes() {
		held = append(held, pt.String())
	}

	if err := s.eventBus.Publish(ctx, events.AttendeeRegistered, events.AttendeeRegisteredEvent{
		EntryID:      created.ID,
		Name:         created.Name,
		Organization: created.Organization,
		Email:        created.Email,
		PassTypes:    held,
		RegisteredAt: created.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish registration event", "error", err)
	}

	if created.Email != "" {
		if err := s.mail.SendPassIssued(created.Email, created.Name, held); err != nil {
			// Mail failure never fails registration.
			logger.ErrorContext(ctx, "Failed to send pass-issued email", "error", err, "entry_id", created.ID)
		}
	}

	return created, nil
}

func (s *directoryService) List(ctx context.Context, limit, offset int) ([]domain.Attendee, error) {
	return s.attendees.List(ctx, limit, offset)
}

// Export returns the complete current attendee set. The payload is cached
// briefly in Redis since every device refresh pulls the whole directory.
func (s *directoryService) Export(ctx context.Context) (*Export, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, exportCacheKey).Bytes(); err == nil {
			var cached Export
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	attendees, err := s.attendees.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export entries: %w", err)
	}

	export := &Export{
		Count:       len(attendees),
		LastUpdated: time.Now(),
		Entries:     attendees,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(export); err == nil {
			if err := s.cache.Set(ctx, exportCacheKey, raw, s.cfg.Redis.ExportCacheTTL).Err(); err != nil {
				logger.WarnContext(ctx, "Failed to cache export", "error", err)
			}
		}
	}

	return export, nil
}

// Credential encodes the QR payload for one held entitlement. The payload
// is derived, not stored; it can be regenerated at any time.
func (s *directoryService) Credential(ctx context.Context, entryID int64, passType domain.PassType) (string, error) {
	attendee, err := s.attendees.FindByID(ctx, entryID)
	if err != nil {
		return "", err
	}
	if attendee == nil {
		return "", domain.ErrUnknownEntry
	}
	if !attendee.Holds(passType) {
		return "", ErrPassNotHeld
	}

	return credential.Encode(attendee.ID, passType, attendee.QRSignature), nil
}

func (s *directoryService) invalidateExport(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, exportCacheKey).Err(); err != nil {
		logger.WarnContext(ctx, "Failed to invalidate export cache", "error", err)
	}
}
