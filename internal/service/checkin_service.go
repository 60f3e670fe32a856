package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/repo/postgres"
	"github.com/openfield/gatepass/pkg/events"
	"github.com/openfield/gatepass/pkg/logger"
	"github.com/openfield/gatepass/pkg/metrics"
)

// CheckinService is the reconciler: it records admission events from every
// gate and device, online or deferred, and guarantees at most one check-in
// per (attendee, pass type) system-wide.
type CheckinService interface {
	Record(ctx context.Context, sub *domain.CheckinSubmission) (*domain.CheckinOutcome, error)
	RecordBatch(ctx context.Context, subs []domain.CheckinSubmission, deviceID string) (*domain.BatchOutcome, error)
	Stats(ctx context.Context, gateNumber string) (*domain.GateStats, error)
	Override(ctx context.Context, checkinID int64) error
}

type checkinService struct {
	checkins  postgres.CheckinRepo
	attendees postgres.AttendeeRepo
	devices   postgres.DeviceRepo
	eventBus  events.Publisher
	metrics   *metrics.Metrics
}

func NewCheckinService(
	checkins postgres.CheckinRepo,
	attendees postgres.AttendeeRepo,
	devices postgres.DeviceRepo,
	eventBus events.Publisher,
	m *metrics.Metrics,
) CheckinService {
	return &checkinService{
		checkins:  checkins,
		attendees: attendees,
		devices:   devices,
		eventBus:  eventBus,
		metrics:   m,
	}
}

func (s *checkinService) Record(ctx context.Context, sub *domain.CheckinSubmission) (*domain.CheckinOutcome, error) {
	if sub.CheckInTime.IsZero() {
		sub.CheckInTime = time.Now()
	}

	outcome, err := s.checkins.Insert(ctx, sub)
	if err != nil {
		return nil, err
	}

	if !outcome.Recorded {
		s.metrics.CheckinsDuplicate.Inc()
		logger.InfoContext(ctx, "Duplicate check-in ignored",
			"entry_id", sub.EntryID,
			"pass_type", sub.PassType,
			"original_time", outcome.CheckInTime,
		)
		return outcome, nil
	}

	if attendee, err := s.attendees.FindByID(ctx, sub.EntryID); err == nil && attendee != nil {
		outcome.AttendeeName = attendee.Name
	}

	s.metrics.CheckinsRecorded.Inc()
	if err := s.eventBus.Publish(ctx, events.CheckinRecorded, events.CheckinRecordedEvent{
		CheckinID:   outcome.CheckinID,
		EntryID:     sub.EntryID,
		PassType:    sub.PassType.String(),
		GateNumber:  sub.GateNumber,
		Operator:    sub.ScannerOperator,
		DeviceID:    sub.ScannerDeviceID,
		CheckInTime: outcome.CheckInTime,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish check-in event", "error", err)
	}

	return outcome, nil
}

// RecordBatch syncs a device's deferred check-ins. Item outcomes are
// independent; the repo guarantees recorded + duplicates + errors == total
// even when the commit itself fails.
func (s *checkinService) RecordBatch(ctx context.Context, subs []domain.CheckinSubmission, deviceID string) (*domain.BatchOutcome, error) {
	now := time.Now()
	for i := range subs {
		if subs[i].CheckInTime.IsZero() {
			subs[i].CheckInTime = now
		}
	}

	outcome, err := s.checkins.InsertBatch(ctx, subs)
	if err != nil {
		return nil, err
	}

	s.metrics.BatchItemsTotal.WithLabelValues("recorded").Add(float64(outcome.Recorded))
	s.metrics.BatchItemsTotal.WithLabelValues("duplicate").Add(float64(outcome.Duplicates))
	s.metrics.BatchItemsTotal.WithLabelValues("error").Add(float64(outcome.Errors))

	if deviceID != "" {
		if err := s.devices.MarkSynced(ctx, deviceID); err != nil {
			logger.WarnContext(ctx, "Failed to mark device synced", "error", err, "device_id", deviceID)
		}
	}

	operator := ""
	if len(subs) > 0 {
		operator = subs[0].ScannerOperator
	}
	if err := s.eventBus.Publish(ctx, events.CheckinBatchSynced, events.CheckinBatchSyncedEvent{
		DeviceID:   deviceID,
		Operator:   operator,
		Total:      outcome.Total,
		Recorded:   outcome.Recorded,
		Duplicates: outcome.Duplicates,
		Errors:     outcome.Errors,
		SyncedAt:   time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish batch sync event", "error", err)
	}

	logger.InfoContext(ctx, "Batch sync processed",
		"device_id", deviceID,
		"total", outcome.Total,
		"recorded", outcome.Recorded,
		"duplicates", outcome.Duplicates,
		"errors", outcome.Errors,
	)

	return outcome, nil
}

func (s *checkinService) Stats(ctx context.Context, gateNumber string) (*domain.GateStats, error) {
	stats, err := s.checkins.Stats(ctx, gateNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query gate stats: %w", err)
	}
	return stats, nil
}

func (s *checkinService) Override(ctx context.Context, checkinID int64) error {
	return s.checkins.SetStatus(ctx, checkinID, domain.StatusManualOverride)
}
