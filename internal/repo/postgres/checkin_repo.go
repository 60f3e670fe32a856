package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfield/gatepass/internal/domain"
)

// CheckinRepo persists admission records. The unique index on
// (entry_id, pass_type) is the authoritative duplicate signal; every insert
// path relies on ON CONFLICT, never on a prior read.
type CheckinRepo interface {
	Insert(ctx context.Context, sub *domain.CheckinSubmission) (*domain.CheckinOutcome, error)
	InsertBatch(ctx context.Context, subs []domain.CheckinSubmission) (*domain.BatchOutcome, error)
	Stats(ctx context.Context, gateNumber string) (*domain.GateStats, error)
	SetStatus(ctx context.Context, checkinID int64, status string) error
}

type checkinRepo struct {
	pool  *pgxpool.Pool
	begin func(ctx context.Context) (pgx.Tx, error)
}

func NewCheckinRepo(pool *pgxpool.Pool) CheckinRepo {
	return &checkinRepo{pool: pool, begin: pool.Begin}
}

func (r *checkinRepo) Insert(ctx context.Context, sub *domain.CheckinSubmission) (*domain.CheckinOutcome, error) {
	const insertQ = `
		INSERT INTO check_ins (
			entry_id, pass_type, gate_number, gate_location, check_in_time,
			scanner_device_id, scanner_operator, verification_status, qr_data
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (entry_id, pass_type) DO NOTHING
		RETURNING id, check_in_time`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		id int64
		ts time.Time
	)
	err := r.pool.QueryRow(ctx, insertQ,
		sub.EntryID, sub.PassType, sub.GateNumber, sub.GateLocation, sub.CheckInTime,
		sub.ScannerDeviceID, sub.ScannerOperator, domain.StatusVerified, sub.QRData,
	).Scan(&id, &ts)

	if err == nil {
		return &domain.CheckinOutcome{Recorded: true, CheckinID: id, EntryID: sub.EntryID, CheckInTime: ts}, nil
	}

	if err == pgx.ErrNoRows {
		// Conflict: surface the original admission for the operator.
		const existingQ = `SELECT id, check_in_time FROM check_ins WHERE entry_id = $1 AND pass_type = $2`
		if err := r.pool.QueryRow(ctx, existingQ, sub.EntryID, sub.PassType).Scan(&id, &ts); err != nil {
			return nil, err
		}
		return &domain.CheckinOutcome{Recorded: false, CheckinID: id, EntryID: sub.EntryID, CheckInTime: ts}, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return nil, domain.ErrUnknownEntry
	}
	return nil, err
}

// InsertBatch applies a device sync inside one transaction. Items succeed,
// duplicate or error independently; a commit failure rolls back every
// recorded-but-uncommitted item and reports them as failed. The outcome
// always satisfies Recorded + Duplicates + Errors == Total.
func (r *checkinRepo) InsertBatch(ctx context.Context, subs []domain.CheckinSubmission) (*domain.BatchOutcome, error) {
	outcome := &domain.BatchOutcome{Total: len(subs)}
	if len(subs) == 0 {
		return outcome, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := r.begin(ctx)
	if err != nil {
		outcome.Errors = outcome.Total
		outcome.ErrorDetails = append(outcome.ErrorDetails, fmt.Sprintf("begin transaction: %v", err))
		return outcome, nil
	}
	defer tx.Rollback(ctx)

	// Intra-batch dedup key includes the timestamp so replaying an already
	// uploaded batch is a clean no-op, not a pile of errors.
	type dedupKey struct {
		entryID int64
		pass    domain.PassType
		ts      int64
	}
	seen := make(map[dedupKey]struct{}, len(subs))

	for _, sub := range subs {
		key := dedupKey{sub.EntryID, sub.PassType, sub.CheckInTime.Unix()}
		if _, dup := seen[key]; dup {
			outcome.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		// Existence pre-check keeps an unknown entry from aborting the whole
		// transaction with a foreign-key violation.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entries WHERE id = $1)`, sub.EntryID).Scan(&exists); err != nil {
			return failBatch(ctx, tx, outcome, err)
		}
		if !exists {
			outcome.Errors++
			outcome.ErrorDetails = append(outcome.ErrorDetails, fmt.Sprintf("entry %d not found", sub.EntryID))
			continue
		}

		ct, err := tx.Exec(ctx, `
			INSERT INTO check_ins (
				entry_id, pass_type, gate_number, gate_location, check_in_time,
				scanner_device_id, scanner_operator, verification_status, qr_data
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (entry_id, pass_type) DO NOTHING`,
			sub.EntryID, sub.PassType, sub.GateNumber, sub.GateLocation, sub.CheckInTime,
			sub.ScannerDeviceID, sub.ScannerOperator, domain.StatusVerified, sub.QRData,
		)
		if err != nil {
			return failBatch(ctx, tx, outcome, err)
		}

		if ct.RowsAffected() == 0 {
			outcome.Duplicates++
			continue
		}
		outcome.Recorded++
	}

	if err := tx.Commit(ctx); err != nil {
		// Everything recorded in this batch is gone; report it as failed.
		outcome.Errors += outcome.Recorded
		outcome.Recorded = 0
		outcome.ErrorDetails = append(outcome.ErrorDetails, fmt.Sprintf("commit failed, batch rolled back: %v", err))
		return outcome, nil
	}

	return outcome, nil
}

// failBatch converts a mid-batch storage failure into a fully rolled-back
// outcome: everything that is not a known duplicate counts as an error.
func failBatch(ctx context.Context, tx pgx.Tx, outcome *domain.BatchOutcome, cause error) (*domain.BatchOutcome, error) {
	_ = tx.Rollback(ctx)
	outcome.Errors = outcome.Total - outcome.Duplicates
	outcome.Recorded = 0
	outcome.ErrorDetails = append(outcome.ErrorDetails, fmt.Sprintf("batch aborted, rolled back: %v", cause))
	return outcome, nil
}

func (r *checkinRepo) Stats(ctx context.Context, gateNumber string) (*domain.GateStats, error) {
	q := `SELECT COUNT(*), COUNT(DISTINCT entry_id), MAX(check_in_time) FROM check_ins`
	args := []any{}
	if gateNumber != "" && gateNumber != "all" {
		q += ` WHERE gate_number = $1`
		args = append(args, gateNumber)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stats := &domain.GateStats{GateNumber: gateNumber}
	var last *time.Time
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&stats.TotalScans, &stats.UniqueEntries, &last); err != nil {
		return nil, err
	}
	stats.LastScanTime = last
	return stats, nil
}

// SetStatus annotates an existing record (e.g. manual override). The record
// itself is never rewritten.
func (r *checkinRepo) SetStatus(ctx context.Context, checkinID int64, status string) error {
	const q = `UPDATE check_ins SET verification_status = $2 WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, checkinID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
