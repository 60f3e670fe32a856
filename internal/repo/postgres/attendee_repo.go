package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfield/gatepass/internal/domain"
)

type AttendeeRepo interface {
	Create(ctx context.Context, a *domain.Attendee) (*domain.Attendee, error)
	FindByID(ctx context.Context, id int64) (*domain.Attendee, error)
	List(ctx context.Context, limit, offset int) ([]domain.Attendee, error)
	All(ctx context.Context) ([]domain.Attendee, error)
}

type attendeeRepo struct {
	pool *pgxpool.Pool
}

func NewAttendeeRepo(pool *pgxpool.Pool) AttendeeRepo {
	return &attendeeRepo{pool: pool}
}

const attendeeCols = `id, name, organization, phone, email, id_type, id_number, qr_signature,
exhibition_day1, exhibition_day2, interactive_sessions, plenary, is_exhibitor,
created_at, updated_at`

func scanAttendee(row pgx.Row) (*domain.Attendee, error) {
	var a domain.Attendee
	err := row.Scan(
		&a.ID, &a.Name, &a.Organization, &a.Phone, &a.Email, &a.IDType, &a.IDNumber, &a.QRSignature,
		&a.ExhibitionDay1, &a.ExhibitionDay2, &a.InteractiveSessions, &a.Plenary, &a.IsExhibitor,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendeeRepo) Create(ctx context.Context, a *domain.Attendee) (*domain.Attendee, error) {
	const q = `
		INSERT INTO entries (
			name, organization, phone, email, id_type, id_number, qr_signature,
			exhibition_day1, exhibition_day2, interactive_sessions, plenary, is_exhibitor
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING ` + attendeeCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanAttendee(r.pool.QueryRow(ctx, q,
		a.Name, a.Organization, a.Phone, a.Email, a.IDType, a.IDNumber, a.QRSignature,
		a.ExhibitionDay1, a.ExhibitionDay2, a.InteractiveSessions, a.Plenary, a.IsExhibitor,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateIDNumber
		}
		return nil, err
	}
	return created, nil
}

func (r *attendeeRepo) FindByID(ctx context.Context, id int64) (*domain.Attendee, error) {
	const q = `SELECT ` + attendeeCols + ` FROM entries WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAttendee(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *attendeeRepo) List(ctx context.Context, limit, offset int) ([]domain.Attendee, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + attendeeCols + ` FROM entries ORDER BY id LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAttendees(rows)
}

// All returns the complete directory for the device bulk export. The export
// is intentionally whole-set: devices replace their cache, never patch it.
func (r *attendeeRepo) All(ctx context.Context) ([]domain.Attendee, error) {
	const q = `SELECT ` + attendeeCols + ` FROM entries ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAttendees(rows)
}

func collectAttendees(rows pgx.Rows) ([]domain.Attendee, error) {
	var attendees []domain.Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, *a)
	}
	return attendees, rows.Err()
}
