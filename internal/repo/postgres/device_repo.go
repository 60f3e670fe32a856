package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeviceRepo tracks which operator and gate a scanner device is bound to.
// Binding is last-writer-wins per device: a fresh login simply takes over.
type DeviceRepo interface {
	Upsert(ctx context.Context, deviceID, operator, gateNumber string) error
	MarkSynced(ctx context.Context, deviceID string) error
}

type deviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) DeviceRepo {
	return &deviceRepo{pool: pool}
}

func (r *deviceRepo) Upsert(ctx context.Context, deviceID, operator, gateNumber string) error {
	const q = `
		INSERT INTO scanner_devices (device_id, operator_username, gate_number, is_active, last_active)
		VALUES ($1, $2, $3, true, now())
		ON CONFLICT (device_id) DO UPDATE SET
			operator_username = EXCLUDED.operator_username,
			gate_number = EXCLUDED.gate_number,
			is_active = true,
			last_active = now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, deviceID, operator, gateNumber)
	return err
}

func (r *deviceRepo) MarkSynced(ctx context.Context, deviceID string) error {
	const q = `UPDATE scanner_devices SET last_sync = now(), last_active = now() WHERE device_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, deviceID)
	return err
}
