package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRecordNotFound is returned when no record exists for a tenant and key
	ErrRecordNotFound = errors.New("record not found")
	// ErrStaleRevision is returned when a write carries an older revision than the stored one
	ErrStaleRevision = errors.New("stale record revision")
)

// StoredRecord is one collection held by the remote record API
type StoredRecord struct {
	Tenant    string
	Key       string
	Revision  int64
	Data      []byte
	UpdatedAt time.Time
}

// RecordRepository handles database operations for remote records
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get retrieves the record for tenant and key
func (r *RecordRepository) Get(ctx context.Context, tenant, key string) (*StoredRecord, error) {
	rec := &StoredRecord{}
	query := `
		SELECT tenant, key, revision, data, updated_at
		FROM records
		WHERE tenant = $1 AND key = $2`

	err := r.db.QueryRow(ctx, query, tenant, key).Scan(
		&rec.Tenant,
		&rec.Key,
		&rec.Revision,
		&rec.Data,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Put upserts a record. A write whose revision is lower than the stored
// revision is rejected with ErrStaleRevision.
func (r *RecordRepository) Put(ctx context.Context, rec *StoredRecord) error {
	query := `
		INSERT INTO records (tenant, key, revision, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant, key) DO UPDATE SET
			revision = EXCLUDED.revision,
			data = EXCLUDED.data,
			updated_at = NOW()
		WHERE records.revision <= EXCLUDED.revision
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, rec.Tenant, rec.Key, rec.Revision, rec.Data).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleRevision
	}
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Delete removes the record for tenant and key
func (r *RecordRepository) Delete(ctx context.Context, tenant, key string) error {
	query := `DELETE FROM records WHERE tenant = $1 AND key = $2`
	_, err := r.db.Exec(ctx, query, tenant, key)
	return err
}
