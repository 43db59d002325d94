package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lexcase-backend/persistence"
	"lexcase-backend/storage"
)

// RecordStore is the keyed record access the collection repositories need.
// persistence.Coordinator implements it.
type RecordStore interface {
	Read(ctx context.Context, key storage.Key) (persistence.Record, bool, error)
	Write(ctx context.Context, key storage.Key, data []byte) (persistence.Record, error)
	Delete(ctx context.Context, key storage.Key) error
}

// loadCollection decodes the array stored under key. A missing record is an
// empty collection; so is a record that fails to parse, which is logged.
func loadCollection[T any](ctx context.Context, store RecordStore, log *zap.Logger, key storage.Key) ([]T, error) {
	if store == nil {
		return nil, errors.New("record store not set")
	}

	rec, ok, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || len(rec.Data) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(rec.Data, &items); err != nil {
		serr := &storage.SerializationError{Key: key.String(), Err: err}
		log.Error("stored collection is corrupt, treating as empty", zap.Error(serr))
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// saveCollection encodes items and writes them under key
func saveCollection[T any](ctx context.Context, store RecordStore, key storage.Key, items []T) error {
	if store == nil {
		return errors.New("record store not set")
	}
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, err := store.Write(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
