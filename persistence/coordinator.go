package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/remote"
	"lexcase-backend/storage"
)

const defaultRemoteTimeout = 3 * time.Second

// Record is a stored collection plus the revision envelope used to detect
// divergence between the remote and local copies
type Record struct {
	Revision  int64           `json:"revision"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`

	// Deleted marks a local tombstone left by a delete the remote did not
	// confirm. It outranks remote records up to its revision.
	Deleted bool `json:"deleted,omitempty"`
}

// RemoteStore is the remote record API as seen by the Coordinator
type RemoteStore interface {
	Get(ctx context.Context, tenant, path string) (remote.Record, error)
	Put(ctx context.Context, tenant, path string, rec remote.Record) error
	Delete(ctx context.Context, tenant, path string) error
}

// Coordinator reads and writes records remote-first, falling back to the
// local durable store. The local store always receives every write.
type Coordinator struct {
	local         storage.RecordStore
	remote        RemoteStore
	enabled       func() bool
	remoteTimeout time.Duration
	tenant        string
	now           func() time.Time
	logger        *zap.Logger
}

// Option is a functional option for Coordinator
type Option func(*Coordinator)

// WithLocalStore sets the local durable record store
func WithLocalStore(store storage.RecordStore) Option {
	return func(c *Coordinator) {
		c.local = store
	}
}

// WithRemote sets the remote record API
func WithRemote(r RemoteStore) Option {
	return func(c *Coordinator) {
		c.remote = r
	}
}

// WithFeatureFlag sets the check consulted before every remote call
func WithFeatureFlag(enabled func() bool) Option {
	return func(c *Coordinator) {
		c.enabled = enabled
	}
}

// WithRemoteTimeout bounds each remote call
func WithRemoteTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.remoteTimeout = timeout
		}
	}
}

// WithTenant partitions the key space for one user
func WithTenant(tenant string) Option {
	return func(c *Coordinator) {
		c.tenant = tenant
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		enabled:       func() bool { return true },
		remoteTimeout: defaultRemoteTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNop(c.logger).With(zap.String("component", "persistence"))
	if c.tenant != "" {
		c.logger = c.logger.With(zap.String("tenant", c.tenant))
	}
	return c
}

// Tenant returns the namespace this coordinator writes under
func (c *Coordinator) Tenant() string {
	return c.tenant
}

// Read returns the record stored under key. The boolean is false when
// neither side holds a record.
func (c *Coordinator) Read(ctx context.Context, key storage.Key) (Record, bool, error) {
	if c.local == nil {
		return Record{}, false, errors.New("local store not set")
	}

	local, localOK, err := c.readLocal(ctx, key)
	if err != nil {
		return Record{}, false, err
	}

	if !c.remoteActive() {
		return visible(local, localOK)
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	rec, err := c.remote.Get(rctx, c.tenant, key.Path())
	cancel()

	switch {
	case errors.Is(err, remote.ErrNotFound):
		if localOK && local.Deleted {
			c.dropTombstone(ctx, key)
		}
		return visible(local, localOK)
	case err != nil:
		c.logger.Warn("remote read failed, using local store",
			zap.String("key", key.String()), zap.Error(err))
		return visible(local, localOK)
	}

	remoteRec := Record{Revision: rec.Revision, UpdatedAt: rec.UpdatedAt, Data: rec.Data}
	if localOK && local.Deleted && local.Revision > remoteRec.Revision {
		// the remote missed the delete; replay it
		c.logger.Info("replaying delete to remote",
			zap.String("key", key.String()), zap.Int64("tombstone_revision", local.Revision))
		if c.deleteRemote(ctx, key) == nil {
			c.dropTombstone(ctx, key)
		}
		return Record{}, false, nil
	}
	if localOK && local.Revision > remoteRec.Revision {
		c.logger.Info("local record ahead of remote",
			zap.String("key", key.String()),
			zap.Int64("local_revision", local.Revision),
			zap.Int64("remote_revision", remoteRec.Revision))
		return local, true, nil
	}

	if !localOK || local.Deleted || remoteRec.Revision > local.Revision {
		if err := c.writeLocal(ctx, key, remoteRec); err != nil {
			c.logger.Warn("failed to refresh local mirror",
				zap.String("key", key.String()), zap.Error(err))
		}
	}
	return remoteRec, true, nil
}

// Write stores data under key with the next revision. The remote write is
// best effort; the local write is not.
func (c *Coordinator) Write(ctx context.Context, key storage.Key, data []byte) (Record, error) {
	if c.local == nil {
		return Record{}, errors.New("local store not set")
	}

	current, _, err := c.readLocal(ctx, key)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Revision:  current.Revision + 1,
		UpdatedAt: c.now().UTC(),
		Data:      json.RawMessage(data),
	}

	if c.remoteActive() {
		rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		err := c.remote.Put(rctx, c.tenant, key.Path(), remote.Record{
			Revision:  rec.Revision,
			UpdatedAt: rec.UpdatedAt,
			Data:      rec.Data,
		})
		cancel()
		if err != nil {
			var statusErr *remote.StatusError
			if errors.As(err, &statusErr) && statusErr.Conflict() {
				c.logger.Warn("remote holds a newer revision, keeping local write",
					zap.String("key", key.String()), zap.Int64("revision", rec.Revision))
			} else {
				c.logger.Warn("remote write failed, writing local store only",
					zap.String("key", key.String()), zap.Error(err))
			}
		}
	}

	if err := c.writeLocal(ctx, key, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record under key on both sides. When a remote is
// configured but does not confirm the delete, the local record is replaced
// by a tombstone so the stale remote copy is not read back.
func (c *Coordinator) Delete(ctx context.Context, key storage.Key) error {
	if c.local == nil {
		return errors.New("local store not set")
	}

	if c.remote == nil {
		return c.deleteLocal(ctx, key)
	}

	if c.remoteActive() {
		err := c.deleteRemote(ctx, key)
		if err == nil {
			return c.deleteLocal(ctx, key)
		}
		c.logger.Warn("remote delete failed, leaving local tombstone",
			zap.String("key", key.String()), zap.Error(err))
	}

	current, _, err := c.readLocal(ctx, key)
	if err != nil {
		return err
	}
	return c.writeLocal(ctx, key, Record{
		Revision:  current.Revision + 1,
		UpdatedAt: c.now().UTC(),
		Deleted:   true,
	})
}

func (c *Coordinator) deleteRemote(ctx context.Context, key storage.Key) error {
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	return c.remote.Delete(rctx, c.tenant, key.Path())
}

func (c *Coordinator) deleteLocal(ctx context.Context, key storage.Key) error {
	if err := c.local.Delete(ctx, key.Namespaced(c.tenant)); err != nil {
		return fmt.Errorf("failed to delete local record %s: %w", key, err)
	}
	return nil
}

func (c *Coordinator) dropTombstone(ctx context.Context, key storage.Key) {
	if err := c.deleteLocal(ctx, key); err != nil {
		c.logger.Warn("failed to drop tombstone", zap.String("key", key.String()), zap.Error(err))
	}
}

// visible hides tombstones from callers
func visible(rec Record, ok bool) (Record, bool, error) {
	if !ok || rec.Deleted {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (c *Coordinator) remoteActive() bool {
	return c.remote != nil && c.enabled != nil && c.enabled()
}

func (c *Coordinator) readLocal(ctx context.Context, key storage.Key) (Record, bool, error) {
	name := key.Namespaced(c.tenant)
	data, err := c.local.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read local record %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		serr := &storage.SerializationError{Key: name, Err: err}
		c.logger.Error("discarding unreadable local record", zap.Error(serr))
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (c *Coordinator) writeLocal(ctx context.Context, key storage.Key, rec Record) error {
	name := key.Namespaced(c.tenant)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", name, err)
	}
	if err := c.local.Put(ctx, name, data); err != nil {
		return fmt.Errorf("failed to write local record %s: %w", name, err)
	}
	return nil
}
