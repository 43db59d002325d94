package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lexcase-backend/config"
	"lexcase-backend/external"
	"lexcase-backend/generator"
	"lexcase-backend/logger"
	"lexcase-backend/persistence"
	"lexcase-backend/remote"
	"lexcase-backend/repository"
	"lexcase-backend/storage"
)

// Workspace bundles the stores of one tenant over a shared record store
type Workspace struct {
	Cases     *CaseService
	Documents *DocumentService
	Sessions  *SessionService
	Chat      *ChatService

	// Source is the external document system, nil when none is configured
	Source external.DocumentSource

	closers []func() error
}

// WorkspaceOption is a functional option for Workspace
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	generator generator.Generator
	now       func() time.Time
	logger    *zap.Logger
}

// WorkspaceWithGenerator sets the generator used by the chat service
func WorkspaceWithGenerator(g generator.Generator) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.generator = g
	}
}

// WorkspaceWithClock overrides the time source of every store
func WorkspaceWithClock(now func() time.Time) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.now = now
	}
}

// WorkspaceWithLogger sets the logger
func WorkspaceWithLogger(l *zap.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.logger = l
	}
}

// NewWorkspace wires the stores over store
func NewWorkspace(store repository.RecordStore, opts ...WorkspaceOption) *Workspace {
	o := &workspaceOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.OrNop(o.logger)

	documents := NewDocumentService(
		DocumentWithRepository(repository.NewDocumentRepository(store, log)),
		DocumentWithClock(o.now),
		DocumentWithLogger(log),
	)
	cases := NewCaseService(
		CaseWithRepository(repository.NewCaseRepository(store, log)),
		CaseWithDocumentService(documents),
		CaseWithClock(o.now),
		CaseWithLogger(log),
	)
	sessions := NewSessionService(
		SessionWithRepository(repository.NewChatRepository(store, log)),
		SessionWithClock(o.now),
		SessionWithLogger(log),
	)
	chat := NewChatService(
		ChatWithSessionService(sessions),
		ChatWithGenerator(o.generator),
		ChatWithLogger(log),
	)

	return &Workspace{
		Cases:     cases,
		Documents: documents,
		Sessions:  sessions,
		Chat:      chat,
	}
}

// OpenWorkspace builds a workspace from configuration: the local record
// store, the remote record API when enabled, and the tenant namespace.
// The generator is optional and may be nil.
func OpenWorkspace(cfg config.Config, g generator.Generator, log *zap.Logger) (*Workspace, error) {
	log = logger.OrNop(log)

	local, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	opts := []persistence.Option{
		persistence.WithLocalStore(local),
		persistence.WithTenant(cfg.Tenant),
		persistence.WithRemoteTimeout(cfg.Remote.Timeout),
		persistence.WithLogger(log),
	}
	if cfg.Remote.Enabled {
		if cfg.Remote.BaseURL == "" {
			local.Close()
			return nil, errors.New("REMOTE_BASE_URL is required when the remote is enabled")
		}
		opts = append(opts, persistence.WithRemote(remote.NewClient(
			cfg.Remote.BaseURL,
			remote.WithToken(cfg.Remote.Token),
			remote.WithTimeout(cfg.Remote.Timeout),
		)))
	}

	ws := NewWorkspace(persistence.NewCoordinator(opts...),
		WorkspaceWithGenerator(g),
		WorkspaceWithLogger(log),
	)
	ws.closers = append(ws.closers, local.Close)
	if cfg.Search.MeiliURL != "" {
		ws.Source = external.NewMeiliSource(cfg.Search.MeiliURL, cfg.Search.MeiliMasterKey, cfg.Search.Index)
	}

	log.Info("workspace opened",
		zap.String("storage", string(cfg.Storage.Type)),
		zap.Bool("remote", cfg.Remote.Enabled),
		zap.String("tenant", cfg.Tenant),
		zap.Bool("search", ws.Source != nil))
	return ws, nil
}

// Close releases the stores opened by OpenWorkspace
func (w *Workspace) Close() error {
	var errs []error
	for _, closeFn := range w.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
