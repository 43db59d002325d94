package repository

import (
	"context"

	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/storage"
)

// ChatRepository loads and stores message streams and session indexes
type ChatRepository struct {
	store  RecordStore
	logger *zap.Logger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(store RecordStore, l *zap.Logger) *ChatRepository {
	return &ChatRepository{store: store, logger: logger.OrNop(l).With(zap.String("repository", "chat"))}
}

// messagesKey addresses the default stream when sessionID is empty
func messagesKey(caseID models.CaseID, sessionID string) storage.Key {
	if sessionID == "" {
		return storage.ChatKey(caseID)
	}
	return storage.SessionKey(caseID, sessionID)
}

// Messages returns the messages of a session, or of the default stream
func (r *ChatRepository) Messages(ctx context.Context, caseID models.CaseID, sessionID string) ([]models.Message, error) {
	return loadCollection[models.Message](ctx, r.store, r.logger, messagesKey(caseID, sessionID))
}

// SaveMessages replaces the messages of a session, or of the default stream
func (r *ChatRepository) SaveMessages(ctx context.Context, caseID models.CaseID, sessionID string, msgs []models.Message) error {
	return saveCollection(ctx, r.store, messagesKey(caseID, sessionID), msgs)
}

// DeleteMessages removes a message stream
func (r *ChatRepository) DeleteMessages(ctx context.Context, caseID models.CaseID, sessionID string) error {
	return r.store.Delete(ctx, messagesKey(caseID, sessionID))
}

// SessionIndex returns the session index of a case
func (r *ChatRepository) SessionIndex(ctx context.Context, caseID models.CaseID) ([]models.SessionSummary, error) {
	return loadCollection[models.SessionSummary](ctx, r.store, r.logger, storage.SessionIndexKey(caseID))
}

// SaveSessionIndex replaces the session index of a case
func (r *ChatRepository) SaveSessionIndex(ctx context.Context, caseID models.CaseID, index []models.SessionSummary) error {
	return saveCollection(ctx, r.store, storage.SessionIndexKey(caseID), index)
}

// DeleteSessionIndex removes the session index of a case
func (r *ChatRepository) DeleteSessionIndex(ctx context.Context, caseID models.CaseID) error {
	return r.store.Delete(ctx, storage.SessionIndexKey(caseID))
}
