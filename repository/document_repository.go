package repository

import (
	"context"

	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/storage"
)

// DocumentRepository loads and stores the saved document collection
type DocumentRepository struct {
	store  RecordStore
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(store RecordStore, l *zap.Logger) *DocumentRepository {
	return &DocumentRepository{store: store, logger: logger.OrNop(l).With(zap.String("repository", "documents"))}
}

// List returns every saved document
func (r *DocumentRepository) List(ctx context.Context) ([]models.Document, error) {
	return loadCollection[models.Document](ctx, r.store, r.logger, storage.DocumentsKey())
}

// SaveAll replaces the saved document collection
func (r *DocumentRepository) SaveAll(ctx context.Context, docs []models.Document) error {
	return saveCollection(ctx, r.store, storage.DocumentsKey(), docs)
}
