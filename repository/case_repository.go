package repository

import (
	"context"

	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/storage"
)

// CaseRepository loads and stores the case collection
type CaseRepository struct {
	store  RecordStore
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(store RecordStore, l *zap.Logger) *CaseRepository {
	return &CaseRepository{store: store, logger: logger.OrNop(l).With(zap.String("repository", "cases"))}
}

// List returns every stored case
func (r *CaseRepository) List(ctx context.Context) ([]models.Case, error) {
	return loadCollection[models.Case](ctx, r.store, r.logger, storage.CasesKey())
}

// SaveAll replaces the stored case collection
func (r *CaseRepository) SaveAll(ctx context.Context, cases []models.Case) error {
	return saveCollection(ctx, r.store, storage.CasesKey(), cases)
}
