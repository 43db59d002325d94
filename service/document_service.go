package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexcase-backend/external"
	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/repository"
)

// DocumentService handles business logic for saved documents
type DocumentService struct {
	documentRepo *repository.DocumentRepository
	now          func() time.Time
	logger       *zap.Logger
}

// DocumentServiceOption is a functional option for DocumentService
type DocumentServiceOption func(*DocumentService)

// DocumentWithRepository sets the document repository
func DocumentWithRepository(repo *repository.DocumentRepository) DocumentServiceOption {
	return func(s *DocumentService) {
		s.documentRepo = repo
	}
}

// DocumentWithClock overrides the time source
func DocumentWithClock(now func() time.Time) DocumentServiceOption {
	return func(s *DocumentService) {
		s.now = now
	}
}

// DocumentWithLogger sets the logger
func DocumentWithLogger(l *zap.Logger) DocumentServiceOption {
	return func(s *DocumentService) {
		s.logger = l
	}
}

// NewDocumentService creates a new document service
func NewDocumentService(opts ...DocumentServiceOption) *DocumentService {
	s := &DocumentService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger).With(zap.String("service", "documents"))
	return s
}

// SaveDocumentRequest creates or updates a document. Nil fields are not
// supplied: on update they keep their stored value.
type SaveDocumentRequest struct {
	ID       *string
	Title    string
	Content  string
	CaseID   *string
	Category *string
}

// Save creates a document, or updates it in place when ID names an
// existing document
func (s *DocumentService) Save(ctx context.Context, req SaveDocumentRequest) (*models.Document, error) {
	if s.documentRepo == nil {
		return nil, errors.New("document repository not set")
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = models.DefaultDocumentTitle
	}

	idx := -1
	if req.ID != nil && *req.ID != "" {
		idx = indexOfDocument(docs, *req.ID)
	}

	var doc models.Document
	if idx >= 0 {
		doc = docs[idx]
		doc.Title = title
		doc.Content = req.Content
		if req.CaseID != nil {
			doc.CaseID = models.NormalizeCaseID(*req.CaseID)
		}
		if req.Category != nil {
			doc.Category = categoryOrDefault(*req.Category)
		}
	} else {
		doc = models.Document{
			ID:       uuid.NewString(),
			Title:    title,
			Content:  req.Content,
			Category: models.DefaultDocumentCategory,
		}
		if req.CaseID != nil {
			doc.CaseID = models.NormalizeCaseID(*req.CaseID)
		}
		if req.Category != nil {
			doc.Category = categoryOrDefault(*req.Category)
		}
	}
	doc.LastModified = s.now().UTC()

	if idx >= 0 {
		docs[idx] = doc
	} else {
		docs = append(docs, doc)
	}

	if err := s.documentRepo.SaveAll(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return &doc, nil
}

// Get returns the document with the given id
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	if s.documentRepo == nil {
		return nil, errors.New("document repository not set")
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if idx := indexOfDocument(docs, id); idx >= 0 {
		return &docs[idx], nil
	}
	return nil, ErrNotFound
}

// List returns every document, most recently modified first
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	return s.filter(ctx, func(models.Document) bool { return true })
}

// ListByCase returns the documents associated with a case, in any spelling
// of its id. Documents without a case are never included.
func (s *DocumentService) ListByCase(ctx context.Context, caseID string) ([]models.Document, error) {
	target := models.NormalizeCaseID(caseID)
	if target.IsZero() {
		return []models.Document{}, nil
	}
	return s.filter(ctx, func(d models.Document) bool {
		return !d.CaseID.IsZero() && models.NormalizeCaseID(d.CaseID.String()) == target
	})
}

// ListByCategory returns the documents in a category
func (s *DocumentService) ListByCategory(ctx context.Context, category string) ([]models.Document, error) {
	category = categoryOrDefault(category)
	return s.filter(ctx, func(d models.Document) bool {
		return d.Category == category
	})
}

func (s *DocumentService) filter(ctx context.Context, keep func(models.Document) bool) ([]models.Document, error) {
	if s.documentRepo == nil {
		return nil, errors.New("document repository not set")
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := []models.Document{}
	for _, d := range docs {
		if keep(d) {
			result = append(result, d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// SetCaseAssociation links a document to a case. An empty caseID clears the link.
func (s *DocumentService) SetCaseAssociation(ctx context.Context, id, caseID string) (*models.Document, error) {
	normalized := models.NormalizeCaseID(caseID)
	return s.update(ctx, id, func(d *models.Document) error {
		d.CaseID = normalized
		return nil
	})
}

// SetExternalReference records where the document lives in an external
// document source. Both parts empty clears the reference.
func (s *DocumentService) SetExternalReference(ctx context.Context, id, system, externalID string) (*models.Document, error) {
	system = strings.TrimSpace(system)
	externalID = strings.TrimSpace(externalID)
	if (system == "") != (externalID == "") {
		return nil, invalid("externalReference", "system and external id must be set together")
	}

	return s.update(ctx, id, func(d *models.Document) error {
		d.ExternalSystem = system
		d.ExternalID = externalID
		return nil
	})
}

func (s *DocumentService) update(ctx context.Context, id string, mutate func(*models.Document) error) (*models.Document, error) {
	if s.documentRepo == nil {
		return nil, errors.New("document repository not set")
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOfDocument(docs, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	if err := mutate(&docs[idx]); err != nil {
		return nil, err
	}
	docs[idx].LastModified = s.now().UTC()

	if err := s.documentRepo.SaveAll(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	doc := docs[idx]
	return &doc, nil
}

// DissociateCase clears the case reference of every document linked to
// caseID and returns how many were changed
func (s *DocumentService) DissociateCase(ctx context.Context, caseID models.CaseID) (int, error) {
	if s.documentRepo == nil {
		return 0, errors.New("document repository not set")
	}

	target := models.NormalizeCaseID(caseID.String())
	if target.IsZero() {
		return 0, nil
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range docs {
		if !docs[i].CaseID.IsZero() && models.NormalizeCaseID(docs[i].CaseID.String()) == target {
			docs[i].CaseID = ""
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}

	if err := s.documentRepo.SaveAll(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to save documents: %w", err)
	}
	return changed, nil
}

// Delete removes a document. Deleting an unknown document is a no-op.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if s.documentRepo == nil {
		return errors.New("document repository not set")
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return err
	}

	idx := indexOfDocument(docs, id)
	if idx < 0 {
		return nil
	}
	docs = append(docs[:idx], docs[idx+1:]...)

	if err := s.documentRepo.SaveAll(ctx, docs); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// SearchExternal searches an external document source
func (s *DocumentService) SearchExternal(ctx context.Context, source external.DocumentSource, query string) ([]models.Document, error) {
	if source == nil {
		return nil, errors.New("document source not set")
	}
	docs, err := source.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", source.Name(), err)
	}
	return docs, nil
}

// ImportExternal fetches a document from an external source and saves a
// local copy carrying the external reference. A local copy that already
// points at the same record is refreshed in place.
func (s *DocumentService) ImportExternal(ctx context.Context, source external.DocumentSource, externalID, caseID string) (*models.Document, error) {
	if s.documentRepo == nil {
		return nil, errors.New("document repository not set")
	}
	if source == nil {
		return nil, errors.New("document source not set")
	}

	remoteDoc, err := source.Fetch(ctx, externalID)
	if errors.Is(err, external.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", source.Name(), err)
	}

	docs, err := s.documentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	req := SaveDocumentRequest{
		Title:    remoteDoc.Title,
		Content:  remoteDoc.Content,
		Category: &remoteDoc.Category,
	}
	if caseID != "" {
		req.CaseID = &caseID
	}
	for _, d := range docs {
		if d.ExternalSystem == source.Name() && d.ExternalID == externalID {
			id := d.ID
			req.ID = &id
			break
		}
	}

	doc, err := s.Save(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.SetExternalReference(ctx, doc.ID, source.Name(), externalID)
}

// PublishExternal saves a local document to an external source and records
// the returned reference on the local document
func (s *DocumentService) PublishExternal(ctx context.Context, source external.DocumentSource, id string) (*models.Document, error) {
	if source == nil {
		return nil, errors.New("document source not set")
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	externalID, err := source.Save(ctx, doc.Title, doc.Content, doc.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to publish to %s: %w", source.Name(), err)
	}

	s.logger.Info("document published",
		zap.String("document_id", doc.ID),
		zap.String("system", source.Name()),
		zap.String("external_id", externalID))
	return s.SetExternalReference(ctx, doc.ID, source.Name(), externalID)
}

func indexOfDocument(docs []models.Document, id string) int {
	if id == "" {
		return -1
	}
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}

func categoryOrDefault(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return models.DefaultDocumentCategory
	}
	return category
}
