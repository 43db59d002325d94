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

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/repository"
)

// CaseService handles business logic for cases
type CaseService struct {
	caseRepo  *repository.CaseRepository
	documents *DocumentService
	now       func() time.Time
	logger    *zap.Logger
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// CaseWithRepository sets the case repository
func CaseWithRepository(repo *repository.CaseRepository) CaseServiceOption {
	return func(s *CaseService) {
		s.caseRepo = repo
	}
}

// CaseWithDocumentService sets the document service used to dissociate
// documents from deleted cases
func CaseWithDocumentService(documents *DocumentService) CaseServiceOption {
	return func(s *CaseService) {
		s.documents = documents
	}
}

// CaseWithClock overrides the time source
func CaseWithClock(now func() time.Time) CaseServiceOption {
	return func(s *CaseService) {
		s.now = now
	}
}

// CaseWithLogger sets the logger
func CaseWithLogger(l *zap.Logger) CaseServiceOption {
	return func(s *CaseService) {
		s.logger = l
	}
}

// NewCaseService creates a new case service
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger).With(zap.String("service", "cases"))
	return s
}

// Create creates an active, medium priority case
func (s *CaseService) Create(ctx context.Context, name string) (*models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}

	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", "must not be empty")
	}

	cases, err := s.caseRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	c := models.Case{
		ID:        models.NormalizeCaseID(uuid.NewString()),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Status:    models.CaseStatusActive,
		Priority:  models.PriorityMedium,
	}
	cases = append(cases, c)

	if err := s.caseRepo.SaveAll(ctx, cases); err != nil {
		return nil, fmt.Errorf("failed to save case: %w", err)
	}

	s.logger.Debug("case created", zap.String("case_id", c.ID.String()))
	return &c, nil
}

// Get returns the case with the given id, in any spelling
func (s *CaseService) Get(ctx context.Context, id string) (*models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}

	caseID := models.NormalizeCaseID(id)
	if caseID.IsZero() {
		return nil, ErrNotFound
	}

	cases, err := s.caseRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == caseID {
			return &cases[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns every case in storage order
func (s *CaseService) List(ctx context.Context) ([]models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	return s.caseRepo.List(ctx)
}

// ListByStatus returns the cases with the given status
func (s *CaseService) ListByStatus(ctx context.Context, status models.CaseStatus) ([]models.Case, error) {
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	cases, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	result := []models.Case{}
	for _, c := range cases {
		if c.Status == status {
			result = append(result, c)
		}
	}
	return result, nil
}

// Upcoming returns open cases whose deadline falls between now and now+within,
// earliest deadline first
func (s *CaseService) Upcoming(ctx context.Context, within time.Duration) ([]models.Case, error) {
	cases, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	limit := now.Add(within)

	result := []models.Case{}
	for _, c := range cases {
		if c.Deadline == nil || c.Status == models.CaseStatusClosed {
			continue
		}
		if c.Deadline.Before(now) || c.Deadline.After(limit) {
			continue
		}
		result = append(result, c)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Deadline.Before(*result[j].Deadline)
	})
	return result, nil
}

// UpdateDetails merges the supplied fields into the case
func (s *CaseService) UpdateDetails(ctx context.Context, id string, details models.CaseDetails) (*models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	if err := validateDetails(&details); err != nil {
		return nil, err
	}

	caseID := models.NormalizeCaseID(id)
	if caseID.IsZero() {
		return nil, ErrNotFound
	}

	cases, err := s.caseRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cases {
		if cases[i].ID == caseID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	details.Apply(&cases[idx])
	if err := s.caseRepo.SaveAll(ctx, cases); err != nil {
		return nil, fmt.Errorf("failed to save case: %w", err)
	}

	updated := cases[idx]
	return &updated, nil
}

func validateDetails(details *models.CaseDetails) error {
	if details.Name != nil && strings.TrimSpace(*details.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if details.Status != nil && !details.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", *details.Status))
	}
	if details.Priority != nil && !details.Priority.Valid() {
		return invalid("priority", fmt.Sprintf("unknown priority %q", *details.Priority))
	}
	return nil
}

// SetName renames a case
func (s *CaseService) SetName(ctx context.Context, id, name string) (*models.Case, error) {
	return s.UpdateDetails(ctx, id, models.CaseDetails{Name: &name})
}

// SetStatus changes the status of a case
func (s *CaseService) SetStatus(ctx context.Context, id string, status models.CaseStatus) (*models.Case, error) {
	return s.UpdateDetails(ctx, id, models.CaseDetails{Status: &status})
}

// SetPriority changes the priority of a case
func (s *CaseService) SetPriority(ctx context.Context, id string, priority models.CasePriority) (*models.Case, error) {
	return s.UpdateDetails(ctx, id, models.CaseDetails{Priority: &priority})
}

// SetDeadline sets the deadline of a case. A nil deadline clears it.
func (s *CaseService) SetDeadline(ctx context.Context, id string, deadline *time.Time) (*models.Case, error) {
	if deadline == nil {
		return s.UpdateDetails(ctx, id, models.CaseDetails{ClearDeadline: true})
	}
	return s.UpdateDetails(ctx, id, models.CaseDetails{Deadline: deadline})
}

// SetNotes replaces the notes of a case
func (s *CaseService) SetNotes(ctx context.Context, id, notes string) (*models.Case, error) {
	return s.UpdateDetails(ctx, id, models.CaseDetails{Notes: &notes})
}

// SetClientName replaces the client name of a case
func (s *CaseService) SetClientName(ctx context.Context, id, clientName string) (*models.Case, error) {
	return s.UpdateDetails(ctx, id, models.CaseDetails{ClientName: &clientName})
}

// Delete removes a case and clears the case reference of its documents.
// The documents themselves are kept. Deleting an unknown case is a no-op.
func (s *CaseService) Delete(ctx context.Context, id string) error {
	if s.caseRepo == nil {
		return errors.New("case repository not set")
	}

	caseID := models.NormalizeCaseID(id)
	if caseID.IsZero() {
		return nil
	}

	cases, err := s.caseRepo.List(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.Case, 0, len(cases))
	for _, c := range cases {
		if c.ID != caseID {
			kept = append(kept, c)
		}
	}

	if len(kept) != len(cases) {
		if err := s.caseRepo.SaveAll(ctx, kept); err != nil {
			return fmt.Errorf("failed to delete case: %w", err)
		}
	}

	if s.documents != nil {
		n, err := s.documents.DissociateCase(ctx, caseID)
		if err != nil {
			return fmt.Errorf("failed to dissociate documents: %w", err)
		}
		if n > 0 {
			s.logger.Debug("documents dissociated from deleted case",
				zap.String("case_id", caseID.String()), zap.Int("documents", n))
		}
	}
	return nil
}
