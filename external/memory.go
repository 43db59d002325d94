package external

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lexcase-backend/models"
)

// MemorySource is an in-process DocumentSource
type MemorySource struct {
	name string

	mu   sync.RWMutex
	docs map[string]models.Document
}

// NewMemorySource creates an empty source reporting the given name
func NewMemorySource(name string) *MemorySource {
	return &MemorySource{name: name, docs: make(map[string]models.Document)}
}

func (s *MemorySource) Name() string {
	return s.name
}

// Search matches query against title and content, case-insensitively
func (s *MemorySource) Search(ctx context.Context, query string) ([]models.Document, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []models.Document{}
	for _, d := range s.docs {
		if q != "" && !strings.Contains(strings.ToLower(d.Title), q) && !strings.Contains(strings.ToLower(d.Content), q) {
			continue
		}
		d.Content = ""
		results = append(results, d)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ExternalID < results[j].ExternalID
	})
	return results, nil
}

func (s *MemorySource) Fetch(ctx context.Context, externalID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemorySource) Save(ctx context.Context, title, content, category string) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = models.Document{
		Title:          title,
		Content:        content,
		Category:       category,
		ExternalSystem: s.name,
		ExternalID:     id,
	}
	return id, nil
}
