package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"

	"lexcase-backend/models"
)

const (
	// MeiliSystem is the external system name recorded for Meilisearch documents
	MeiliSystem = "meilisearch"

	defaultMeiliIndex = "legal_documents"
	searchLimit       = 20
)

// meiliRecord is the shape of a document in the Meilisearch index
type meiliRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Category string `json:"category,omitempty"`
}

// MeiliSource is a DocumentSource backed by a Meilisearch index
type MeiliSource struct {
	client meili.ServiceManager
	index  string
}

// NewMeiliSource creates a source for the given index. An empty index uses
// the default legal_documents index.
func NewMeiliSource(url, apiKey, index string) *MeiliSource {
	if index == "" {
		index = defaultMeiliIndex
	}
	return &MeiliSource{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
	}
}

func (m *MeiliSource) Name() string {
	return MeiliSystem
}

// Search returns the best matches for query without their content
func (m *MeiliSource) Search(ctx context.Context, query string) ([]models.Document, error) {
	resp, err := m.client.Index(m.index).SearchWithContext(ctx, query, &meili.SearchRequest{
		Limit:                searchLimit,
		AttributesToRetrieve: []string{"id", "title", "category"},
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	docs := make([]models.Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		rec := meiliRecord{
			ID:       decodeString(hit, "id"),
			Title:    decodeString(hit, "title"),
			Category: decodeString(hit, "category"),
		}
		if rec.ID == "" {
			continue
		}
		docs = append(docs, m.toDocument(rec, false))
	}
	return docs, nil
}

func (m *MeiliSource) Fetch(ctx context.Context, externalID string) (*models.Document, error) {
	var rec meiliRecord
	err := m.client.Index(m.index).GetDocumentWithContext(ctx, externalID, nil, &rec)
	if err != nil {
		var meiliErr *meili.Error
		if errors.As(err, &meiliErr) && meiliErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("meilisearch get document: %w", err)
	}

	doc := m.toDocument(rec, true)
	return &doc, nil
}

// Save indexes a new document. Indexing is asynchronous on the Meilisearch
// side; the returned id is valid once the task completes.
func (m *MeiliSource) Save(ctx context.Context, title, content, category string) (string, error) {
	rec := meiliRecord{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Category: category,
	}
	if _, err := m.client.Index(m.index).AddDocumentsWithContext(ctx, []meiliRecord{rec}, nil); err != nil {
		return "", fmt.Errorf("meilisearch add document: %w", err)
	}
	return rec.ID, nil
}

func (m *MeiliSource) toDocument(rec meiliRecord, withContent bool) models.Document {
	doc := models.Document{
		Title:          strings.TrimSpace(rec.Title),
		Category:       rec.Category,
		ExternalSystem: MeiliSystem,
		ExternalID:     rec.ID,
	}
	if withContent {
		doc.Content = rec.Content
	}
	return doc
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
