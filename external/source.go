package external

import (
	"context"
	"errors"

	"lexcase-backend/models"
)

// ErrNotFound is returned by Fetch when the source holds no such record
var ErrNotFound = errors.New("external document not found")

// DocumentSource is a third-party document management system.
// Documents returned by a source carry ExternalSystem and ExternalID and
// have no local ID.
type DocumentSource interface {
	// Name identifies the source in a document's external reference
	Name() string

	// Search returns matching documents without their content
	Search(ctx context.Context, query string) ([]models.Document, error)

	// Fetch returns one document including its content
	Fetch(ctx context.Context, externalID string) (*models.Document, error)

	// Save stores a new document and returns its external id
	Save(ctx context.Context, title, content, category string) (string, error)
}
