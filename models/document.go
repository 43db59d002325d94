package models

import "time"

const (
	// DefaultDocumentCategory is used when no category is supplied
	DefaultDocumentCategory = "general"
	// DefaultDocumentTitle is used when the title is blank
	DefaultDocumentTitle = "Untitled Document"
)

// Document represents a saved piece of text content
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"lastModified"`
	CaseID       CaseID    `json:"caseId,omitempty"`
	Category     string    `json:"category"`

	// External reference into a remote document source
	ExternalSystem string `json:"externalSystem,omitempty"`
	ExternalID     string `json:"externalId,omitempty"`
}

// HasExternalReference reports whether the document points into a remote source
func (d *Document) HasExternalReference() bool {
	return d.ExternalSystem != "" && d.ExternalID != ""
}
