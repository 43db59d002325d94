package models

import "time"

// Sender describes who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is a known sender
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Attachment is file metadata carried by a message
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Message represents a chat message in a session
type Message struct {
	ID          string       `json:"id"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SessionSummary is one entry of the per-case session index
type SessionSummary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState is the lifecycle state of a chat session
type SessionState string

const (
	SessionAbsent SessionState = "absent"
	SessionActive SessionState = "active"
)

// Session represents a chat thread scoped to a case
type Session struct {
	ID        string       `json:"id"`
	CaseID    CaseID       `json:"caseId"`
	Timestamp time.Time    `json:"timestamp"`
	State     SessionState `json:"state"`
	Messages  []Message    `json:"messages"`
}
