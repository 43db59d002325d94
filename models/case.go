package models

import "time"

// CaseStatus represents the status of a case
type CaseStatus string

const (
	CaseStatusActive  CaseStatus = "active"
	CaseStatusPending CaseStatus = "pending"
	CaseStatusClosed  CaseStatus = "closed"
)

// Valid reports whether s is a known case status
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusActive, CaseStatusPending, CaseStatusClosed:
		return true
	}
	return false
}

// CasePriority represents the priority of a case
type CasePriority string

const (
	PriorityHigh   CasePriority = "high"
	PriorityMedium CasePriority = "medium"
	PriorityLow    CasePriority = "low"
)

// Valid reports whether p is a known priority
func (p CasePriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Case represents a legal matter
type Case struct {
	ID         CaseID       `json:"id"`
	Name       string       `json:"name"`
	CreatedAt  time.Time    `json:"createdAt"`
	Status     CaseStatus   `json:"status"`
	Priority   CasePriority `json:"priority"`
	Deadline   *time.Time   `json:"deadline,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	ClientName string       `json:"clientName,omitempty"`
}

// CaseDetails is a partial update of a case. Nil fields are left untouched.
type CaseDetails struct {
	Name       *string
	Status     *CaseStatus
	Priority   *CasePriority
	Deadline   *time.Time
	Notes      *string
	ClientName *string

	// ClearDeadline removes the deadline. It wins over Deadline.
	ClearDeadline bool
}

// Apply merges the supplied fields into c.
func (d CaseDetails) Apply(c *Case) {
	if d.Name != nil {
		c.Name = *d.Name
	}
	if d.Status != nil {
		c.Status = *d.Status
	}
	if d.Priority != nil {
		c.Priority = *d.Priority
	}
	if d.Deadline != nil {
		deadline := *d.Deadline
		c.Deadline = &deadline
	}
	if d.ClearDeadline {
		c.Deadline = nil
	}
	if d.Notes != nil {
		c.Notes = *d.Notes
	}
	if d.ClientName != nil {
		c.ClientName = *d.ClientName
	}
}
