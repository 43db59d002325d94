package models

import "strings"

// CaseIDPrefix is the canonical prefix carried by every stored case id.
const CaseIDPrefix = "case-"

// CaseID is a normalized case identifier. Values are produced by
// NormalizeCaseID so raw and canonical spellings cannot be mixed up.
type CaseID string

// NormalizeCaseID canonicalizes a case reference so that equivalent
// spellings ("123", "case-123", "Case_123") compare equal.
// An empty or blank input yields the zero CaseID.
func NormalizeCaseID(raw string) CaseID {
	id := strings.TrimSpace(raw)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, CaseIDPrefix) {
		return CaseID(id)
	}
	if rest := stripMalformedPrefix(id); rest != "" {
		id = rest
	}
	return CaseID(CaseIDPrefix + id)
}

// stripMalformedPrefix removes a leading "case" in any letter case followed
// by separator characters. It returns "" when nothing would remain.
func stripMalformedPrefix(id string) string {
	if len(id) < len("case") || !strings.EqualFold(id[:len("case")], "case") {
		return id
	}
	rest := strings.TrimLeft(id[len("case"):], "-_: ")
	if rest == id[len("case"):] && rest != "" {
		// "casefile" is not a prefixed id
		return id
	}
	return rest
}

// String returns the canonical form.
func (id CaseID) String() string { return string(id) }

// IsZero reports whether the id is empty. The zero id never refers to a case.
func (id CaseID) IsZero() bool { return id == "" }
