package storage

import (
	"net/url"
	"strings"

	"lexcase-backend/models"
)

// KeySeparator joins the case and session ids in chat keys. Ids containing
// it would make two streams share one key.
const KeySeparator = "_"

// KeyKind identifies which collection a key addresses
type KeyKind string

const (
	KindCases        KeyKind = "cases"
	KindDocuments    KeyKind = "savedDocuments"
	KindChat         KeyKind = "chat"
	KindSession      KeyKind = "session"
	KindSessionIndex KeyKind = "sessions"
)

// Key addresses one collection in the record key space
type Key struct {
	Kind      KeyKind
	CaseID    models.CaseID
	SessionID string
}

// CasesKey addresses the case collection
func CasesKey() Key { return Key{Kind: KindCases} }

// DocumentsKey addresses the saved document collection
func DocumentsKey() Key { return Key{Kind: KindDocuments} }

// ChatKey addresses the default message stream of a case
func ChatKey(caseID models.CaseID) Key {
	return Key{Kind: KindChat, CaseID: caseID}
}

// SessionKey addresses the messages of one session
func SessionKey(caseID models.CaseID, sessionID string) Key {
	return Key{Kind: KindSession, CaseID: caseID, SessionID: sessionID}
}

// SessionIndexKey addresses the session index of a case
func SessionIndexKey(caseID models.CaseID) Key {
	return Key{Kind: KindSessionIndex, CaseID: caseID}
}

// String returns the local record key
func (k Key) String() string {
	switch k.Kind {
	case KindCases:
		return "cases"
	case KindDocuments:
		return "savedDocuments"
	case KindChat:
		return "chat" + KeySeparator + k.CaseID.String()
	case KindSession:
		return "chat" + KeySeparator + k.CaseID.String() + KeySeparator + k.SessionID
	case KindSessionIndex:
		return "chat" + KeySeparator + "sessions" + KeySeparator + k.CaseID.String()
	default:
		return string(k.Kind)
	}
}

// Valid reports whether the key addresses exactly one collection: chat keys
// need a case id, session keys a session id, and neither may contain
// KeySeparator.
func (k Key) Valid() bool {
	switch k.Kind {
	case KindCases, KindDocuments:
		return true
	case KindChat, KindSessionIndex:
		return ValidChatID(k.CaseID.String())
	case KindSession:
		return ValidChatID(k.CaseID.String()) && ValidChatID(k.SessionID)
	default:
		return false
	}
}

// ValidChatID reports whether id can be used as a case or session id in
// chat keys
func ValidChatID(id string) bool {
	return id != "" && !strings.Contains(id, KeySeparator)
}

// Namespaced returns the local record key prefixed with the tenant
func (k Key) Namespaced(tenant string) string {
	if tenant == "" {
		return k.String()
	}
	return tenant + ":" + k.String()
}

// Path returns the remote API route for the key
func (k Key) Path() string {
	caseID := url.PathEscape(k.CaseID.String())
	switch k.Kind {
	case KindCases:
		return "/cases"
	case KindDocuments:
		return "/documents"
	case KindChat:
		return "/cases/" + caseID + "/messages"
	case KindSession:
		return "/cases/" + caseID + "/sessions/" + url.PathEscape(k.SessionID) + "/messages"
	case KindSessionIndex:
		return "/cases/" + caseID + "/sessions"
	default:
		return "/" + url.PathEscape(string(k.Kind))
	}
}
