package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexcase-backend/logger"
	"lexcase-backend/models"
	"lexcase-backend/repository"
	"lexcase-backend/storage"
)

// SessionService manages chat sessions and their messages per case.
//
// An empty session id addresses the case level default stream. It coexists
// with the named sessions and never appears in the session index.
type SessionService struct {
	chatRepo *repository.ChatRepository
	now      func() time.Time
	logger   *zap.Logger
}

// SessionServiceOption is a functional option for SessionService
type SessionServiceOption func(*SessionService)

// SessionWithRepository sets the chat repository
func SessionWithRepository(repo *repository.ChatRepository) SessionServiceOption {
	return func(s *SessionService) {
		s.chatRepo = repo
	}
}

// SessionWithClock overrides the time source
func SessionWithClock(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.now = now
	}
}

// SessionWithLogger sets the logger
func SessionWithLogger(l *zap.Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.logger = l
	}
}

// NewSessionService creates a new session service
func NewSessionService(opts ...SessionServiceOption) *SessionService {
	s := &SessionService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger).With(zap.String("service", "sessions"))
	return s
}

// AppendMessage appends msg to a session, creating the session on its first
// message, and returns the session's messages. A message stamped earlier
// than the session's last message takes the last message's timestamp.
// Case and session ids must not contain "_", which separates them in the
// record key.
func (s *SessionService) AppendMessage(ctx context.Context, caseID, sessionID string, msg models.Message) ([]models.Message, error) {
	if s.chatRepo == nil {
		return nil, errors.New("chat repository not set")
	}

	cid, err := chatIDs(caseID, sessionID)
	if err != nil {
		return nil, err
	}
	if cid.IsZero() {
		return nil, invalid("caseId", "must not be empty")
	}
	if !msg.Sender.Valid() {
		return nil, invalid("sender", fmt.Sprintf("unknown sender %q", msg.Sender))
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	msg.Timestamp = msg.Timestamp.UTC()

	msgs, err := s.chatRepo.Messages(ctx, cid, sessionID)
	if err != nil {
		return nil, err
	}
	if n := len(msgs); n > 0 && msg.Timestamp.Before(msgs[n-1].Timestamp) {
		msg.Timestamp = msgs[n-1].Timestamp
	}
	msgs = append(msgs, msg)

	if err := s.chatRepo.SaveMessages(ctx, cid, sessionID, msgs); err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}

	if sessionID != "" {
		if err := s.touchSession(ctx, cid, sessionID, msg.Timestamp); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (s *SessionService) touchSession(ctx context.Context, caseID models.CaseID, sessionID string, ts time.Time) error {
	index, err := s.chatRepo.SessionIndex(ctx, caseID)
	if err != nil {
		return err
	}

	entries := make([]models.SessionSummary, 0, len(index)+1)
	entries = append(entries, models.SessionSummary{ID: sessionID, Timestamp: ts})
	for _, e := range index {
		if e.ID != sessionID {
			entries = append(entries, e)
		}
	}

	if err := s.chatRepo.SaveSessionIndex(ctx, caseID, sortIndex(entries)); err != nil {
		return fmt.Errorf("failed to save session index: %w", err)
	}
	return nil
}

// GetMessages returns the messages of a session in append order. An empty
// sessionID returns the case's default stream.
func (s *SessionService) GetMessages(ctx context.Context, caseID, sessionID string) ([]models.Message, error) {
	if s.chatRepo == nil {
		return nil, errors.New("chat repository not set")
	}

	cid, err := chatIDs(caseID, sessionID)
	if err != nil {
		return nil, err
	}
	if cid.IsZero() {
		return []models.Message{}, nil
	}
	return s.chatRepo.Messages(ctx, cid, sessionID)
}

// ListSessions returns the session index of a case, most recent first
func (s *SessionService) ListSessions(ctx context.Context, caseID string) ([]models.SessionSummary, error) {
	if s.chatRepo == nil {
		return nil, errors.New("chat repository not set")
	}

	cid, err := chatIDs(caseID, "")
	if err != nil {
		return nil, err
	}
	if cid.IsZero() {
		return []models.SessionSummary{}, nil
	}

	index, err := s.chatRepo.SessionIndex(ctx, cid)
	if err != nil {
		return nil, err
	}
	return sortIndex(index), nil
}

// Session returns a session and its state. A session with no messages is
// absent.
func (s *SessionService) Session(ctx context.Context, caseID, sessionID string) (*models.Session, error) {
	msgs, err := s.GetMessages(ctx, caseID, sessionID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:       sessionID,
		CaseID:   models.NormalizeCaseID(caseID),
		State:    models.SessionAbsent,
		Messages: msgs,
	}
	if n := len(msgs); n > 0 {
		session.State = models.SessionActive
		session.Timestamp = msgs[n-1].Timestamp
	}
	return session, nil
}

// DeleteSession removes one session and its index entry
func (s *SessionService) DeleteSession(ctx context.Context, caseID, sessionID string) error {
	if s.chatRepo == nil {
		return errors.New("chat repository not set")
	}

	cid, err := chatIDs(caseID, sessionID)
	if err != nil {
		return err
	}
	if cid.IsZero() {
		return nil
	}

	if err := s.chatRepo.DeleteMessages(ctx, cid, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if sessionID == "" {
		return nil
	}

	index, err := s.chatRepo.SessionIndex(ctx, cid)
	if err != nil {
		return err
	}
	kept := make([]models.SessionSummary, 0, len(index))
	for _, e := range index {
		if e.ID != sessionID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(index) {
		return nil
	}
	if err := s.chatRepo.SaveSessionIndex(ctx, cid, kept); err != nil {
		return fmt.Errorf("failed to save session index: %w", err)
	}
	return nil
}

// ClearHistory removes every session, the default stream and the session
// index of a case
func (s *SessionService) ClearHistory(ctx context.Context, caseID string) error {
	if s.chatRepo == nil {
		return errors.New("chat repository not set")
	}

	cid, err := chatIDs(caseID, "")
	if err != nil {
		return err
	}
	if cid.IsZero() {
		return nil
	}

	index, err := s.chatRepo.SessionIndex(ctx, cid)
	if err != nil {
		return err
	}
	for _, e := range index {
		if err := s.chatRepo.DeleteMessages(ctx, cid, e.ID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", e.ID, err)
		}
	}
	if err := s.chatRepo.DeleteMessages(ctx, cid, ""); err != nil {
		return fmt.Errorf("failed to delete default stream: %w", err)
	}
	if err := s.chatRepo.DeleteSessionIndex(ctx, cid); err != nil {
		return fmt.Errorf("failed to delete session index: %w", err)
	}

	s.logger.Debug("chat history cleared",
		zap.String("case_id", cid.String()), zap.Int("sessions", len(index)))
	return nil
}

// chatIDs normalizes caseID and rejects case or session ids that would make
// two message streams share one record key
func chatIDs(caseID, sessionID string) (models.CaseID, error) {
	cid := models.NormalizeCaseID(caseID)
	if !cid.IsZero() && !storage.ValidChatID(cid.String()) {
		return "", invalid("caseId", "must not contain "+strconv.Quote(storage.KeySeparator))
	}
	if sessionID != "" && !storage.ValidChatID(sessionID) {
		return "", invalid("sessionId", "must not contain "+strconv.Quote(storage.KeySeparator))
	}
	return cid, nil
}

// sortIndex drops duplicate ids, keeping the newest entry, and orders the
// index most recent first
func sortIndex(index []models.SessionSummary) []models.SessionSummary {
	newest := make(map[string]models.SessionSummary, len(index))
	for _, e := range index {
		if e.ID == "" {
			continue
		}
		if cur, ok := newest[e.ID]; !ok || e.Timestamp.After(cur.Timestamp) {
			newest[e.ID] = e
		}
	}

	result := make([]models.SessionSummary, 0, len(newest))
	for _, e := range newest {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result
}
