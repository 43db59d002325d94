package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lexcase-backend/generator"
	"lexcase-backend/logger"
	"lexcase-backend/models"
)

// ChatService runs one question and answer exchange against a generator,
// recording both sides in the session
type ChatService struct {
	sessions    *SessionService
	generator   generator.Generator
	maxMessages int
	logger      *zap.Logger
}

// ChatServiceOption is a functional option for ChatService
type ChatServiceOption func(*ChatService)

// ChatWithSessionService sets the session service
func ChatWithSessionService(sessions *SessionService) ChatServiceOption {
	return func(s *ChatService) {
		s.sessions = sessions
	}
}

// ChatWithGenerator sets the text generator
func ChatWithGenerator(g generator.Generator) ChatServiceOption {
	return func(s *ChatService) {
		s.generator = g
	}
}

// ChatWithContextWindow sets how many prior messages are sent to the generator
func ChatWithContextWindow(maxMessages int) ChatServiceOption {
	return func(s *ChatService) {
		s.maxMessages = maxMessages
	}
}

// ChatWithLogger sets the logger
func ChatWithLogger(l *zap.Logger) ChatServiceOption {
	return func(s *ChatService) {
		s.logger = l
	}
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatServiceOption) *ChatService {
	s := &ChatService{maxMessages: DefaultContextMessages}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger).With(zap.String("service", "chat"))
	return s
}

// Ask appends the user's message, asks the generator for a reply using the
// prior history as context, appends the reply and returns it. When the
// generator fails the user's message stays recorded.
func (s *ChatService) Ask(ctx context.Context, caseID, sessionID, content string, attachments []models.Attachment) (*models.Message, error) {
	if s.sessions == nil {
		return nil, errors.New("session service not set")
	}
	if s.generator == nil {
		return nil, ErrGeneratorNotSet
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, invalid("content", "must not be empty")
	}

	prior, err := s.sessions.GetMessages(ctx, caseID, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.AppendMessage(ctx, caseID, sessionID, models.Message{
		Sender:      models.SenderUser,
		Content:     content,
		Attachments: attachments,
	}); err != nil {
		return nil, err
	}

	reply, err := s.generator.Generate(ctx, content, BuildContext(prior, s.maxMessages))
	if err != nil {
		s.logger.Warn("generation failed",
			zap.String("case_id", models.NormalizeCaseID(caseID).String()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	msgs, err := s.sessions.AppendMessage(ctx, caseID, sessionID, models.Message{
		Sender:  models.SenderAssistant,
		Content: reply,
	})
	if err != nil {
		return nil, err
	}

	answer := msgs[len(msgs)-1]
	return &answer, nil
}
