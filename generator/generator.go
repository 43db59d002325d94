package generator

import (
	"context"
	"fmt"
	"strings"

	"lexcase-backend/config"
)

const systemInstruction = "You are a legal assistant helping an attorney with their case work. " +
	"Answer precisely, cite the facts you rely on, and say so when the conversation lacks the information needed."

// Generator produces a reply to prompt given the rendered conversation history
type Generator interface {
	Generate(ctx context.Context, prompt, history string) (string, error)
}

// Func adapts an ordinary function to the Generator interface
type Func func(ctx context.Context, prompt, history string) (string, error)

func (f Func) Generate(ctx context.Context, prompt, history string) (string, error) {
	return f(ctx, prompt, history)
}

// New builds the generator selected by cfg.Provider. The returned close
// function releases the underlying client.
func New(ctx context.Context, cfg config.GeneratorConfig) (Generator, func() error, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case "openai":
		g, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, err
		}
		return g, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown generator provider: %s", cfg.Provider)
	}
}

// userPrompt folds the history into the text sent as the user turn
func userPrompt(prompt, history string) string {
	if strings.TrimSpace(history) == "" {
		return prompt
	}
	return "Conversation so far:\n\n" + history + "\n\nUser: " + prompt
}
