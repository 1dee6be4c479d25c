package services

import (
	"context"
	"sync"

	"github.com/autofix-app/autofix-api/models"
)

// MockLLMService returns a canned reply and records what it was sent
type MockLLMService struct {
	ReplyText string
	Err       error

	mu    sync.Mutex
	calls [][]models.ChatMessage
}

// NewMockLLMService creates a mock that answers every conversation with reply
func NewMockLLMService(reply string) *MockLLMService {
	return &MockLLMService{ReplyText: reply}
}

// Reply records the conversation and returns the configured reply or error
func (m *MockLLMService) Reply(ctx context.Context, conversation []models.ChatMessage) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, conversation)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.ReplyText, nil
}

// Calls returns every conversation received so far
func (m *MockLLMService) Calls() [][]models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.ChatMessage(nil), m.calls...)
}
