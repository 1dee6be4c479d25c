package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	llmBreakerName = "llm"
	// consecutive upstream failures before the breaker opens
	llmTripAfter   = 5
	llmOpenTimeout = 30 * time.Second
)

var (
	// ErrLLMUnavailable is returned without calling upstream while the breaker is open
	ErrLLMUnavailable = errors.New("llm: temporarily unavailable")
	// ErrLLMUpstream wraps every failure of the chat completion call itself
	ErrLLMUpstream = errors.New("llm: upstream error")
	// ErrEmptyConversation is returned when there is nothing to send
	ErrEmptyConversation = errors.New("llm: no user input")

	// errCallerGone marks a call cut short by the caller's own context
	errCallerGone = errors.New("llm: caller gave up")
)

var llmBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// LLMInterface is the chat completion client used by the triage endpoint
type LLMInterface interface {
	Reply(ctx context.Context, conversation []models.ChatMessage) (string, error)
}

// LLMService calls an OpenAI-compatible /v1/chat/completions endpoint
type LLMService struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker[string]
}

var llmServiceInstance LLMInterface

// countsAsHealthy keeps the breaker closed for failures that say nothing about
// upstream health: the caller hanging up and rejected requests other than 429.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, errCallerGone) {
		return true
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

// NewLLMService creates a chat completion client from configuration
func NewLLMService(cfg *config.Config) *LLMService {
	settings := gobreaker.Settings{
		Name:    llmBreakerName,
		Timeout: llmOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= llmTripAfter
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zap.L().Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			llmBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}
	llmBreakerState.WithLabelValues(llmBreakerName).Set(0)

	clientConfig := openai.DefaultConfig(cfg.LLMAPIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/") + "/v1"
	clientConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
	}

	return &LLMService{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.LLMModel,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
	}
}

// GetLLMService returns the initialized LLM service instance
func GetLLMService() LLMInterface {
	return llmServiceInstance
}

// SetLLMService sets the LLM service instance
func SetLLMService(service LLMInterface) {
	llmServiceInstance = service
}

// BuildConversation turns a multi-turn history or a single problem statement
// into the message list sent upstream, with the system prompt first.
func BuildConversation(systemPrompt string, history []models.ChatMessage, problem string) ([]models.ChatMessage, error) {
	if len(history) > 0 && !hasUserTurn(history) {
		return nil, ErrEmptyConversation
	}
	if len(history) == 0 {
		problem = strings.TrimSpace(problem)
		if problem == "" {
			return nil, ErrEmptyConversation
		}
		return []models.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: problem},
		}, nil
	}

	if history[0].Role == "system" {
		return history, nil
	}
	conversation := make([]models.ChatMessage, 0, len(history)+1)
	conversation = append(conversation, models.ChatMessage{Role: "system", Content: systemPrompt})
	return append(conversation, history...), nil
}

func hasUserTurn(history []models.ChatMessage) bool {
	for _, msg := range history {
		if msg.Role == openai.ChatMessageRoleUser && strings.TrimSpace(msg.Content) != "" {
			return true
		}
	}
	return false
}

// Reply sends the conversation upstream and returns the assistant message
func (s *LLMService) Reply(ctx context.Context, conversation []models.ChatMessage) (string, error) {
	if len(conversation) == 0 {
		return "", ErrEmptyConversation
	}

	reply, err := s.breaker.Execute(func() (string, error) {
		reply, err := s.complete(ctx, conversation)
		if err != nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return reply, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrLLMUnavailable
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUpstream, err)
	}
	return reply, nil
}

func (s *LLMService) complete(ctx context.Context, conversation []models.ChatMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, msg := range conversation {
		messages = append(messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
