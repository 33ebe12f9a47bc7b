package refine

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/label-audit/pkg/anthropic"
	"github.com/sells-group/label-audit/pkg/gemini"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Response), args.Error(1)
}

func (m *mockGeminiClient) Close() error {
	return m.Called().Error(0)
}

type reply struct {
	text string
	err  error
}

// scriptedBackend returns replies in order, repeating the last one.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func (s *scriptedBackend) Complete(_ context.Context, _, prompt string) (completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.replies[min(len(s.prompts), len(s.replies)-1)]
	s.prompts = append(s.prompts, prompt)
	if r.err != nil {
		return completion{}, r.err
	}
	return completion{Text: r.text, Usage: Usage{InputTokens: 100, OutputTokens: 10}}, nil
}

// Cost charges one cent per thousand tokens.
func (s *scriptedBackend) Cost(u Usage) float64 {
	return float64(u.InputTokens+u.OutputTokens) / 1e5
}

func (s *scriptedBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *scriptedBackend) Provider() string { return "scripted" }
func (s *scriptedBackend) Model() string    { return "test-model" }
func (s *scriptedBackend) Close() error     { return nil }

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg_test",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 500000, OutputTokens: 100000},
	}
}
