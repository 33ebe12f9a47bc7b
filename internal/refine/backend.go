package refine

import (
	"context"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/cost"
	"github.com/sells-group/label-audit/internal/resilience"
	"github.com/sells-group/label-audit/pkg/anthropic"
	"github.com/sells-group/label-audit/pkg/gemini"
)

const (
	defaultClaudeModel = "claude-haiku-4-5-20251001"
	defaultGeminiModel = "gemini-1.5-flash"
	defaultMaxTokens   = 2048
)

// Claude completes prompts with the Anthropic messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	calc      *cost.Calculator
}

// NewClaude creates a refinement Service backed by client.
func NewClaude(client anthropic.Client, cfg config.AIConfig) *Service {
	c := &Claude{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		calc:      cost.NewCalculator(cost.DefaultRates()),
	}
	if c.model == "" {
		c.model = defaultClaudeModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return newService(c, cfg)
}

// Complete sends one user prompt under a cached system block.
func (c *Claude) Complete(ctx context.Context, system, prompt string) (completion, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: system, CacheControl: &anthropic.CacheControl{}},
		},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return completion{}, classify(err, anthropic.StatusCode(err))
	}
	resp.Usage.Log(c.model, "refine")
	return completion{
		Text: resp.Text(),
		Usage: Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		},
	}, nil
}

// Cost prices u at the model's Anthropic rates.
func (c *Claude) Cost(u Usage) float64 {
	return c.calc.Claude(c.model, u.InputTokens, u.OutputTokens, u.CacheWriteTokens, u.CacheReadTokens)
}

func (c *Claude) Provider() string { return "anthropic" }
func (c *Claude) Model() string    { return c.model }
func (c *Claude) Close() error     { return nil }

// Gemini completes prompts with the Gemini generateContent API in JSON mode.
type Gemini struct {
	client    gemini.Client
	model     string
	maxTokens int32
	calc      *cost.Calculator
}

// NewGemini creates a refinement Service backed by client.
func NewGemini(client gemini.Client, cfg config.AIConfig) *Service {
	g := &Gemini{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxTokens),
		calc:      cost.NewCalculator(cost.DefaultRates()),
	}
	if g.model == "" {
		g.model = defaultGeminiModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	return newService(g, cfg)
}

// Complete sends one prompt with the system text as system instruction.
func (g *Gemini) Complete(ctx context.Context, system, prompt string) (completion, error) {
	temp := float32(0)
	resp, err := g.client.Generate(ctx, gemini.Request{
		Model:           g.model,
		System:          system,
		Prompt:          prompt,
		MaxOutputTokens: g.maxTokens,
		Temperature:     &temp,
		JSON:            true,
	})
	if err != nil {
		return completion{}, classify(err, gemini.StatusCode(err))
	}
	return completion{
		Text: resp.Text,
		Usage: Usage{
			InputTokens:  int64(resp.InputTokens),
			OutputTokens: int64(resp.OutputTokens),
		},
	}, nil
}

// Cost prices u at the model's Gemini rates.
func (g *Gemini) Cost(u Usage) float64 {
	return g.calc.Gemini(g.model, u.InputTokens, u.OutputTokens)
}

func (g *Gemini) Provider() string { return "gemini" }
func (g *Gemini) Model() string    { return g.model }
func (g *Gemini) Close() error     { return g.client.Close() }

// classify marks provider errors with a retryable HTTP status as transient.
func classify(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
