// Package refine asks a generative model to clean recognized label text and
// recommend values for label fields. Its output is low-trust evidence that
// only fills gaps.
package refine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/resilience"
	"github.com/sells-group/label-audit/pkg/anthropic"
	"github.com/sells-group/label-audit/pkg/gemini"
)

// Request is the evidence sent for refinement.
type Request struct {
	RawText string
	// Fields is the current merged set, sent for cross-verification.
	Fields model.FieldSet
}

// SelfReport is the model's own compliance assessment.
type SelfReport struct {
	Score           string   `json:"final_compliance_score"`
	Level           string   `json:"compliance_level,omitempty"`
	MissingRequired []string `json:"missing_required"`
	MissingOptional []string `json:"missing_optional"`
}

// Empty reports whether the model left every part of the report blank.
func (s *SelfReport) Empty() bool {
	return s == nil || (s.Score == "" && len(s.MissingRequired) == 0 && len(s.MissingOptional) == 0)
}

// Usage counts tokens consumed by refinement calls.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
	}
}

// Refinement is what the model contributed.
type Refinement struct {
	Provider      string
	Model         string
	CleanedText   string
	Recommended   model.FieldSet
	SelfReport    *SelfReport
	Discrepancies []string
	Confidence    string
	Usage         Usage
	CostUSD       float64
}

// Refiner cleans text and recommends field values.
type Refiner interface {
	Refine(ctx context.Context, req Request) (*Refinement, error)
	Close() error
}

// Noop is the Refiner used when no provider is configured. It never
// recommends anything.
type Noop struct{}

// Refine returns an empty refinement.
func (Noop) Refine(context.Context, Request) (*Refinement, error) {
	return &Refinement{Provider: "none"}, nil
}

// Close is a no-op.
func (Noop) Close() error { return nil }

type completion struct {
	Text  string
	Usage Usage
}

// backend sends one system+user prompt pair and returns the reply text.
type backend interface {
	Complete(ctx context.Context, system, prompt string) (completion, error)
	Cost(u Usage) float64
	Provider() string
	Model() string
	Close() error
}

// Service is a Refiner over one provider backend. Calls are retried on
// transient errors and guarded by a circuit breaker shared across runs.
type Service struct {
	backend backend
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func newService(b backend, cfg config.AIConfig) *Service {
	retry := resilience.FromSettings(cfg.RetryAttempts, 0, 0)
	retry.OnRetry = resilience.RetryLogger(b.Provider(), "refine")
	return &Service{
		backend: b,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             b.Provider(),
			FailureThreshold: cfg.BreakerThreshold,
		}),
		timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// New creates the Refiner selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Refiner, error) {
	switch cfg.Provider {
	case "", "none":
		return Noop{}, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("refine: anthropic provider requires anthropic_key")
		}
		return NewClaude(anthropic.NewClient(cfg.AnthropicKey), cfg), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, eris.New("refine: gemini provider requires gemini_key")
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, eris.Wrap(err, "refine: gemini client")
		}
		return NewGemini(client, cfg), nil
	default:
		return nil, eris.Errorf("refine: unknown provider %q", cfg.Provider)
	}
}

// Refine cleans the raw text, then asks for a cross-verified field set over
// the cleaned text. A failed cleanup falls back to the raw text; a failed
// analysis is returned as an error.
func (s *Service) Refine(ctx context.Context, req Request) (*Refinement, error) {
	out := &Refinement{Provider: s.backend.Provider(), Model: s.backend.Model()}
	log := zap.L().With(zap.String("provider", out.Provider), zap.String("model", out.Model))

	reply, err := s.complete(ctx, cleanSystem, cleanPrompt(req.RawText), out)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, eris.Wrap(err, "refine: clean text")
		}
		log.Warn("refine: cleanup failed, using raw text", zap.Error(err))
	} else {
		var cleaned cleanResponse
		if err := decodeJSON(reply, &cleaned); err != nil {
			log.Warn("refine: cleanup reply not json", zap.Error(err))
		}
		out.CleanedText = strings.TrimSpace(cleaned.CleanedText)
	}

	effective := req.RawText
	if out.CleanedText != "" {
		effective = out.CleanedText
	}

	prompt, err := analysisPrompt(effective, req.Fields)
	if err != nil {
		return nil, err
	}
	reply, err = s.complete(ctx, analysisSystem, prompt, out)
	if err != nil {
		return nil, eris.Wrap(err, "refine: analysis")
	}
	var analysis analysisResponse
	if err := decodeJSON(reply, &analysis); err != nil {
		return nil, eris.Wrap(err, "refine: parse analysis")
	}

	out.Recommended = Recommendations(analysis.Comparison.Recommended)
	out.Discrepancies = analysis.Comparison.Discrepancies
	out.Confidence = analysis.Comparison.Confidence
	if !analysis.Compliance.Empty() {
		out.SelfReport = analysis.Compliance
	}
	log.Debug("refine: done",
		zap.Int("recommended", out.Recommended.Len()),
		zap.Bool("cleaned", out.CleanedText != ""),
		zap.Int64("input_tokens", out.Usage.InputTokens),
		zap.Int64("output_tokens", out.Usage.OutputTokens),
		zap.Float64("cost_usd", out.CostUSD),
	)
	return out, nil
}

// Close releases the backend client.
func (s *Service) Close() error {
	return s.backend.Close()
}

// complete runs one guarded call and charges its usage to out.
func (s *Service) complete(ctx context.Context, system, prompt string, out *Refinement) (string, error) {
	c, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (completion, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (completion, error) {
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			return s.backend.Complete(ctx, system, prompt)
		})
	})
	if err != nil {
		return "", err
	}
	out.Usage = out.Usage.Add(c.Usage)
	out.CostUSD = s.backend.Cost(out.Usage)
	return c.Text, nil
}

// Recommendations converts a recommended_fields object into a FieldSet,
// keeping only declared fields and dropping null, empty and literal "null"
// values.
func Recommendations(raw map[string]any) model.FieldSet {
	values := make(map[model.Field]any, len(raw))
	for k, v := range raw {
		f := model.Field(strings.ToLower(strings.TrimSpace(k)))
		if !f.IsKnown() {
			continue
		}
		if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), "null") {
			continue
		}
		values[f] = v
	}
	return model.NewFieldSet(values)
}
