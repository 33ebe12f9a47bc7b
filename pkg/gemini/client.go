// Package gemini wraps github.com/google/generative-ai-go for single-turn
// JSON generation.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client defines the Gemini operations used by the refiner.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Request is a single prompt sent to one model.
type Request struct {
	Model           string
	System          string
	Prompt          string
	MaxOutputTokens int32
	Temperature     *float32
	// JSON asks the model to answer with application/json.
	JSON bool
}

// Response is the text of the first candidate plus usage metadata.
type Response struct {
	Model        string
	Text         string
	FinishReason string
	InputTokens  int32
	OutputTokens int32
}

type sdkClient struct {
	client *genai.Client
}

// NewClient opens a Gemini client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	c, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &sdkClient{client: c}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := c.client.GenerativeModel(req.Model)
	configure(model, req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	out, err := fromGenaiResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = req.Model
	zap.L().Debug("gemini: token usage",
		zap.String("model", req.Model),
		zap.Int32("input_tokens", out.InputTokens),
		zap.Int32("output_tokens", out.OutputTokens),
	)
	return out, nil
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func configure(model *genai.GenerativeModel, req Request) {
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
}

func fromGenaiResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, eris.New("gemini: no candidates in response")
	}
	cand := resp.Candidates[0]
	out := &Response{FinishReason: cand.FinishReason.String()}
	if cand.Content != nil {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		out.Text = sb.String()
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, eris.Errorf("gemini: empty response (finish reason %s)", out.FinishReason)
	}
	return out, nil
}
