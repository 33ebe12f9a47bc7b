package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// MistralOCR recognizes images with the Mistral OCR API. The API reports no
// per-line confidence, so every returned line gets confidence 1.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewMistralOCR creates a MistralOCR engine from config.
func NewMistralOCR(cfg config.OCRConfig) *MistralOCR {
	m := &MistralOCR{
		apiKey:   cfg.MistralKey,
		model:    cfg.MistralModel,
		endpoint: cfg.MistralURL,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		limiter:  rate.NewLimiter(rate.Inf, 1),
		retry:    resilience.DefaultRetryConfig(),
	}
	if m.model == "" {
		m.model = defaultMistralModel
	}
	if m.endpoint == "" {
		m.endpoint = mistralOCREndpoint
	}
	if cfg.MistralRPS > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.MistralRPS), 1)
	}
	return m
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// Recognize sends data as a base64 data URL and splits the returned markdown
// into line fragments.
func (m *MistralOCR) Recognize(ctx context.Context, data []byte) ([]Fragment, error) {
	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:     "image_url",
			ImageURL: "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data),
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	resp, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) (*mistralOCRResponse, error) {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ocr: mistral rate limit")
		}
		return m.call(ctx, bodyBytes)
	})
	if err != nil {
		return nil, err
	}

	var frags []Fragment
	for _, page := range resp.Pages {
		for _, line := range strings.Split(page.Markdown, "\n") {
			line = cleanMarkdown(line)
			if line == "" {
				continue
			}
			frags = append(frags, Fragment{Text: line, Confidence: 1})
		}
	}
	return frags, nil
}

func (m *MistralOCR) call(ctx context.Context, body []byte) (*mistralOCRResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read mistral response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPStatusError("ocr: mistral", resp.StatusCode, respBody)
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	return &ocrResp, nil
}

var markdownNoise = strings.NewReplacer("**", "", "__", "", "`", "", "|", " ")

// cleanMarkdown strips heading, list and emphasis markers from one line.
func cleanMarkdown(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#>-* ")
	line = markdownNoise.Replace(line)
	if strings.Trim(line, " :-") == "" {
		return ""
	}
	return strings.Join(strings.Fields(line), " ")
}
