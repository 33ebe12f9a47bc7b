// Package ocr recognizes text on product label images.
package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/model"
)

// ErrEngineUnavailable is returned when the configured engine cannot run.
var ErrEngineUnavailable = eris.New("ocr: recognition engine unavailable")

// Fragment is one recognized run of text with its confidence in [0,1].
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognizer turns encoded image bytes into text fragments.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) ([]Fragment, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "tesseract", "":
		t := NewTesseract(cfg)
		if _, err := lookPath(t.bin); err != nil {
			return nil, eris.Wrapf(ErrEngineUnavailable, "tesseract binary %q not found", t.bin)
		}
		return t, nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.Wrap(ErrEngineUnavailable, "mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// EngineID names the configured engine together with the settings that
// change its output, for use as a recognition cache namespace.
func EngineID(cfg config.OCRConfig) string {
	switch cfg.Provider {
	case "mistral":
		return "mistral:" + NewMistralOCR(cfg).model
	default:
		t := NewTesseract(cfg)
		return fmt.Sprintf("tesseract:%s:psm%d", t.lang, t.psm)
	}
}

// RecognizeFile reads img from disk and recognizes it.
func RecognizeFile(ctx context.Context, rec Recognizer, img model.ImageRef) ([]Fragment, error) {
	data, err := os.ReadFile(string(img))
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read image %s", img)
	}
	return rec.Recognize(ctx, data)
}

// Filter keeps fragments with non-blank text and confidence of at least minConf.
func Filter(frags []Fragment, minConf float64) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" || f.Confidence < minConf {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Join concatenates fragment texts with sep.
func Join(frags []Fragment, sep string) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = f.Text
	}
	return strings.Join(parts, sep)
}
