package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/extract"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/ocr"
	"github.com/sells-group/label-audit/internal/refine"
	"github.com/sells-group/label-audit/internal/store"
	"github.com/sells-group/label-audit/internal/vision"
)

// labelRecognizer maps image bytes to recognized lines. Content starting
// with "slow" sleeps before answering.
type labelRecognizer map[string]string

func (r labelRecognizer) Recognize(_ context.Context, data []byte) ([]ocr.Fragment, error) {
	if strings.HasPrefix(string(data), "slow") {
		time.Sleep(50 * time.Millisecond)
	}
	text, ok := r[string(data)]
	if !ok {
		return nil, errors.New("unreadable image")
	}
	var frags []ocr.Fragment
	for _, line := range strings.Split(text, "\n") {
		frags = append(frags, ocr.Fragment{Text: line, Confidence: 0.9})
	}
	return frags, nil
}

type stubRefiner struct {
	mu    sync.Mutex
	out   *refine.Refinement
	err   error
	calls int
	got   refine.Request
}

func (s *stubRefiner) Refine(_ context.Context, req refine.Request) (*refine.Refinement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.got = req
	return s.out, s.err
}

func (s *stubRefiner) Close() error { return nil }

func writeImage(t *testing.T, dir, name, content string) model.ImageRef {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return model.ImageRef(path)
}

func newTestPipeline(t *testing.T, rec ocr.Recognizer, ref refine.Refiner, st store.Store) *Pipeline {
	t.Helper()
	engine, err := extract.NewEngine(rec, nil, config.ExtractConfig{Workers: 2}, model.DefaultSchema())
	require.NoError(t, err)
	scorer := vision.NewScorer(rec, config.VisionConfig{Workers: 2})
	return New(scorer, engine, ref, st, model.DefaultSchema())
}
