package ocr

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/config"
)

// Tesseract recognizes images with the tesseract CLI in TSV mode. Words are
// grouped into line fragments whose confidence is the mean word confidence.
type Tesseract struct {
	bin     string
	lang    string
	psm     int
	timeout time.Duration
	runner  Runner
}

// NewTesseract creates a Tesseract engine. Empty settings fall back to
// "tesseract", "eng" and page segmentation mode 6.
func NewTesseract(cfg config.OCRConfig) *Tesseract {
	t := &Tesseract{
		bin:     cfg.TesseractPath,
		lang:    cfg.Language,
		psm:     cfg.PSM,
		timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		runner:  execRunner{},
	}
	if t.bin == "" {
		t.bin = "tesseract"
	}
	if t.lang == "" {
		t.lang = "eng"
	}
	if t.psm <= 0 {
		t.psm = 6
	}
	return t
}

// Recognize writes data to a temp file and runs tesseract over it.
func (t *Tesseract) Recognize(ctx context.Context, data []byte) ([]Fragment, error) {
	f, err := os.CreateTemp("", "label-audit-ocr-*")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create temp image")
	}
	defer os.Remove(f.Name()) //nolint:errcheck
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "ocr: write temp image")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "ocr: close temp image")
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	args := []string{f.Name(), "stdout", "-l", t.lang, "--psm", strconv.Itoa(t.psm), "tsv"}
	out, errb, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: tesseract failed: %s", strings.TrimSpace(string(errb)))
	}
	return parseTSV(string(out)), nil
}

type lineKey struct {
	page, block, par, line int
}

// parseTSV groups word rows (level 5) of tesseract TSV output into lines.
// Rows with conf -1 or blank text are skipped.
func parseTSV(tsv string) []Fragment {
	var (
		order []lineKey
		words = map[lineKey][]string{}
		confs = map[lineKey]float64{}
	)
	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 && strings.HasPrefix(row, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], " "))
		conf, err := strconv.ParseFloat(cols[10], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}
		key := lineKey{atoi(cols[1]), atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		if _, seen := words[key]; !seen {
			order = append(order, key)
		}
		words[key] = append(words[key], text)
		confs[key] += conf
	}

	out := make([]Fragment, 0, len(order))
	for _, k := range order {
		n := float64(len(words[k]))
		out = append(out, Fragment{
			Text:       strings.Join(words[k], " "),
			Confidence: confs[k] / n / 100,
		})
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
