package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/label-audit/internal/store"
)

// CachedRecognizer memoizes another Recognizer in a store keyed by engine
// name and the sha256 of the image bytes. Store failures fall through to the
// wrapped engine.
type CachedRecognizer struct {
	next   Recognizer
	store  store.Store
	engine string
	ttl    time.Duration
}

// NewCachedRecognizer wraps next with a recognition cache.
func NewCachedRecognizer(next Recognizer, st store.Store, engine string, ttl time.Duration) *CachedRecognizer {
	return &CachedRecognizer{next: next, store: st, engine: engine, ttl: ttl}
}

// Recognize returns cached fragments when present, else recognizes and stores them.
func (c *CachedRecognizer) Recognize(ctx context.Context, data []byte) ([]Fragment, error) {
	key := CacheKey(c.engine, data)
	log := zap.L().With(zap.String("key", key))

	if raw, err := c.store.GetRecognition(ctx, key); err != nil {
		log.Warn("ocr: cache lookup failed", zap.Error(err))
	} else if raw != nil {
		var frags []Fragment
		if err := json.Unmarshal(raw, &frags); err == nil {
			log.Debug("ocr: cache hit", zap.Int("fragments", len(frags)))
			return frags, nil
		}
		log.Warn("ocr: corrupt cache entry ignored")
	}

	frags, err := c.next.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	if frags == nil {
		frags = []Fragment{}
	}
	raw, err := json.Marshal(frags)
	if err == nil {
		err = c.store.SetRecognition(ctx, key, raw, c.ttl)
	}
	if err != nil {
		log.Warn("ocr: cache write failed", zap.Error(err))
	}
	return frags, nil
}

// CacheKey derives the cache key for data recognized by engine.
func CacheKey(engine string, data []byte) string {
	sum := sha256.Sum256(data)
	return engine + ":" + hex.EncodeToString(sum[:])
}
