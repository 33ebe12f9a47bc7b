package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/label-audit/internal/extract"
	"github.com/sells-group/label-audit/internal/imageprep"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/ocr"
	"github.com/sells-group/label-audit/internal/pipeline"
	"github.com/sells-group/label-audit/internal/refine"
	"github.com/sells-group/label-audit/internal/store"
	"github.com/sells-group/label-audit/internal/vision"
)

// auditEnv holds the store, engines and pipeline shared by the commands.
type auditEnv struct {
	Store    store.Store
	Scorer   *vision.Scorer
	Engine   *extract.Engine
	Refiner  refine.Refiner
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Refiner != nil {
		_ = e.Refiner.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite", "":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "label-audit.db"
		}
		s, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initRecognizer builds the configured OCR engine, wrapped in the
// recognition cache when enabled.
func initRecognizer(st store.Store) (ocr.Recognizer, error) {
	rec, err := ocr.NewRecognizer(cfg.OCR)
	if err != nil {
		return nil, eris.Wrap(err, "init ocr")
	}
	if cfg.Store.CacheEnabled && st != nil {
		ttl := time.Duration(cfg.Store.CacheTTLHours) * time.Hour
		rec = ocr.NewCachedRecognizer(rec, st, ocr.EngineID(cfg.OCR), ttl)
		zap.L().Debug("ocr: recognition cache enabled", zap.Duration("ttl", ttl))
	}
	return rec, nil
}

// initEnv builds everything a command needs. Refinement is only set up when
// withAI is true.
func initEnv(ctx context.Context, withAI bool) (*auditEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &auditEnv{Store: st}

	rec, err := initRecognizer(st)
	if err != nil {
		env.Close()
		return nil, err
	}

	var variants imageprep.Generator = imageprep.None{}
	if cfg.OCR.Variants {
		variants = imageprep.New(imageprep.Options{})
	}

	schema := model.DefaultSchema()
	env.Scorer = vision.NewScorer(rec, cfg.Vision)
	env.Engine, err = extract.NewEngine(rec, variants, cfg.Extract, schema)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init extraction engine")
	}

	if withAI {
		env.Refiner, err = refine.New(ctx, cfg.AI)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init refiner")
		}
		zap.L().Info("refinement enabled", zap.String("provider", cfg.AI.Provider))
	}

	env.Pipeline = pipeline.New(env.Scorer, env.Engine, env.Refiner, st, schema)
	return env, nil
}
