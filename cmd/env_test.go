package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/ocr"
	"github.com/sells-group/label-audit/internal/refine"
	"github.com/sells-group/label-audit/internal/store"
)

func TestInitStore_Memory(t *testing.T) {
	testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.IsType(t, &store.MemoryStore{}, st)
}

func TestInitStore_SQLite(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "sqlite"
	c.Store.Path = filepath.Join(t.TempDir(), "audit.db")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.IsType(t, &store.SQLiteStore{}, st)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "postgres"

	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestInitRecognizer_Cached(t *testing.T) {
	c := testConfig(t)
	st := store.NewMemory()

	rec, err := initRecognizer(st)
	require.NoError(t, err)
	assert.IsType(t, &ocr.CachedRecognizer{}, rec)

	c.Store.CacheEnabled = false
	rec, err = initRecognizer(st)
	require.NoError(t, err)
	assert.IsType(t, &ocr.MistralOCR{}, rec)
}

func TestInitRecognizer_MissingEngine(t *testing.T) {
	c := testConfig(t)
	c.OCR.Provider = "tesseract"
	c.OCR.TesseractPath = filepath.Join(t.TempDir(), "no-such-tesseract")

	_, err := initRecognizer(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)
}

func TestInitEnv(t *testing.T) {
	testConfig(t)

	env, err := initEnv(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Scorer)
	assert.NotNil(t, env.Engine)
	assert.NotNil(t, env.Pipeline)
	assert.IsType(t, refine.Noop{}, env.Refiner)
}

func TestInitEnv_WithoutAI(t *testing.T) {
	testConfig(t)

	env, err := initEnv(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Refiner)
}
