package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	OCR      OCRConfig      `yaml:"ocr" mapstructure:"ocr"`
	Vision   VisionConfig   `yaml:"vision" mapstructure:"vision"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OCRConfig selects and tunes the text recognition engine.
type OCRConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	TesseractPath string  `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string  `yaml:"language" mapstructure:"language"`
	PSM           int     `yaml:"psm" mapstructure:"psm"`
	MistralKey    string  `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string  `yaml:"mistral_model" mapstructure:"mistral_model"`
	MistralURL    string  `yaml:"mistral_url" mapstructure:"mistral_url"`
	MistralRPS    float64 `yaml:"mistral_rps" mapstructure:"mistral_rps"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinImageBytes int64   `yaml:"min_image_bytes" mapstructure:"min_image_bytes"`
	Variants      bool    `yaml:"variants" mapstructure:"variants"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VisionConfig tunes image relevance scoring.
type VisionConfig struct {
	MinMatches     int     `yaml:"min_matches" mapstructure:"min_matches"`
	MaxImages      int     `yaml:"max_images" mapstructure:"max_images"`
	MinImageBytes  int64   `yaml:"min_image_bytes" mapstructure:"min_image_bytes"`
	MinTextChars   int     `yaml:"min_text_chars" mapstructure:"min_text_chars"`
	MinReadability float64 `yaml:"min_readability" mapstructure:"min_readability"`
	PreviewChars   int     `yaml:"preview_chars" mapstructure:"preview_chars"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
}

// ExtractConfig tunes the field extraction engine.
type ExtractConfig struct {
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	MinConfidence  float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinImageBytes  int64   `yaml:"min_image_bytes" mapstructure:"min_image_bytes"`
	LicenseWindow  int     `yaml:"license_window" mapstructure:"license_window"`
	LicenseContext int     `yaml:"license_context" mapstructure:"license_context"`
}

// AIConfig selects the text refinement provider.
type AIConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey     string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	GeminiKey        string `yaml:"gemini_key" mapstructure:"gemini_key"`
	Model            string `yaml:"model" mapstructure:"model"`
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts    int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// PipelineConfig bounds a whole audit run.
type PipelineConfig struct {
	DeadlineSecs int  `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	SaveRuns     bool `yaml:"save_runs" mapstructure:"save_runs"`
}

// StoreConfig configures the recognition cache and run history.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Path          string `yaml:"path" mapstructure:"path"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	CacheEnabled  bool   `yaml:"cache_enabled" mapstructure:"cache_enabled"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LABEL_AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.psm", 6)
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.mistral_url", "https://api.mistral.ai/v1/ocr")
	v.SetDefault("ocr.mistral_rps", 2.0)
	v.SetDefault("ocr.min_confidence", 0.25)
	v.SetDefault("ocr.min_image_bytes", 10000)
	v.SetDefault("ocr.variants", true)
	v.SetDefault("ocr.timeout_secs", 60)
	v.SetDefault("vision.min_matches", 1)
	v.SetDefault("vision.max_images", 5)
	v.SetDefault("vision.min_image_bytes", 10000)
	v.SetDefault("vision.min_text_chars", 10)
	v.SetDefault("vision.min_readability", 0.5)
	v.SetDefault("vision.preview_chars", 200)
	v.SetDefault("vision.workers", 4)
	v.SetDefault("extract.workers", 4)
	v.SetDefault("extract.min_confidence", 0.25)
	v.SetDefault("extract.min_image_bytes", 10000)
	v.SetDefault("extract.license_window", 25)
	v.SetDefault("extract.license_context", 50)
	v.SetDefault("ai.provider", "none")
	v.SetDefault("ai.anthropic_key", "")
	v.SetDefault("ai.gemini_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout_secs", 60)
	v.SetDefault("ai.retry_attempts", 3)
	v.SetDefault("ai.breaker_threshold", 3)
	v.SetDefault("pipeline.deadline_secs", 120)
	v.SetDefault("pipeline.save_runs", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "label-audit.db")
	v.SetDefault("store.cache_ttl_hours", 168)
	v.SetDefault("store.cache_enabled", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges and provider names.
func (c *Config) Validate() error {
	switch c.OCR.Provider {
	case "tesseract", "mistral":
	default:
		return eris.Errorf("config: unknown ocr.provider %q", c.OCR.Provider)
	}
	if c.OCR.Provider == "mistral" && c.OCR.MistralKey == "" {
		return eris.New("config: ocr.mistral_api_key is required for the mistral provider")
	}
	switch c.AI.Provider {
	case "none", "":
	case "anthropic":
		if c.AI.AnthropicKey == "" {
			return eris.New("config: ai.anthropic_key is required for the anthropic provider")
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			return eris.New("config: ai.gemini_key is required for the gemini provider")
		}
	default:
		return eris.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	// The extraction engine treats 0 as unset, so it is not a valid setting.
	if c.Extract.MinConfidence <= 0 || c.Extract.MinConfidence > 1 {
		return eris.Errorf("config: extract.min_confidence must be within (0,1], got %v", c.Extract.MinConfidence)
	}
	for name, conf := range map[string]float64{
		"ocr.min_confidence":     c.OCR.MinConfidence,
		"vision.min_readability": c.Vision.MinReadability,
	} {
		if conf < 0 || conf > 1 {
			return eris.Errorf("config: %s must be within [0,1], got %v", name, conf)
		}
	}
	for name, n := range map[string]int{
		"vision.min_matches":      c.Vision.MinMatches,
		"vision.max_images":       c.Vision.MaxImages,
		"vision.workers":          c.Vision.Workers,
		"extract.workers":         c.Extract.Workers,
		"extract.license_window":  c.Extract.LicenseWindow,
		"extract.license_context": c.Extract.LicenseContext,
		"pipeline.deadline_secs":  c.Pipeline.DeadlineSecs,
	} {
		if n < 1 {
			return eris.Errorf("config: %s must be at least 1, got %d", name, n)
		}
	}
	if c.Vision.MinImageBytes < 0 || c.Extract.MinImageBytes < 0 || c.OCR.MinImageBytes < 0 {
		return eris.New("config: min_image_bytes must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
