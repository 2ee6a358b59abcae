package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	// S3 staging for uploaded artifacts. Disabled when S3Endpoint is empty.
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Generation model (any OpenAI-compatible endpoint)
	ModelAPIKey    string
	ModelBaseURL   string
	ModelName      string
	ModelTimeout   time.Duration
	ModelRateLimit float64
	ModelRateBurst int
	ReplyCacheTTL  time.Duration
	MaxPromptChars int

	// OCR
	TesseractPath string
	TesseractLang string
	OCRTimeout    time.Duration

	// Upload limits
	MaxFileSize int64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "data/travel.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key_id", "minioadmin")
	v.SetDefault("s3_secret_access_key", "minioadmin")
	v.SetDefault("s3_bucket_name", "travel-artifacts")
	v.SetDefault("s3_use_ssl", false)
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("openrouter_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter_model", "openai/gpt-4o-mini")
	v.SetDefault("model_timeout", 60*time.Second)
	v.SetDefault("model_rate_limit", 2.0)
	v.SetDefault("model_rate_burst", 4)
	v.SetDefault("reply_cache_ttl", 10*time.Minute)
	v.SetDefault("max_prompt_chars", 12000)
	v.SetDefault("tesseract_path", "tesseract")
	v.SetDefault("tesseract_lang", "eng")
	v.SetDefault("ocr_timeout", 45*time.Second)
	v.SetDefault("max_file_size", int64(10<<20))
}

// Load reads defaults, then the optional YAML file at path, then the
// environment (PORT, DATABASE_PATH, OPENROUTER_API_KEY, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("port"),
		DatabasePath:      v.GetString("database_path"),
		LogLevel:          v.GetString("log_level"),
		S3Endpoint:        v.GetString("s3_endpoint"),
		S3AccessKeyID:     v.GetString("s3_access_key_id"),
		S3SecretAccessKey: v.GetString("s3_secret_access_key"),
		S3BucketName:      v.GetString("s3_bucket_name"),
		S3UseSSL:          v.GetBool("s3_use_ssl"),
		ModelAPIKey:       v.GetString("openrouter_api_key"),
		ModelBaseURL:      v.GetString("openrouter_base_url"),
		ModelName:         v.GetString("openrouter_model"),
		ModelTimeout:      v.GetDuration("model_timeout"),
		ModelRateLimit:    v.GetFloat64("model_rate_limit"),
		ModelRateBurst:    v.GetInt("model_rate_burst"),
		ReplyCacheTTL:     v.GetDuration("reply_cache_ttl"),
		MaxPromptChars:    v.GetInt("max_prompt_chars"),
		TesseractPath:     v.GetString("tesseract_path"),
		TesseractLang:     v.GetString("tesseract_lang"),
		OCRTimeout:        v.GetDuration("ocr_timeout"),
		MaxFileSize:       v.GetInt64("max_file_size"),
	}

	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.ModelAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MaxPromptChars <= 0 {
		return fmt.Errorf("MAX_PROMPT_CHARS must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}
