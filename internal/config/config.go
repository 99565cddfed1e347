// Package config loads the service configuration from YAML, an optional
// .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	RecordingsDir string `yaml:"recordings_dir"`
	// TempDir holds transcoded audio while it is transcribed. Empty means
	// the OS default.
	TempDir string `yaml:"temp_dir"`
}

type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbedderConfig selects the text embedder: "hashing" or "openai".
type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Dimension int    `yaml:"dimension"`
	Model     string `yaml:"model"`
}

// VectorStoreConfig selects the vector index: "memory", "sqlite" or "postgres".
type VectorStoreConfig struct {
	Type        string `yaml:"type"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ConferenceStoreConfig selects conference persistence: "memory", "file" or "dynamodb".
type ConferenceStoreConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type OpenAIConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKeyEnv          string `yaml:"api_key_env"`
	SSMPrefix          string `yaml:"ssm_prefix"`
	ChatModel          string `yaml:"chat_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	TimeoutSecs        int    `yaml:"timeout_secs"`
}

type TranslateConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ResilienceConfig applies to every outbound adapter call.
type ResilienceConfig struct {
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

type ToolsConfig struct {
	PDFToText string `yaml:"pdftotext"`
	Tesseract string `yaml:"tesseract"`
	FFmpeg    string `yaml:"ffmpeg"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Server          ServerConfig          `yaml:"server"`
	Storage         StorageConfig         `yaml:"storage"`
	Chunker         ChunkerConfig         `yaml:"chunker"`
	Embedder        EmbedderConfig        `yaml:"embedder"`
	VectorStore     VectorStoreConfig     `yaml:"vector_store"`
	ConferenceStore ConferenceStoreConfig `yaml:"conference_store"`
	OpenAI          OpenAIConfig          `yaml:"openai"`
	Translate       TranslateConfig       `yaml:"translate"`
	Resilience      ResilienceConfig      `yaml:"resilience"`
	Tools           ToolsConfig           `yaml:"tools"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding existing values. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML config at path. A missing file yields defaults.
// Environment overrides are applied last.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:          ServerConfig{Addr: ":8000"},
		Storage:         StorageConfig{UploadDir: "uploads", RecordingsDir: "recordings"},
		Chunker:         ChunkerConfig{ChunkSize: 1000, Overlap: 200},
		Embedder:        EmbedderConfig{Type: "hashing", Dimension: 512},
		VectorStore:     VectorStoreConfig{Type: "memory"},
		ConferenceStore: ConferenceStoreConfig{Type: "file", Path: "conferences.json"},
		OpenAI: OpenAIConfig{
			BaseURL:            "https://api.openai.com/v1",
			APIKeyEnv:          "OPENAI_API_KEY",
			ChatModel:          "gpt-3.5-turbo",
			TranscriptionModel: "whisper-1",
			TimeoutSecs:        60,
		},
		Translate:  TranslateConfig{URL: "http://localhost:5000", TimeoutSecs: 30},
		Resilience: ResilienceConfig{MaxRetries: 2, RequestsPerSecond: 5, Burst: 5, TimeoutSecs: 60},
		Tools:      ToolsConfig{PDFToText: "pdftotext", Tesseract: "tesseract", FFmpeg: "ffmpeg"},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = def.Storage.UploadDir
	}
	if cfg.Storage.RecordingsDir == "" {
		cfg.Storage.RecordingsDir = def.Storage.RecordingsDir
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "sqlite" && cfg.VectorStore.SQLitePath == "" {
		cfg.VectorStore.SQLitePath = "vectors.db"
	}
	if cfg.ConferenceStore.Type == "" {
		cfg.ConferenceStore.Type = def.ConferenceStore.Type
	}
	if cfg.ConferenceStore.Type == "file" && cfg.ConferenceStore.Path == "" {
		cfg.ConferenceStore.Path = def.ConferenceStore.Path
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = def.OpenAI.BaseURL
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = def.OpenAI.APIKeyEnv
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = def.OpenAI.ChatModel
	}
	if cfg.OpenAI.TranscriptionModel == "" {
		cfg.OpenAI.TranscriptionModel = def.OpenAI.TranscriptionModel
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = def.OpenAI.TimeoutSecs
	}
	if cfg.Translate.URL == "" {
		cfg.Translate.URL = def.Translate.URL
	}
	if cfg.Translate.TimeoutSecs == 0 {
		cfg.Translate.TimeoutSecs = def.Translate.TimeoutSecs
	}
	if cfg.Tools.PDFToText == "" {
		cfg.Tools.PDFToText = def.Tools.PDFToText
	}
	if cfg.Tools.Tesseract == "" {
		cfg.Tools.Tesseract = def.Tools.Tesseract
	}
	if cfg.Tools.FFmpeg == "" {
		cfg.Tools.FFmpeg = def.Tools.FFmpeg
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

func applyEnvOverrides(cfg *AppConfig, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("SERVER_ADDR", &cfg.Server.Addr)
	set("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	set("PARAM_PREFIX", &cfg.OpenAI.SSMPrefix)
	set("CONFERENCE_TABLE", &cfg.ConferenceStore.Table)
	set("POSTGRES_DSN", &cfg.VectorStore.PostgresDSN)
	set("TRANSLATE_URL", &cfg.Translate.URL)
	set("TRANSLATE_API_KEY", &cfg.Translate.APIKey)
	set("AUDIO_TEMP_DIR", &cfg.Storage.TempDir)
}

// Validate reports settings that cannot be wired.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("config: invalid chunker settings: chunk_size=%d overlap=%d", c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	switch c.Embedder.Type {
	case "hashing", "openai":
	default:
		return fmt.Errorf("config: unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "sqlite":
	case "postgres":
		if c.VectorStore.PostgresDSN == "" {
			return errors.New("config: vector_store.postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown vector store type %q", c.VectorStore.Type)
	}
	switch c.ConferenceStore.Type {
	case "memory", "file":
	case "dynamodb":
		if c.ConferenceStore.Table == "" {
			return errors.New("config: conference_store.table is required for dynamodb")
		}
	default:
		return fmt.Errorf("config: unknown conference store type %q", c.ConferenceStore.Type)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown logging format %q", c.Logging.Format)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c OpenAIConfig) Timeout() time.Duration { return seconds(c.TimeoutSecs) }

func (c TranslateConfig) Timeout() time.Duration { return seconds(c.TimeoutSecs) }

func (c ResilienceConfig) Timeout() time.Duration { return seconds(c.TimeoutSecs) }

// UsesAWS reports whether any configured component needs AWS credentials.
func (c *AppConfig) UsesAWS() bool {
	return c.ConferenceStore.Type == "dynamodb" || c.OpenAI.SSMPrefix != ""
}
