package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	CORSOrigins     string        `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// StorageConfig holds the transient download directory configuration.
type StorageConfig struct {
	DownloadsDir   string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	TitleMaxLength int    `yaml:"title_max_length" envconfig:"TITLE_MAX_LENGTH"`
}

// ExtractorConfig holds yt-dlp configuration.
type ExtractorConfig struct {
	YtdlpPath    string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	CookiesFile  string        `yaml:"cookies_file" envconfig:"COOKIES_FILE"`
	SearchLimit  int           `yaml:"search_limit" envconfig:"SEARCH_LIMIT"`
	AudioCodec   string        `yaml:"audio_codec" envconfig:"AUDIO_CODEC"`
	AudioQuality string        `yaml:"audio_quality" envconfig:"AUDIO_QUALITY"`
	VideoFormat  string        `yaml:"video_format" envconfig:"VIDEO_FORMAT"`
	QueryTimeout time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
	QueryRetries int           `yaml:"query_retries" envconfig:"QUERY_RETRIES"`
	RetryDelay   time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// Defaults returns the configuration used when neither the config file nor
// the environment sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // no limit, downloads stream for a long time
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     "*",
		},
		Storage: StorageConfig{
			DownloadsDir:   "temp_downloads",
			TitleMaxLength: 50,
		},
		Extractor: ExtractorConfig{
			YtdlpPath:    "yt-dlp",
			SearchLimit:  20,
			AudioCodec:   "mp3",
			AudioQuality: "192",
			VideoFormat:  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
			QueryTimeout: 60 * time.Second,
			FetchTimeout: 30 * time.Minute,
			QueryRetries: 2,
			RetryDelay:   time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from file and environment variables.
// Precedence is defaults, then the YAML file, then environment variables.
// Only variables that are actually set override the file.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables. No field carries a default tag,
	// so unset variables leave file values alone.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Storage.DownloadsDir == "" {
		return fmt.Errorf("DOWNLOADS_DIR is required")
	}
	if c.Storage.TitleMaxLength < 1 {
		return fmt.Errorf("TITLE_MAX_LENGTH must be positive")
	}
	if c.Extractor.YtdlpPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.Extractor.SearchLimit < 1 {
		return fmt.Errorf("SEARCH_LIMIT must be positive")
	}
	if !domain.KnownAudioCodec(c.Extractor.AudioCodec) {
		return fmt.Errorf("AUDIO_CODEC %q is not supported", c.Extractor.AudioCodec)
	}
	if c.Extractor.QueryRetries < 0 {
		return fmt.Errorf("QUERY_RETRIES cannot be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", level)
	}
}
