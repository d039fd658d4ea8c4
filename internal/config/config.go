package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	FeedsFile          string        `mapstructure:"feeds_file"`
	AnnouncersFile     string        `mapstructure:"announcers_file"`
	TodayOnly          bool          `mapstructure:"today_only"`
	RunIntervalSeconds int64         `mapstructure:"run_interval"`
	RunInterval        time.Duration `mapstructure:"-"`

	FetchTimeoutSeconds int64         `mapstructure:"fetch_timeout"`
	FetchTimeout        time.Duration `mapstructure:"-"`

	AnthropicAPIKey      string  `mapstructure:"anthropic_api_key"`
	AnthropicModel       string  `mapstructure:"anthropic_model"`
	AnthropicMaxTokens   int     `mapstructure:"anthropic_max_tokens"`
	AnthropicTemperature float64 `mapstructure:"anthropic_temperature"`

	VoicevoxURL     string `mapstructure:"voicevox_url"`
	VoicevoxSpeaker int    `mapstructure:"voicevox_speaker"`

	EpisodeTitle string `mapstructure:"episode_title"`
	ScriptOutput string `mapstructure:"script_output"`
	AudioOutput  string `mapstructure:"audio_output"`
	PostsDir     string `mapstructure:"posts_dir"`
	AudioDir     string `mapstructure:"audio_dir"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "zundacast")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("feeds_file", "./configs/feeds.yaml")
	v.SetDefault("announcers_file", "./configs/announcers.yaml")
	v.SetDefault("today_only", false)
	v.SetDefault("run_interval", 0) // seconds; 0 runs the pipeline once
	v.SetDefault("fetch_timeout", 15)
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic_max_tokens", 4096)
	v.SetDefault("anthropic_temperature", 0.0)
	v.SetDefault("voicevox_url", "http://localhost:50021")
	v.SetDefault("voicevox_speaker", 1) // ずんだもん
	v.SetDefault("episode_title", "ずんだもんAIラジオ")
	v.SetDefault("script_output", "radio_script.txt")
	v.SetDefault("audio_output", "audio/episode.wav")
	v.SetDefault("posts_dir", "_posts")
	v.SetDefault("audio_dir", "audio")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/cache.db")
	v.SetDefault("storage_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RunIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid run_interval (must be zero or positive seconds)")
	}
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second

	if cfg.FetchTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid fetch_timeout (must be positive seconds)")
	}
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second

	if cfg.VoicevoxSpeaker < 0 {
		return nil, fmt.Errorf("invalid voicevox_speaker (must not be negative)")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
