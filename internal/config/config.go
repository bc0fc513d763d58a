package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ClipModeCopy     = "copy"
	ClipModeReencode = "reencode"
)

type Config struct {
	PlexURL        string
	PlexToken      string
	JellyfinURL    string
	JellyfinAPIKey string

	CaptureDir string
	DBPath     string

	FFmpegPath         string
	ScreenshotQuality  int
	ClipMode           string
	MaxConcurrentClips int

	UpstreamTimeout time.Duration
	ProxyTimeout    time.Duration

	Host string
	Port int
}

func (c *Config) PlexEnabled() bool {
	return c.PlexURL != "" && c.PlexToken != ""
}

func (c *Config) JellyfinEnabled() bool {
	return c.JellyfinURL != "" && c.JellyfinAPIKey != ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("plex_url", "")
	v.SetDefault("plex_token", "")
	v.SetDefault("jellyfin_url", "")
	v.SetDefault("jellyfin_api_key", "")
	v.SetDefault("capture_dir", "/data/captures")
	v.SetDefault("db_path", "/data/mediasnap.db")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("screenshot_quality", 2)
	v.SetDefault("clip_mode", ClipModeCopy)
	v.SetDefault("max_concurrent_clips", 2)
	v.SetDefault("upstream_timeout", 5*time.Second)
	v.SetDefault("proxy_timeout", 10*time.Second)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8787)
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty configFile searches
// for mediasnap.yaml in the working directory and /etc/mediasnap.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mediasnap")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mediasnap")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		PlexURL:            strings.TrimRight(v.GetString("plex_url"), "/"),
		PlexToken:          v.GetString("plex_token"),
		JellyfinURL:        strings.TrimRight(v.GetString("jellyfin_url"), "/"),
		JellyfinAPIKey:     v.GetString("jellyfin_api_key"),
		CaptureDir:         v.GetString("capture_dir"),
		DBPath:             v.GetString("db_path"),
		FFmpegPath:         v.GetString("ffmpeg_path"),
		ScreenshotQuality:  v.GetInt("screenshot_quality"),
		ClipMode:           strings.ToLower(v.GetString("clip_mode")),
		MaxConcurrentClips: v.GetInt("max_concurrent_clips"),
		UpstreamTimeout:    v.GetDuration("upstream_timeout"),
		ProxyTimeout:       v.GetDuration("proxy_timeout"),
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ScreenshotQuality < 1 || c.ScreenshotQuality > 31 {
		return fmt.Errorf("screenshot_quality must be between 1 and 31, got %d", c.ScreenshotQuality)
	}
	if c.ClipMode != ClipModeCopy && c.ClipMode != ClipModeReencode {
		return fmt.Errorf("clip_mode must be %q or %q, got %q", ClipModeCopy, ClipModeReencode, c.ClipMode)
	}
	if c.MaxConcurrentClips < 1 {
		return fmt.Errorf("max_concurrent_clips must be at least 1, got %d", c.MaxConcurrentClips)
	}
	if c.CaptureDir == "" {
		return errors.New("capture_dir is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
