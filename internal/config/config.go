package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig  `mapstructure:"database"`
	Timeline TimelineConfig  `mapstructure:"timeline"`
	Stream   StreamConfig    `mapstructure:"stream"`
	Log      LogConfig       `mapstructure:"log"`
	Accounts []AccountConfig `mapstructure:"accounts"`
	UI       UIConfig        `mapstructure:"ui"`
	Keys     KeyConfig       `mapstructure:"keys"`
	Media    MediaConfig     `mapstructure:"media"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type TimelineConfig struct {
	// PageSize is both the request limit and the threshold below which an
	// edge of the timeline is considered reached.
	PageSize      int           `mapstructure:"page_size"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type StreamConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// AccountConfig describes one signed-in account. Tokens are read as-is;
// obtaining them is left to the instance's own web UI.
type AccountConfig struct {
	ID              int64  `mapstructure:"id"`
	Name            string `mapstructure:"name"`
	InstanceType    string `mapstructure:"instance_type"`
	InstanceURL     string `mapstructure:"instance_url"`
	Token           string `mapstructure:"token"`
	Version         string `mapstructure:"version"`
	DefaultTimeline string `mapstructure:"default_timeline"`
}

type UIConfig struct {
	Colors UIColors   `mapstructure:"colors"`
	Note   NoteConfig `mapstructure:"note"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type NoteConfig struct {
	MaxPreviewLength int `mapstructure:"max_preview_length"`
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

// MediaConfig lists the players tried, in order, for note attachments.
// PlayersFile holds per-player argument definitions in TOML.
type MediaConfig struct {
	DefaultOpener string   `mapstructure:"default_opener"`
	Video         []string `mapstructure:"video"`
	Image         []string `mapstructure:"image"`
	Audio         []string `mapstructure:"audio"`
	PlayersFile   string   `mapstructure:"players_file"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit         string `mapstructure:"quit"`
	Search       string `mapstructure:"search"`
	Refresh      string `mapstructure:"refresh"`
	LoadPrevious string `mapstructure:"load_previous"`
	NextTimeline string `mapstructure:"next_timeline"`
	Back         string `mapstructure:"back"`
	Help         string `mapstructure:"help"`
	OpenMedia    string `mapstructure:"open_media"`
}

const (
	DefaultPageSize      = 10
	DefaultQueueCapacity = 1000
)

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".fwtl.db")
	searchIndexPath := filepath.Join(homeDir, ".fwtl", "index.bleve")
	playersPath := filepath.Join(homeDir, ".config", "fwtl", "players.toml")

	return &Config{
		Database: DatabaseConfig{
			Path:        dbPath,
			Timeout:     1 * time.Second,
			SearchIndex: searchIndexPath,
		},
		Timeline: TimelineConfig{
			PageSize:      DefaultPageSize,
			QueueCapacity: DefaultQueueCapacity,
			HTTPTimeout:   30 * time.Second,
			UserAgent:     "fwtl/1.0 (https://github.com/pders01/fwtl)",
		},
		Stream: StreamConfig{
			Enabled:          true,
			ReconnectDelay:   5 * time.Second,
			HandshakeTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "off",
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#FF6B6B",
				Secondary:  "#4ECDC4",
				Accent:     "#95E1D3",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Note: NoteConfig{
				MaxPreviewLength: 120,
				WordWrapMaxWidth: 120,
				WordWrapMinWidth: 40,
			},
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:         "q",
				Search:       "s",
				Refresh:      "r",
				LoadPrevious: "p",
				NextTimeline: "tab",
				Back:         "esc",
				Help:         "?",
				OpenMedia:    "o",
			},
		},
		Media: MediaConfig{
			Video:       []string{"mpv", "vlc"},
			Image:       []string{"imv", "feh", "sxiv"},
			Audio:       []string{"mpv", "vlc"},
			PlayersFile: playersPath,
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("timeline", cfg.Timeline)
	v.SetDefault("stream", cfg.Stream)
	v.SetDefault("log", cfg.Log)
	v.SetDefault("ui", cfg.UI)
	v.SetDefault("keys", cfg.Keys)
	v.SetDefault("media", cfg.Media)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "fwtl")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FWTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyTimelineDefaults(&config.Timeline)
	expandPaths(&config)

	return &config, nil
}

// applyTimelineDefaults fills values a partial [timeline] table leaves at zero.
func applyTimelineDefaults(tl *TimelineConfig) {
	if tl.PageSize <= 0 {
		tl.PageSize = DefaultPageSize
	}
	if tl.QueueCapacity <= 0 {
		tl.QueueCapacity = DefaultQueueCapacity
	}
	if tl.HTTPTimeout <= 0 {
		tl.HTTPTimeout = 30 * time.Second
	}
	if tl.UserAgent == "" {
		tl.UserAgent = defaultConfig().Timeline.UserAgent
	}
}

// Account returns the configured account with the given id.
func (c *Config) Account(id int64) (AccountConfig, bool) {
	for _, ac := range c.Accounts {
		if ac.ID == id {
			return ac, true
		}
	}
	return AccountConfig{}, false
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.Path = expandPath(cfg.Log.Path)
	cfg.Media.PlayersFile = expandPath(cfg.Media.PlayersFile)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations are written as strings for TOML readability
	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	timelineCfg := map[string]interface{}{
		"page_size":      config.Timeline.PageSize,
		"queue_capacity": config.Timeline.QueueCapacity,
		"http_timeout":   config.Timeline.HTTPTimeout.String(),
		"user_agent":     config.Timeline.UserAgent,
	}

	streamCfg := map[string]interface{}{
		"enabled":           config.Stream.Enabled,
		"reconnect_delay":   config.Stream.ReconnectDelay.String(),
		"handshake_timeout": config.Stream.HandshakeTimeout.String(),
	}

	accounts := make([]map[string]interface{}, 0, len(config.Accounts))
	for _, ac := range config.Accounts {
		accounts = append(accounts, map[string]interface{}{
			"id":               ac.ID,
			"name":             ac.Name,
			"instance_type":    ac.InstanceType,
			"instance_url":     ac.InstanceURL,
			"token":            ac.Token,
			"version":          ac.Version,
			"default_timeline": ac.DefaultTimeline,
		})
	}

	v.Set("database", dbCfg)
	v.Set("timeline", timelineCfg)
	v.Set("stream", streamCfg)
	v.Set("log", map[string]interface{}{"level": config.Log.Level, "path": config.Log.Path})
	v.Set("ui", config.UI)
	v.Set("keys", config.Keys)
	v.Set("media", map[string]interface{}{
		"default_opener": config.Media.DefaultOpener,
		"video":          config.Media.Video,
		"image":          config.Media.Image,
		"audio":          config.Media.Audio,
		"players_file":   config.Media.PlayersFile,
	})
	if len(accounts) > 0 {
		v.Set("accounts", accounts)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
