package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 1*time.Second, cfg.Database.Timeout)
	assert.Equal(t, 10, cfg.Timeline.PageSize)
	assert.Equal(t, 1000, cfg.Timeline.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.Timeline.HTTPTimeout)
	assert.NotEmpty(t, cfg.Timeline.UserAgent)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "off", cfg.Log.Level)
	assert.Equal(t, 120, cfg.UI.Note.MaxPreviewLength)
	assert.Equal(t, "ctrl", cfg.Keys.Modifier)
	assert.Equal(t, "q", cfg.Keys.Bindings.Quit)
	assert.Equal(t, "o", cfg.Keys.Bindings.OpenMedia)
	assert.Equal(t, []string{"mpv", "vlc"}, cfg.Media.Video)
	assert.Contains(t, cfg.Media.PlayersFile, "players.toml")
	assert.Empty(t, cfg.Accounts)
}

func TestLoad_DefaultConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultPageSize, cfg.Timeline.PageSize)
	assert.Equal(t, DefaultQueueCapacity, cfg.Timeline.QueueCapacity)
}

func TestLoad_FromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.toml")
	configContent := `
[database]
path = "/tmp/test.db"
timeout = "10s"

[timeline]
page_size = 20
queue_capacity = 50
http_timeout = "60s"
user_agent = "test-agent"

[ui.colors]
primary = "#FF0000"

[[accounts]]
id = 1
name = "alice"
instance_type = "misskey"
instance_url = "https://misskey.example"
token = "secret"
version = "12.75.1"

[[accounts]]
id = 2
instance_type = "mastodon"
instance_url = "https://mastodon.example"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Database.Timeout)
	assert.Equal(t, 20, cfg.Timeline.PageSize)
	assert.Equal(t, 50, cfg.Timeline.QueueCapacity)
	assert.Equal(t, 60*time.Second, cfg.Timeline.HTTPTimeout)
	assert.Equal(t, "test-agent", cfg.Timeline.UserAgent)
	assert.Equal(t, "#FF0000", cfg.UI.Colors.Primary)

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "alice", cfg.Accounts[0].Name)
	assert.Equal(t, "12.75.1", cfg.Accounts[0].Version)

	ac, ok := cfg.Account(2)
	require.True(t, ok)
	assert.Equal(t, "mastodon", ac.InstanceType)

	_, ok = cfg.Account(3)
	assert.False(t, ok)
}

func TestLoad_PartialTimelineGetsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[timeline]\nuser_agent = \"x\"\n"), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, cfg.Timeline.PageSize)
	assert.Equal(t, DefaultQueueCapacity, cfg.Timeline.QueueCapacity)
	assert.Equal(t, "x", cfg.Timeline.UserAgent)
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[timeline\npage_size = "), 0o644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path:    "/test/path.db",
			Timeout: 10 * time.Second,
		},
		Timeline: TimelineConfig{
			PageSize:      15,
			QueueCapacity: 100,
			HTTPTimeout:   45 * time.Second,
			UserAgent:     "test-save-agent",
		},
		Stream: StreamConfig{
			Enabled:        true,
			ReconnectDelay: 3 * time.Second,
		},
		Accounts: []AccountConfig{{
			ID:           9,
			InstanceType: "misskey",
			InstanceURL:  "https://m.example",
			Token:        "tok",
		}},
		UI: UIConfig{
			Colors: UIColors{Primary: "#00FF00"},
		},
		Keys: KeyConfig{
			Modifier: "alt",
			Bindings: KeyBindings{Quit: "x"},
		},
	}

	savePath := filepath.Join(t.TempDir(), "saved-config.toml")
	require.NoError(t, Save(cfg, savePath))

	loaded, err := Load(savePath)
	require.NoError(t, err)

	assert.Equal(t, cfg.Database.Path, loaded.Database.Path)
	assert.Equal(t, cfg.Timeline.UserAgent, loaded.Timeline.UserAgent)
	assert.Equal(t, 15, loaded.Timeline.PageSize)
	assert.Equal(t, 3*time.Second, loaded.Stream.ReconnectDelay)
	assert.Equal(t, cfg.Keys.Modifier, loaded.Keys.Modifier)
	require.Len(t, loaded.Accounts, 1)
	assert.Equal(t, int64(9), loaded.Accounts[0].ID)
	assert.Equal(t, "https://m.example", loaded.Accounts[0].InstanceURL)
}

func TestSave_WritesReadableTOML(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "generated.toml")
	require.NoError(t, GenerateDefaultConfig(savePath))

	raw, err := os.ReadFile(savePath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, toml.Unmarshal(raw, &doc))

	timeline, ok := doc["timeline"].(map[string]any)
	require.True(t, ok, "timeline table missing")
	assert.Equal(t, "30s", timeline["http_timeout"])
	assert.EqualValues(t, 10, timeline["page_size"])
	assert.NotContains(t, doc, "accounts")
}

func TestGenerateDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "generated.toml")
	require.NoError(t, GenerateDefaultConfig(configPath))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "ctrl", cfg.Keys.Modifier)
	assert.Equal(t, DefaultPageSize, cfg.Timeline.PageSize)
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	assert.Equal(t, "", expandPath(""))
	assert.Equal(t, filepath.Join(home, "data", "x.db"), expandPath("~/data/x.db"))
	assert.True(t, filepath.IsAbs(expandPath("relative.db")))
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "fwtl-test/1.0", cfg.Timeline.UserAgent)
	assert.False(t, cfg.Stream.Enabled)
}
