package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
telegram:
  token: "123:abc"
  poll_timeout: 10s
download:
  dir: "/var/tmp/vids"
  max_size_bytes: 20971520
  timeout: 2m
logging:
  level: debug
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", config.Telegram.Token)
	assert.Equal(t, 10*time.Second, config.Telegram.PollTimeout)
	assert.Equal(t, "https://api.telegram.org", config.Telegram.APIBase, "default kept when unset")
	assert.Equal(t, "/var/tmp/vids", config.Download.Dir)
	assert.Equal(t, int64(20971520), config.Download.MaxSizeBytes)
	assert.Equal(t, 2*time.Minute, config.Download.Timeout)
	assert.Equal(t, "yt-dlp", config.Download.YTDLPBinary)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
telegram:
  token: "123:abc"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(50*1024*1024), config.Download.MaxSizeBytes)
	assert.Equal(t, 5*time.Minute, config.Download.Timeout)
	assert.NotEmpty(t, config.Download.Dir, "empty dir falls back to temp dir")
	assert.Equal(t, "", config.Server.Listen, "status API disabled by default")
}

func TestLoadConfig_MissingToken(t *testing.T) {
	path := writeConfigFile(t, `
download:
  max_size_bytes: 1024
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("VIDRELAY_TELEGRAM_TOKEN", "env:token")

	path := writeConfigFile(t, `
download:
  timeout: 90s
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env:token", config.Telegram.Token)
	assert.Equal(t, 90*time.Second, config.Download.Timeout)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero max size", "telegram:\n  token: t\ndownload:\n  max_size_bytes: 0\n"},
		{"negative timeout", "telegram:\n  token: t\ndownload:\n  timeout: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("VIDRELAY_TEST_DIR", "/data")

	assert.Equal(t, "/data/vids", expandPath("$VIDRELAY_TEST_DIR/vids"))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "vids"), expandPath("~/vids"))
}
