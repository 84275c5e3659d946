package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  sqlite_path: "+filepath.Join(dir, "db", "r.db")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Clock.UTCOffsetHours)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.Window())
	assert.True(t, cfg.Scheduler.MidnightReset)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "default", cfg.Storage.Namespace)
	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Toast.Duration)
	assert.Equal(t, 10*time.Second, cfg.Sync.Timeout)
	assert.False(t, cfg.SyncEnabled())
	assert.False(t, cfg.TelegramEnabled())
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_FileValuesAndPlaceholders(t *testing.T) {
	t.Setenv("TEST_SYNC_KEY", "from-env")
	path := writeConfig(t, `
clock:
  utc_offset_hours: -3
scheduler:
  poll_interval: 10s
  window_minutes: 5
  midnight_reset: false
storage:
  driver: memory
  namespace: alice
audio:
  enabled: false
notifications:
  telegram:
    bot_token: token
    chat_id: 12345
  calendar_url: https://example.com/calendar
sync:
  endpoint: https://example.com/notifications/api/create-meal-reminder
  api_key: ${TEST_SYNC_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, -3, cfg.Clock.UTCOffsetHours)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 5, cfg.Scheduler.WindowMinutes)
	assert.False(t, cfg.Scheduler.MidnightReset)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "alice", cfg.Storage.Namespace)
	assert.False(t, cfg.Audio.Enabled)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(12345), cfg.Notifications.Telegram.ChatID)
	assert.True(t, cfg.SyncEnabled())
	assert.Equal(t, "from-env", cfg.Sync.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REMINDERS_STORAGE_DRIVER", "memory")
	t.Setenv("REMINDERS_POLL_INTERVAL", "15s")
	t.Setenv("LOG_LEVEL", "debug")
	path := writeConfig(t, "storage:\n  driver: sqlite\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n  namespace: env-path\n")
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-path", cfg.Storage.Namespace)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"poll not shorter than window", "scheduler:\n  poll_interval: 3m\n  window_minutes: 3\nstorage:\n  driver: memory\n", ErrPollTooSlow},
		{"unknown driver", "storage:\n  driver: postgres\n", ErrUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("redis without address", func(t *testing.T) {
		_, err := Load(writeConfig(t, "storage:\n  driver: redis\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "scheduler: [\n"))
		assert.Error(t, err)
	})
}
