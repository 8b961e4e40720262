package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("CHANNEL_ID", "-1001234")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, int64(-1001234), cfg.ChannelID)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendFile, cfg.CountersBackend)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.BroadcastPacing)
	assert.Equal(t, 8, cfg.WebhookWorkers)
	assert.Equal(t, "https://api.telegram.org", cfg.APIURL)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("CHANNEL_ID", "-1")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()

	require.Error(t, err)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("COUNTERS_BACKEND", "sqlite")

	_, err := Load()

	require.Error(t, err)
}

func TestAdminIDs(t *testing.T) {
	ids, err := Config{AllowedAdminIDs: " 1, 22 ,,333"}.AdminIDs()
	require.NoError(t, err)
	assert.Equal(t, []model.UserID{1, 22, 333}, ids)

	ids, err = Config{}.AdminIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = Config{AllowedAdminIDs: "1,bob"}.AdminIDs()
	require.Error(t, err)
}
