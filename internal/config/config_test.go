package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	// Unparseable values fall back to defaults.
	t.Setenv("TMS_ENABLE_SESSION_PERSISTENCE", "")
	t.Setenv("APP_READ_TIMEOUT_SECONDS", "soon")
	t.Setenv("TMS_API_URL", DefaultAPIURL)
	t.Setenv("TMS_STORAGE_DRIVER", "memory")

	cfg := Load()
	assert.Equal(t, DefaultAPIURL, cfg.Widget.APIURL)
	assert.True(t, cfg.Widget.EnableSessionPersistence)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.App.ReadTimeoutSeconds)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TMS_API_URL", "https://chat.example.com/api")
	t.Setenv("TMS_WIDGET_ID", "w-1")
	t.Setenv("TMS_DOMAIN", "example.com")
	t.Setenv("TMS_ENABLE_SESSION_PERSISTENCE", "false")
	t.Setenv("TMS_STORAGE_DRIVER", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("APP_READ_TIMEOUT_SECONDS", "30")

	cfg := Load()
	assert.Equal(t, "https://chat.example.com/api", cfg.Widget.APIURL)
	assert.Equal(t, "w-1", cfg.Widget.WidgetID)
	assert.False(t, cfg.Widget.EnableSessionPersistence)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis://cache:6379", cfg.Storage.RedisURL)
	assert.Equal(t, 30, cfg.App.ReadTimeoutSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "missing widget id", cfg: Config{Widget: WidgetConfig{Domain: "d"}, Storage: StorageConfig{Driver: "memory"}}, want: ErrMissingWidgetID},
		{name: "missing domain", cfg: Config{Widget: WidgetConfig{WidgetID: "w"}, Storage: StorageConfig{Driver: "memory"}}, want: ErrMissingDomain},
		{name: "bad driver", cfg: Config{Widget: WidgetConfig{WidgetID: "w", Domain: "d"}, Storage: StorageConfig{Driver: "disk"}}, want: ErrUnknownDriver},
		{name: "ok", cfg: Config{Widget: WidgetConfig{WidgetID: "w", Domain: "d"}, Storage: StorageConfig{Driver: "redis"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
