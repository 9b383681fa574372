package config_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-site-crawler/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSite, cfg.Site)
	assert.Empty(t, cfg.SitesFile)
	assert.Zero(t, cfg.Politeness)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, config.DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, config.DefaultProgressEvery, cfg.ProgressEvery)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CRAWL_SITE", "blog")
	t.Setenv("CRAWL_POLITENESS", "1500")
	t.Setenv("CRAWL_TIMEOUT", "5s")
	t.Setenv("CRAWL_LOG_LEVEL", "debug")

	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	assert.Equal(t, "blog", cfg.Site)
	assert.Equal(t, 1500*time.Millisecond, cfg.Politeness, "整数はミリ秒として扱う")
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_IntegerUnits(t *testing.T) {
	tests := []struct {
		name           string
		politeness     string
		timeout        string
		wantPoliteness time.Duration
		wantTimeout    time.Duration
	}{
		{"integers", "1200", "10", 1200 * time.Millisecond, 10 * time.Second},
		{"durations", "2s", "1500ms", 2 * time.Second, 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.NewViper()
			v.Set(config.KeyPoliteness, tt.politeness)
			v.Set(config.KeyTimeout, tt.timeout)

			cfg, err := config.Load(v)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPoliteness, cfg.Politeness, "politeness の整数はミリ秒")
			assert.Equal(t, tt.wantTimeout, cfg.Timeout, "timeout の整数は秒")
		})
	}
}

func TestReadConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/crawl.yaml", []byte(`
site: news
storage: /var/crawl
politeness: 2s
max_retries: 1
log:
  encoding: json
`), 0o644))

	v := config.NewViper()
	v.SetFs(fs)
	require.NoError(t, config.ReadConfigFile(v, "/etc/crawl.yaml"))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, "news", cfg.Site)
	assert.Equal(t, "/var/crawl", cfg.Storage)
	assert.Equal(t, 2*time.Second, cfg.Politeness)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, "json", cfg.Log.Encoding)

	assert.Error(t, config.ReadConfigFile(v, "/etc/missing.yaml"))
	assert.NoError(t, config.ReadConfigFile(v, ""))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"blank_site", config.KeySite, " "},
		{"negative_politeness", config.KeyPoliteness, "-1s"},
		{"unparsable_politeness", config.KeyPoliteness, "soon"},
		{"zero_timeout", config.KeyTimeout, "0"},
		{"negative_retries", config.KeyMaxRetries, -1},
		{"zero_progress", config.KeyProgressEvery, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.NewViper()
			v.Set(tt.key, tt.value)

			_, err := config.Load(v)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestStorageFor(t *testing.T) {
	assert.Equal(t, "/explicit", config.Config{Storage: "/explicit"}.StorageFor("a", "/site"))
	assert.Equal(t, "/site", config.Config{}.StorageFor("a", "/site"))
	assert.Equal(t, "storage/a", config.Config{}.StorageFor("a", ""))
}

func TestPolitenessFor(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		site       time.Duration
		want       time.Duration
		wantErr    bool
	}{
		{"config_overrides_site", 2 * time.Second, time.Second, 2 * time.Second, false},
		{"site_default", 0, 1200 * time.Millisecond, 1200 * time.Millisecond, false},
		{"neither_set", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.Config{Politeness: tt.configured}.PolitenessFor(tt.site)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
