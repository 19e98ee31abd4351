package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventstoday/internal/config"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
source:
  ics_url: https://calendar.example.com/venue.ics
display:
  currency: eur
fallback:
  days:
    friday:
      - id: live-music
        name: Live Music
        time: 9:00 PM
        description: Local bands
        link: /whats-on/live-music
    monday: []
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.SourceICS, cfg.Source.Kind)
	assert.Equal(t, "EUR", cfg.Display.Currency)
	assert.Equal(t, 10, cfg.Display.LimitedThreshold)
	assert.Equal(t, "/whats-on", cfg.Display.WhatsOnLink)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout())

	require.Len(t, cfg.Fallback.Days["friday"], 1)
	assert.Equal(t, "Live Music", cfg.Fallback.Days["friday"][0].Name)

	monday, ok := cfg.Fallback.Days["monday"]
	assert.True(t, ok)
	assert.Empty(t, monday)
}

func TestNormalizeUnknownSourceKind(t *testing.T) {
	cfg := &config.Config{Source: config.SourceConfig{Kind: "carrier-pigeon", APIURL: "https://api.example.com/"}}
	cfg.Normalize()

	assert.Equal(t, config.SourceAPI, cfg.Source.Kind)
	assert.Equal(t, "https://api.example.com", cfg.Source.APIURL)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Source.APIURL = "https://api.example.com/v1"
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "staff", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", loaded.Source.APIURL)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "staff", loaded.BasicAuth.Username)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{Timezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}
