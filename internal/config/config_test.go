package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHIZU_CONFIG", "")
	t.Setenv("CHIZU_MQTT_BROKER", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 16, cfg.Map.Zoom)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "chizu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url: http://file.example/api
http_port: 9000
routing:
  api_key: from-file
  timeout: 5s
search:
  match_category: true
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHIZU_MQTT_BROKER=tcp://dotenv:1883\n"), 0o644))
	t.Setenv("CHIZU_HTTP_PORT", "9100")
	t.Setenv("CHIZU_MQTT_BROKER", "")
	os.Unsetenv("CHIZU_MQTT_BROKER")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://file.example/api", cfg.APIBaseURL)
	assert.Equal(t, 9100, cfg.HTTPPort, "env overrides file")
	assert.Equal(t, "from-file", cfg.Routing.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Routing.Timeout)
	assert.True(t, cfg.Search.MatchCategory)
	assert.True(t, cfg.Search.MatchCollege, "defaults survive partial files")
	assert.Equal(t, "tcp://dotenv:1883", cfg.MQTT.Broker)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "CHIZU_HTTP_PORT", "eighty"},
		{"bad metrics port", "CHIZU_METRICS_PORT", "99999"},
		{"bad level", "CHIZU_LOG_LEVEL", "chatty"},
		{"bad debounce", "CHIZU_SEARCH_DEBOUNCE", "soon"},
		{"bad mdns", "CHIZU_MDNS", "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tc.key, tc.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
