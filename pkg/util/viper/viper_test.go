package viper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relaySection struct {
	Host string        `mapstructure:"host"`
	Port int           `mapstructure:"port"`
	Wait time.Duration `mapstructure:"wait"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "relay:\n  host: 127.0.0.1\n  port: 7000\n  wait: 2s\n")
	c := New()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, path, c.ConfigFileUsed())

	var r relaySection
	require.NoError(t, c.UnmarshalKey("relay", &r))
	assert.Equal(t, relaySection{Host: "127.0.0.1", Port: 7000, Wait: 2 * time.Second}, r)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"relay":{"port":7100}}`)
	c := New()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, 7100, c.GetInt("relay.port"))
}

func TestMissingFile(t *testing.T) {
	c := New()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestPriority(t *testing.T) {
	c := New()
	c.SetDefaults(map[string]any{
		"relay.host": "0.0.0.0",
		"relay.port": 9999,
	})
	assert.Equal(t, 9999, c.GetInt("relay.port"))

	t.Setenv("RELAYCHAT_RELAY_PORT", "8000")
	assert.Equal(t, 8000, c.GetInt("relay.port"))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 9999, "")
	require.NoError(t, c.BindPFlag("relay.port", fs.Lookup("port")))
	// flag 未显式设置时不覆盖环境变量。
	assert.Equal(t, 8000, c.GetInt("relay.port"))

	require.NoError(t, fs.Parse([]string{"--port=8100"}))
	assert.Equal(t, 8100, c.GetInt("relay.port"))

	var r relaySection
	require.NoError(t, c.UnmarshalKey("relay", &r))
	assert.Equal(t, "0.0.0.0", r.Host)
	assert.Equal(t, 8100, r.Port)
	assert.True(t, c.IsSet("relay.host"))
	assert.NoError(t, c.BindPFlag("relay.none", nil))
}
