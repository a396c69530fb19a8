package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Server.Addr())
	assert.Equal(t, "release", cfg.Server.Mode())
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUpload)
	assert.Equal(t, int64(DefaultMaxPixels), cfg.Server.MaxPixels)
	assert.Equal(t, "briaai/RMBG-1.4", cfg.Model.ID)
	assert.Equal(t, "0", cfg.Model.Device)
	assert.Equal(t, 1024, cfg.Model.InputSize)
	assert.Equal(t, 60*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "https://api.remove.bg/v1.0/removebg", cfg.RemoveBG.Endpoint)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "@every 10m", cfg.Storage.Cleanup)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RMBG_MODEL", "ZhengPeng7/BiRefNet")
	t.Setenv("RMBG_DEVICE", "cuda:1")
	t.Setenv("PORT", "8080")
	t.Setenv("FLASK_DEBUG", "1")
	t.Setenv("RMBG_TIMEOUT", "15s")
	t.Setenv("RMBG_ENDPOINT", "http://gpu-box:8188/segment")
	t.Setenv("RMBG_MAX_PIXELS", "1000000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ZhengPeng7/BiRefNet", cfg.Model.ID)
	assert.Equal(t, "cuda:1", cfg.Model.Device)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Server.Mode())
	assert.Equal(t, 15*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "http://gpu-box:8188/segment", cfg.Model.Endpoint)
	assert.Equal(t, int64(1000000), cfg.Server.MaxPixels)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
  png_compression: best
model:
  input_size: 512
redis:
  addr: localhost:6379
storage:
  dir: /tmp/results
  retention: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "best", cfg.Server.PNGCompression)
	assert.Equal(t, 512, cfg.Model.InputSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "/tmp/results", cfg.Storage.Dir)
	assert.Equal(t, 2*time.Hour, cfg.Storage.Retention)
	// 未设置的字段保持默认值
	assert.Equal(t, "briaai/RMBG-1.4", cfg.Model.ID)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "70000"}},
		{"bad compression", map[string]string{"RMBG_PNG_COMPRESSION": "ultra"}},
		{"negative input size", map[string]string{"RMBG_INPUT_SIZE": "-1"}},
		{"negative max pixels", map[string]string{"RMBG_MAX_PIXELS": "-5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
