package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	want := Config{
		Log:    Log{Level: "info", Format: "text"},
		Server: Server{Addr: ":8080", PublicURL: "http://localhost:8080", MaxUploadBytes: 5 << 20},
		Render: Render{
			Timeout:   30 * time.Second,
			Worker:    WorkerInProcess,
			Args:      []string{"worker"},
			MaxRounds: 8,
			MaxSteps:  400,
		},
		Uploads:    Uploads{Backend: BackendMemory, RedisAddr: "localhost:6379", TTL: time.Hour},
		Generation: Generation{Model: "claude-sonnet-4-5", MaxTokens: 1024, BaseURL: "https://api.anthropic.com"},
		MCP:        MCP{Addr: ":8081", BaseURL: "http://localhost:8081"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Default() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
render:
  timeout: 5s
  worker: process
  command: /usr/local/bin/trio
uploads:
  ttl: 10m
`), 0o644))

	cfg, err := Load(path, env(map[string]string{
		EnvAPIKey:    "sk-test",
		EnvRedisAddr: "redis:6379",
		EnvAddr:      ":9000",
	}), []string{
		"render.max_rounds=3", "render.args=worker,--quiet", "server.public_url=https://trio.example",
		"render.worker_config=/etc/trio/worker.yaml", "render.memory_limit=256MiB",
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Render.Timeout)
	assert.Equal(t, WorkerProcess, cfg.Render.Worker)
	assert.Equal(t, "/usr/local/bin/trio", cfg.Render.Command)
	assert.Equal(t, 3, cfg.Render.MaxRounds)
	assert.Equal(t, 400, cfg.Render.MaxSteps, "untouched keys keep their default")
	assert.Equal(t, []string{"worker", "--quiet"}, cfg.Render.Args)
	assert.Equal(t, "/etc/trio/worker.yaml", cfg.Render.WorkerConfig)
	assert.Equal(t, "256MiB", cfg.Render.MemoryLimit)
	assert.Empty(t, cfg.Render.TempDir)
	assert.Equal(t, 10*time.Minute, cfg.Uploads.TTL)
	assert.Equal(t, BackendRedis, cfg.Uploads.Backend)
	assert.Equal(t, "redis:6379", cfg.Uploads.RedisAddr)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://trio.example", cfg.Server.PublicURL)
}

func TestLoad_UploadKeys(t *testing.T) {
	active := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	old := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))

	cfg, err := Load("", env(map[string]string{
		EnvUploadKey:          active,
		EnvUploadPreviousKeys: old + ", " + old,
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{1}, 32), cfg.Uploads.EncryptionKey)
	assert.Len(t, cfg.Uploads.PreviousKeys, 2)

	_, err = Load("", env(map[string]string{EnvUploadKey: "not base64!"}), nil)
	assert.ErrorContains(t, err, EnvUploadKey)

	_, err = Load("", env(map[string]string{EnvUploadKey: base64.StdEncoding.EncodeToString([]byte("short"))}), nil)
	assert.ErrorContains(t, err, "32 bytes")
}

func TestLoad_Errors(t *testing.T) {
	noEnv := env(nil)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv, nil)
	assert.ErrorContains(t, err, "failed to read config")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("render: [\n"), 0o644))
	_, err = Load(bad, noEnv, nil)
	assert.ErrorContains(t, err, "failed to parse")

	tests := map[string]struct {
		overrides []string
		want      string
	}{
		"no equals":       {[]string{"render.timeout"}, "expected key=value"},
		"no section":      {[]string{"timeout=1s"}, "expected section.key"},
		"unknown key":     {[]string{"render.colour=red"}, "unknown config keys"},
		"bad duration":    {[]string{"render.timeout=soon"}, "invalid override"},
		"bad worker":      {[]string{"render.worker=thread"}, "render.worker"},
		"bad backend":     {[]string{"uploads.backend=s3"}, "uploads.backend"},
		"zero timeout":    {[]string{"render.timeout=0s"}, "render.timeout"},
		"no redis addr":   {[]string{"uploads.backend=redis", "uploads.redis_addr="}, "redis_addr"},
		"negative upload": {[]string{"server.max_upload_bytes=-1"}, "max_upload_bytes"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", noEnv, tt.overrides)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
