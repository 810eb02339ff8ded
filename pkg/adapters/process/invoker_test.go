package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/trio/pkg/adapters/process"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trio = domain.Trio{
	Domain:    "type Set\n",
	Substance: "Set A\n",
	Style:     "canvas {\n width = 10\n height = 10\n}\n",
	Variation: "seed-1",
}

// shellWorker returns an invoker running script with "sh -c"; the request
// directory arrives as $1.
func shellWorker(t *testing.T, script string, opts ...process.Option) *process.Invoker {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures need a POSIX sh")
	}
	base := []process.Option{process.WithCommand("sh", "-c", script, "worker")}
	return process.NewInvoker(append(base, opts...)...)
}

func TestInvoker_Success(t *testing.T) {
	inv := shellWorker(t, `printf '<svg>%s|%s</svg>' "$(cat "$1/substance.dsl")" "$TRIO_ARG_VARIATION"`)

	res := inv.Invoke(context.Background(), trio)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, "<svg>Set A|seed-1</svg>", res.SVG)
}

func TestInvoker_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		wantKind domain.Kind
		wantCode string
	}{
		{
			name:     "compile",
			script:   `echo '{"error":{"stage":"compile","source":"substance","code":"TypeNotFound","message":"type \"Sett\" is not declared","symbol":"Sett","line":1,"column":1}}' >&2; exit 3`,
			wantKind: domain.KindCompile,
			wantCode: "TypeNotFound",
		},
		{
			name:     "optimize",
			script:   `echo '{"error":{"stage":"optimize","code":"Infeasible","message":"ensure disjoint(x, y) is violated"}}' >&2; exit 4`,
			wantKind: domain.KindOptimize,
			wantCode: "Infeasible",
		},
		{
			name:     "uncaught",
			script:   `echo '{"error":{"code":"InternalFault","message":"boom"}}' >&2; exit 5`,
			wantKind: domain.KindInternal,
			wantCode: "InternalFault",
		},
		{
			name:     "usage",
			script:   `echo '{"error":{"code":"Usage","message":"usage: trio worker <dir>"}}' >&2; exit 2`,
			wantKind: domain.KindInternal,
			wantCode: "Usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := shellWorker(t, tt.script).Invoke(context.Background(), trio)
			require.False(t, res.OK())
			assert.Empty(t, res.SVG)
			assert.Equal(t, tt.wantKind, res.Err.Kind)
			require.NotNil(t, res.Err.Diagnostic)
			assert.Equal(t, tt.wantCode, res.Err.Diagnostic.Code)
		})
	}

	t.Run("unreadable report", func(t *testing.T) {
		res := shellWorker(t, `echo 'segfault' >&2; exit 139`).Invoke(context.Background(), trio)
		require.False(t, res.OK())
		assert.Equal(t, domain.KindInternal, res.Err.Kind)
		assert.Nil(t, res.Err.Diagnostic)
		assert.Contains(t, res.Err.Message, "139")
	})

	t.Run("runtime crash is not a usage error", func(t *testing.T) {
		script := `printf 'panic: runtime error: index out of range\n\ngoroutine 1 [running]:\n' >&2; exit 2`
		res := shellWorker(t, script).Invoke(context.Background(), trio)
		require.False(t, res.OK())
		assert.Equal(t, domain.KindInternal, res.Err.Kind)
		assert.Nil(t, res.Err.Diagnostic)
		assert.Equal(t, "worker crashed: panic: runtime error: index out of range", res.Err.Message)
	})

	t.Run("compile diagnostic keeps symbol", func(t *testing.T) {
		res := shellWorker(t, tests[0].script).Invoke(context.Background(), trio)
		require.False(t, res.OK())
		assert.Contains(t, res.Err.Error(), "Sett")
		assert.Equal(t, 1, res.Err.Diagnostic.Line)
	})
}

func TestInvoker_EnvironmentIsAllowListed(t *testing.T) {
	t.Setenv("TRIO_TEST_SECRET", "hunter2")
	inv := shellWorker(t, `printf '%s|%s' "${TRIO_TEST_SECRET:-unset}" "$EXTRA"`,
		process.WithEnv("EXTRA", "granted"))

	res := inv.Invoke(context.Background(), trio)
	require.True(t, res.OK())
	assert.Equal(t, "unset|granted", res.SVG)
}

func TestInvoker_RequestDirectoryIsRemoved(t *testing.T) {
	root := t.TempDir()
	inv := shellWorker(t, `printf '%s' "$1"`, process.WithTempDir(root))

	res := inv.Invoke(context.Background(), trio)
	require.True(t, res.OK())
	assert.True(t, strings.HasPrefix(res.SVG, root))
	_, err := os.Stat(res.SVG)
	assert.True(t, os.IsNotExist(err), "request directory should be removed, stat err = %v", err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvoker_TimeoutKillsProcessGroup(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "survivor")
	// The grandchild would create the marker if it outlived the kill.
	inv := shellWorker(t, `(sleep 2; touch "`+marker+`") & sleep 10`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := inv.Invoke(ctx, trio)
	elapsed := time.Since(start)

	require.False(t, res.OK())
	assert.Equal(t, domain.KindTimeout, res.Err.Kind)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 5*time.Second)

	if runtime.GOOS != "windows" {
		time.Sleep(2500 * time.Millisecond)
		_, err := os.Stat(marker)
		assert.True(t, os.IsNotExist(err), "grandchild survived the process group kill")
	}
}

func TestInvoker_CancelIsNotTimeout(t *testing.T) {
	inv := shellWorker(t, `sleep 10`)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res := inv.Invoke(ctx, trio)
	require.False(t, res.OK())
	assert.Equal(t, domain.KindInternal, res.Err.Kind)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestInvoker_OversizedOutputIsAFault(t *testing.T) {
	inv := shellWorker(t, `head -c 4096 /dev/zero | tr '\0' x`, process.WithMaxOutput(1024))

	res := inv.Invoke(context.Background(), trio)
	require.False(t, res.OK())
	assert.Empty(t, res.SVG)
	assert.Equal(t, domain.KindInternal, res.Err.Kind)
	assert.Contains(t, res.Err.Error(), "exceeds 1024 bytes")

	res = shellWorker(t, `printf '<svg/>'`, process.WithMaxOutput(1024)).Invoke(context.Background(), trio)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, "<svg/>", res.SVG)
}

func TestInvoker_MissingCommand(t *testing.T) {
	inv := process.NewInvoker(process.WithCommand(filepath.Join(t.TempDir(), "no-such-worker")))
	res := inv.Invoke(context.Background(), trio)
	require.False(t, res.OK())
	assert.Equal(t, domain.KindInternal, res.Err.Kind)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("command: /usr/local/bin/trio\nargs: [worker]\nenv:\n  GOMAXPROCS: \"1\"\npass_env: [PATH]\n"), 0o600))
	cfg, err := process.LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, process.Config{
		Command: "/usr/local/bin/trio",
		Args:    []string{"worker"},
		Env:     map[string]string{"GOMAXPROCS": "1"},
		PassEnv: []string{"PATH"},
	}, cfg)

	jsonPath := filepath.Join(dir, "worker.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"command":"trio","args":["worker"]}`), 0o600))
	cfg, err = process.LoadConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "trio", cfg.Command)

	emptyPath := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("args: [worker]\n"), 0o600))
	_, err = process.LoadConfig(emptyPath)
	assert.ErrorContains(t, err, "command is required")

	_, err = process.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
