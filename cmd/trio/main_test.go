package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/aretw0/trio/examples"
	"github.com/aretw0/trio/internal/config"
	"github.com/aretw0/trio/pkg/adapters/process"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and restores flag defaults afterwards.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		reset := func(f *pflag.Flag) {
			if f.Changed && !strings.Contains(f.Value.Type(), "Array") {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		}
		rootCmd.PersistentFlags().VisitAll(reset)
		for _, c := range rootCmd.Commands() {
			c.Flags().VisitAll(reset)
		}
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exit *exitError
	require.True(t, errors.As(err, &exit), "expected an exit error, got %v", err)
	return exit.code
}

func writeTrio(t *testing.T, tr domain.Trio) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, worker.WriteDir(dir, tr))
	return dir
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "trio version "), out)
}

func TestRender_Example(t *testing.T) {
	out, _, err := execute(t, "render", "--example", "nested", "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<svg"), out)
	assert.Equal(t, 2, strings.Count(out, "<circle"))
}

func TestRender_DirToFile(t *testing.T) {
	ex, err := examples.Load("nested")
	require.NoError(t, err)
	dir := writeTrio(t, ex)
	target := filepath.Join(t.TempDir(), "out.svg")

	_, _, err = execute(t, "render", dir, "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestRender_Failures(t *testing.T) {
	ex, err := examples.Load("nested")
	require.NoError(t, err)

	bad := ex
	bad.Substance = "Sett A\n"
	_, _, err = execute(t, "render", writeTrio(t, bad))
	assert.Equal(t, worker.ExitCompile, exitCode(t, err))
	assert.Contains(t, err.Error(), "Sett")

	_, _, err = execute(t, "render")
	assert.Equal(t, worker.ExitUsage, exitCode(t, err))

	_, _, err = execute(t, "render", "--example", "missing")
	assert.Equal(t, worker.ExitUsage, exitCode(t, err))
	assert.Contains(t, err.Error(), "nested")
}

func TestCheck(t *testing.T) {
	out, _, err := execute(t, "check", "--example", "sets")
	require.NoError(t, err)
	assert.Contains(t, out, "| A | Set | A |")
	assert.Contains(t, out, "`Subset(B, A)`")
	assert.Contains(t, out, "14 shapes")
	assert.NotContains(t, out, "## Solver")

	out, _, err = execute(t, "check", "--example", "nested", "--optimize")
	require.NoError(t, err)
	assert.Contains(t, out, "## Solver")
	assert.Contains(t, out, "All constraints hold.")
}

func TestCheck_Mermaid(t *testing.T) {
	out, _, err := execute(t, "check", "--example", "nested", "--mermaid")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"), out)
	assert.Contains(t, out, `B -- "Subset" --> A`)
}

func TestCheck_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "substance.dsl")
	require.NoError(t, os.WriteFile(path, []byte("Set X\nAutoLabel All\n"), 0o644))

	out, _, err := execute(t, "check", "--example", "nested", "--substance", path)
	require.NoError(t, err)
	assert.Contains(t, out, "| X | Set | X |")
	assert.NotContains(t, out, "| A |")
}

func TestWorker(t *testing.T) {
	ex, err := examples.Load("nested")
	require.NoError(t, err)

	out, _, err := execute(t, "worker", "--max-rounds=4", writeTrio(t, ex))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<svg"), out)

	_, stderr, err := execute(t, "worker", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, worker.ExitUsage, exitCode(t, err))
	var report worker.Report
	require.NoError(t, json.Unmarshal([]byte(stderr), &report), stderr)
	assert.Equal(t, worker.CodeUsage, report.Error.Code)
}

func TestConfigErrorsStopCommands(t *testing.T) {
	_, _, err := execute(t, "render", "--example", "nested", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestInvoker_WorkerConfigFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures need a POSIX sh")
	}
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "worker.json")
	body, err := json.Marshal(process.Config{
		Command: "sh",
		Args:    []string{"-c", `printf '%s|%s|%s|%s' "$1" "$FROM_FILE" "$GOMEMLIMIT" "$(pwd -P)"`, "worker"},
		Env:     map[string]string{"FROM_FILE": "yes"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	c := config.Default()
	c.Render.Worker = config.WorkerProcess
	c.Render.WorkerConfig = path
	c.Render.TempDir = root
	c.Render.MemoryLimit = "128MiB"

	inv, err := invoker(c)
	require.NoError(t, err)
	res := inv.Invoke(context.Background(), domain.Trio{Domain: "type Set\n", Substance: "Set A\n", Style: "canvas {}\n"})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)

	parts := strings.Split(res.SVG, "|")
	require.Len(t, parts, 4, res.SVG)
	assert.Equal(t, "--max-rounds=8", parts[0])
	assert.Equal(t, "yes", parts[1])
	assert.Equal(t, "128MiB", parts[2])
	assert.True(t, strings.HasPrefix(parts[3], root), "request directory %s is outside %s", parts[3], root)

	c.Render.WorkerConfig = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = invoker(c)
	assert.ErrorContains(t, err, "failed to read worker config")
}
