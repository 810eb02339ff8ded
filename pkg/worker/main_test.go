package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMain(t *testing.T, args []string, env map[string]string) (int, string, Report) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(context.Background(), args, func(k string) string { return env[k] }, &stdout, &stderr)

	var rep Report
	if stderr.Len() > 0 {
		require.NoError(t, json.Unmarshal(stderr.Bytes(), &rep), "stderr must be JSON: %s", stderr.String())
	}
	return code, stdout.String(), rep
}

func writeTrio(t *testing.T, trio domain.Trio) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, WriteDir(dir, trio))
	return dir
}

func TestMain_ExitCodes(t *testing.T) {
	t.Run("Usage", func(t *testing.T) {
		code, out, rep := runMain(t, nil, nil)
		assert.Equal(t, ExitUsage, code)
		assert.Empty(t, out)
		assert.Equal(t, CodeUsage, rep.Error.Code)
	})

	t.Run("Missing Files", func(t *testing.T) {
		code, _, rep := runMain(t, []string{t.TempDir()}, nil)
		assert.Equal(t, ExitUsage, code)
		assert.Contains(t, rep.Error.Message, domain.DomainFile)
	})

	t.Run("Success", func(t *testing.T) {
		dir := writeTrio(t, testTrio(""))
		code, out, _ := runMain(t, []string{dir}, nil)
		assert.Equal(t, ExitOK, code)

		want := New().Render(context.Background(), testTrio(domain.DefaultVariation))
		require.True(t, want.OK())
		assert.Equal(t, want.SVG, out)
	})

	t.Run("Variation From Environment", func(t *testing.T) {
		dir := writeTrio(t, testTrio(""))
		code, out, _ := runMain(t, []string{dir}, map[string]string{domain.VariationEnv: "other"})
		assert.Equal(t, ExitOK, code)

		want := New().Render(context.Background(), testTrio("other"))
		assert.Equal(t, want.SVG, out)
	})

	t.Run("Compile Error", func(t *testing.T) {
		trio := testTrio("")
		trio.Substance = "Sett A\n"
		code, out, rep := runMain(t, []string{writeTrio(t, trio)}, nil)
		assert.Equal(t, ExitCompile, code)
		assert.Empty(t, out)
		assert.Equal(t, diagram.CodeTypeNotFound, rep.Error.Code)
		assert.Equal(t, "Sett", rep.Error.Symbol)
		assert.Equal(t, domain.StageCompile, rep.Error.Stage)
	})

	t.Run("Optimize Error", func(t *testing.T) {
		trio := testTrio("")
		trio.Style = infeasibleStyle
		var stdout, stderr bytes.Buffer
		code := Main(context.Background(), []string{writeTrio(t, trio)}, nil, &stdout, &stderr,
			WithOptimizer(diagram.Options{MaxRounds: 3, MaxSteps: 50}))
		assert.Equal(t, ExitOptimize, code)
		assert.Contains(t, stderr.String(), diagram.CodeInfeasible)
	})
}

func TestExitCodeMapping(t *testing.T) {
	for _, kind := range []domain.Kind{domain.KindCompile, domain.KindOptimize, domain.KindInternal} {
		assert.Equal(t, kind, KindForExit(ExitCodeFor(kind)))
	}
	assert.Equal(t, ExitFault, ExitCodeFor(domain.KindTimeout))
	assert.Equal(t, domain.KindInternal, KindForExit(1))
}
