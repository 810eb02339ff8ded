package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/trio/pkg/domain"
)

// Exit codes of the worker subprocess. ExitUsage shares 2 with the Go runtime's
// exit status for an unrecovered panic or fatal error; callers tell them apart
// by the JSON report on stderr, which only Main writes.
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitCompile  = 3
	ExitOptimize = 4
	ExitFault    = 5
)

// CodeUsage is the diagnostic code reported for a bad invocation.
const CodeUsage = "Usage"

// Report is the JSON document a failed worker writes to stderr.
type Report struct {
	Error domain.Diagnostic `json:"error"`
}

// ExitCodeFor maps a failure kind to the worker exit code.
func ExitCodeFor(kind domain.Kind) int {
	switch kind {
	case domain.KindCompile:
		return ExitCompile
	case domain.KindOptimize:
		return ExitOptimize
	}
	return ExitFault
}

// KindForExit maps a worker exit code back to a failure kind.
func KindForExit(code int) domain.Kind {
	switch code {
	case ExitCompile:
		return domain.KindCompile
	case ExitOptimize:
		return domain.KindOptimize
	}
	return domain.KindInternal
}

// Main is the body of the worker subprocess. args holds the positional arguments
// (a single directory containing the trio files). It returns the process exit code.
func Main(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer, opts ...Option) int {
	if len(args) != 1 || args[0] == "" {
		report(stderr, domain.Diagnostic{Code: CodeUsage, Message: "usage: trio worker <dir>"})
		return ExitUsage
	}
	trio, err := ReadDir(args[0])
	if err != nil {
		report(stderr, domain.Diagnostic{Code: CodeUsage, Message: err.Error()})
		return ExitUsage
	}
	if getenv != nil {
		trio.Variation = getenv(domain.VariationEnv)
	}
	if trio.Variation == "" {
		trio.Variation = domain.DefaultVariation
	}

	res := New(opts...).Render(ctx, trio)
	if res.OK() {
		if _, err := io.WriteString(stdout, res.SVG); err != nil {
			report(stderr, domain.Diagnostic{Stage: domain.StageSerialize, Code: string(domain.KindInternal), Message: err.Error()})
			return ExitFault
		}
		return ExitOK
	}

	diag := domain.Diagnostic{Code: string(res.Err.Kind), Message: res.Err.Message}
	if res.Err.Diagnostic != nil {
		diag = *res.Err.Diagnostic
	}
	report(stderr, diag)
	return ExitCodeFor(res.Err.Kind)
}

func report(w io.Writer, diag domain.Diagnostic) {
	_ = json.NewEncoder(w).Encode(Report{Error: diag})
}

// ReadDir loads the trio files from dir. The variation is left empty.
func ReadDir(dir string) (domain.Trio, error) {
	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return string(data), nil
	}
	var (
		trio domain.Trio
		err  error
	)
	if trio.Domain, err = read(domain.DomainFile); err != nil {
		return domain.Trio{}, err
	}
	if trio.Substance, err = read(domain.SubstanceFile); err != nil {
		return domain.Trio{}, err
	}
	if trio.Style, err = read(domain.StyleFile); err != nil {
		return domain.Trio{}, err
	}
	return trio, nil
}

// WriteDir lays out trio in dir the way ReadDir expects it.
func WriteDir(dir string, trio domain.Trio) error {
	files := map[string]string{
		domain.DomainFile:    trio.Domain,
		domain.SubstanceFile: trio.Substance,
		domain.StyleFile:     trio.Style,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
