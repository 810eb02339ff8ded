package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/worker"
)

const (
	// maxStderr bounds how much of the child's stderr is kept for diagnostics.
	maxStderr = 64 << 10
	// maxStdout bounds the SVG a worker may return.
	maxStdout = 32 << 20
)

// Invoker implements ports.Invoker by running every trio in a fresh worker subprocess.
//
// Each call gets its own temporary directory holding the three program files, an
// allow-listed environment carrying the variation, and its own process group so a
// cancelled render takes all of its descendants with it.
type Invoker struct {
	command   string
	args      []string
	env       map[string]string
	passEnv   []string
	tempDir   string
	waitDelay time.Duration
	maxOutput int
	logger    *slog.Logger
}

// Option configures the invoker.
type Option func(*Invoker)

// WithConfig applies a loaded worker configuration.
func WithConfig(cfg Config) Option {
	return func(i *Invoker) {
		if cfg.Command != "" {
			i.command = cfg.Command
			i.args = slices.Clone(cfg.Args)
		}
		for k, v := range cfg.Env {
			i.env[k] = v
		}
		if len(cfg.PassEnv) > 0 {
			i.passEnv = slices.Clone(cfg.PassEnv)
		}
		if cfg.TempDir != "" {
			i.tempDir = cfg.TempDir
		}
	}
}

// WithCommand sets the worker executable and the arguments placed before the request directory.
func WithCommand(command string, args ...string) Option {
	return func(i *Invoker) {
		i.command = command
		i.args = args
	}
}

// WithEnv adds a variable to the child environment.
func WithEnv(key, value string) Option {
	return func(i *Invoker) {
		i.env[key] = value
	}
}

// WithTempDir sets where request directories are created.
func WithTempDir(dir string) Option {
	return func(i *Invoker) {
		i.tempDir = dir
	}
}

// WithWaitDelay bounds how long a killed child may keep its output pipes open.
func WithWaitDelay(d time.Duration) Option {
	return func(i *Invoker) {
		i.waitDelay = d
	}
}

// WithMaxOutput bounds the SVG size accepted from the worker.
func WithMaxOutput(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.maxOutput = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewInvoker creates a subprocess invoker. By default it re-executes the running
// binary as "<self> worker <dir>".
func NewInvoker(opts ...Option) *Invoker {
	i := &Invoker{
		args:      []string{"worker"},
		env:       map[string]string{},
		passEnv:   DefaultPassEnv,
		waitDelay: 2 * time.Second,
		maxOutput: maxStdout,
		logger:    logging.NewNop(),
	}
	if self, err := os.Executable(); err == nil {
		i.command = self
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke runs trio in a new worker subprocess and maps its exit code to a result.
func (i *Invoker) Invoke(ctx context.Context, trio domain.Trio) domain.RenderResult {
	if i.command == "" {
		return fault(errors.New("worker command is not configured"))
	}

	dir, err := os.MkdirTemp(i.tempDir, "trio-render-*")
	if err != nil {
		return fault(fmt.Errorf("failed to create request directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			i.logger.Warn("Failed to remove request directory", "dir", dir, "error", err)
		}
	}()

	if err := worker.WriteDir(dir, trio); err != nil {
		return fault(err)
	}

	// Security: the trio never reaches the command line; the variation travels in
	// the environment and the programs in files.
	cmd := exec.CommandContext(ctx, i.command, append(slices.Clone(i.args), dir)...)
	cmd.Dir = dir
	cmd.Env = i.environ(trio.Variation)
	isolate(cmd)
	cmd.Cancel = func() error { return killTree(cmd.Process) }
	cmd.WaitDelay = i.waitDelay

	stdout := &limitedBuffer{max: i.maxOutput}
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err = cmd.Run()
	i.logger.Debug("Worker exited", "dir", dir, "duration", time.Since(start), "error", err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return domain.Failure(domain.NewError(domain.KindTimeout, ctxErr))
		}
		return domain.Failure(domain.NewError(domain.KindInternal, ctxErr))
	}

	if err == nil {
		if stdout.truncated {
			return fault(fmt.Errorf("worker output exceeds %d bytes", i.maxOutput))
		}
		return domain.Success(stdout.String())
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fault(fmt.Errorf("failed to run worker: %w", err))
	}
	return domain.Failure(i.decode(exitErr.ExitCode(), stderr.String()))
}

// decode rebuilds the worker's error from its exit code and stderr report.
func (i *Invoker) decode(code int, stderr string) *domain.Error {
	kind := worker.KindForExit(code)

	var rep worker.Report
	if err := json.Unmarshal([]byte(strings.TrimSpace(stderr)), &rep); err != nil || rep.Error.Message == "" {
		if crash, ok := runtimeCrash(stderr); ok {
			i.logger.Error("Worker crashed", "exit_code", code, "reason", crash)
			return &domain.Error{
				Kind:    domain.KindInternal,
				Message: "worker crashed: " + crash,
				Err:     errors.New(strings.TrimSpace(stderr)),
			}
		}
		i.logger.Warn("Worker returned an unreadable report", "exit_code", code, "stderr", stderr)
		return &domain.Error{
			Kind:    kind,
			Message: fmt.Sprintf("worker exited with status %d", code),
			Err:     errors.New(strings.TrimSpace(stderr)),
		}
	}

	diag := rep.Error
	if kind == domain.KindInternal {
		i.logger.Error("Worker fault", "exit_code", code, "diagnostic", diag.String())
	}
	return &domain.Error{
		Kind:       kind,
		Message:    diag.String(),
		Diagnostic: &diag,
	}
}

// runtimeCrash returns the first line of a Go runtime panic or fatal error.
// Such a worker exits with status 2 like a usage error but writes no report.
func runtimeCrash(stderr string) (string, bool) {
	for line := range strings.Lines(stderr) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "panic: ") || strings.HasPrefix(line, "fatal error: ") {
			return line, true
		}
	}
	return "", false
}

// environ builds the child environment from the allow-list only.
func (i *Invoker) environ(variation string) []string {
	env := make([]string, 0, len(i.passEnv)+len(i.env)+1)
	for _, key := range i.passEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	keys := make([]string, 0, len(i.env))
	for k := range i.env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+i.env[k])
	}
	return append(env, domain.VariationEnv+"="+variation)
}

func fault(err error) domain.RenderResult {
	return domain.Failure(domain.NewError(domain.KindInternal, err))
}

// limitedBuffer keeps the first max bytes written to it and discards the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.max - b.buf.Len(); n > room {
		b.truncated = true
		p = p[:max(room, 0)]
	}
	b.buf.Write(p)
	return n, nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
