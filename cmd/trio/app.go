package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/trio"
	"github.com/aretw0/trio/internal/config"
	"github.com/aretw0/trio/pkg/adapters/memory"
	"github.com/aretw0/trio/pkg/adapters/process"
	"github.com/aretw0/trio/pkg/adapters/redis"
	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/generation"
	"github.com/aretw0/trio/pkg/observability"
	"github.com/aretw0/trio/pkg/orchestrator"
	"github.com/aretw0/trio/pkg/persistence/middleware"
	"github.com/aretw0/trio/pkg/ports"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return "exit status " + strconv.Itoa(e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// app is the assembled service plus the resources it must release.
type app struct {
	svc      *trio.Service
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range slices.Backward(a.closers) {
		if err := c(); err != nil {
			logger.Warn("Shutdown step failed", "error", err)
		}
	}
}

func optimizerOptions(c config.Render) diagram.Options {
	return diagram.Options{MaxRounds: c.MaxRounds, MaxSteps: c.MaxSteps}
}

// invoker builds the render worker selected by the configuration.
func invoker(c config.Config) (ports.Invoker, error) {
	if c.Render.Worker == config.WorkerInProcess {
		return worker.NewInProcess(
			worker.WithOptimizer(optimizerOptions(c.Render)),
			worker.WithLogger(logger),
		), nil
	}

	opts, err := processOptions(c.Render)
	if err != nil {
		return nil, err
	}
	return process.NewInvoker(append(opts, process.WithLogger(logger))...), nil
}

// processOptions describes the worker subprocess. A worker config file supplies
// the launch description; the render keys fill in or override the rest.
func processOptions(c config.Render) ([]process.Option, error) {
	var opts []process.Option
	command, args := c.Command, slices.Clone(c.Args)
	if c.WorkerConfig != "" {
		wc, err := process.LoadConfig(c.WorkerConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, process.WithConfig(wc))
		command, args = wc.Command, slices.Clone(wc.Args)
	}
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate worker executable: %w", err)
		}
		command = exe
	}
	args = append(args,
		"--max-rounds="+strconv.Itoa(c.MaxRounds),
		"--max-steps="+strconv.Itoa(c.MaxSteps),
	)
	opts = append(opts, process.WithCommand(command, args...))
	if c.TempDir != "" {
		opts = append(opts, process.WithTempDir(c.TempDir))
	}
	if c.MemoryLimit != "" {
		opts = append(opts, process.WithEnv("GOMEMLIMIT", c.MemoryLimit))
	}
	return opts, nil
}

func uploadStore(ctx context.Context, c config.Uploads) (ports.UploadStore, func() error, error) {
	var (
		store   ports.UploadStore
		closeFn = func() error { return nil }
	)
	if c.Backend == config.BackendMemory {
		store = memory.NewStore(memory.WithTTL(c.TTL))
	} else {
		rs := redis.New(c.RedisAddr, redis.WithTTL(c.TTL))
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis upload store at %s: %w", c.RedisAddr, err)
		}
		store, closeFn = rs, rs.Close
	}

	if len(c.EncryptionKey) == 0 {
		return store, closeFn, nil
	}
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    c.EncryptionKey,
		FallbackKeys: c.PreviousKeys,
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return middleware.Chain(store, encrypt), closeFn, nil
}

// newApp wires the service from the loaded configuration.
func newApp(ctx context.Context) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(a.registry)

	inv, err := invoker(cfg)
	if err != nil {
		return nil, err
	}
	orch := orchestrator.New(inv,
		orchestrator.WithTimeout(cfg.Render.Timeout),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	)

	store, closeStore, err := uploadStore(ctx, cfg.Uploads)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	publicURL := strings.TrimRight(cfg.Server.PublicURL, "/")
	opts := []trio.Option{
		trio.WithOrchestrator(orch),
		trio.WithUploadStore(store),
		trio.WithPublicURL(publicURL),
		trio.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		trio.WithLogger(logger),
	}
	if cfg.Generation.APIKey != "" {
		client := generation.NewAnthropicClient(cfg.Generation.APIKey,
			generation.WithModel(cfg.Generation.Model),
			generation.WithMaxTokens(cfg.Generation.MaxTokens),
			generation.WithBaseURL(cfg.Generation.BaseURL),
		)
		opts = append(opts, trio.WithGenerator(generation.New(client,
			generation.WithImageLoader(trio.UploadLoader(store, publicURL)),
			generation.WithLogger(logger),
			generation.WithMetrics(metrics),
		)))
	} else {
		logger.Warn("Substance generation disabled", "reason", config.EnvAPIKey+" is not set")
	}

	a.svc = trio.New(opts...)
	return a, nil
}
