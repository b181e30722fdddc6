// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/frameactor"
	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/config"
	"github.com/bureau-foundation/dispatch/lib/process"
	"github.com/bureau-foundation/dispatch/lib/version"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// runOptions holds the parsed flags of "dispatch run".
type runOptions struct {
	configPath   string
	scenarioPath string
	commandPath  string
	timeout      time.Duration

	navigateAfter   time.Duration
	navigateContext uint64
	navigateURL     string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "--version" {
		fmt.Fprintf(stdout, "dispatch %s\n", version.Info())
		return nil
	}
	if len(args) == 0 || args[0] != "run" {
		fmt.Fprintln(stderr, "usage: dispatch run --scenario FILE --command FILE [flags]")
		fmt.Fprintln(stderr, "       dispatch --version")
		return process.Usagef("expected the run subcommand")
	}

	var options runOptions
	flagSet := pflag.NewFlagSet("dispatch run", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&options.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flagSet.StringVar(&options.scenarioPath, "scenario", "", "YAML file describing browsers, tabs and frames (required)")
	flagSet.StringVar(&options.commandPath, "command", "", "JSONC file with the command to send (required)")
	flagSet.DurationVar(&options.timeout, "timeout", 30*time.Second, "give up on the command after this long")
	flagSet.DurationVar(&options.navigateAfter, "navigate-after", 0, "navigate --navigate-context this long after sending")
	flagSet.Uint64Var(&options.navigateContext, "navigate-context", 0, "context to navigate")
	flagSet.StringVar(&options.navigateURL, "navigate-url", "https://example.test/navigated", "URL to navigate to")

	if err := flagSet.Parse(args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return &process.UsageError{Err: err}
	}
	if options.scenarioPath == "" || options.commandPath == "" {
		return process.Usagef("--scenario and --command are required")
	}
	if options.navigateAfter > 0 && options.navigateContext == 0 {
		return process.Usagef("--navigate-after needs --navigate-context")
	}

	cfg, err := loadConfig(options.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	scenario, err := readScenario(options.scenarioPath)
	if err != nil {
		return &process.UsageError{Err: err}
	}
	command, err := readCommandFile(options.commandPath)
	if err != nil {
		return &process.UsageError{Err: err}
	}

	return dispatch(ctx, cfg, options, scenario, command, stdout, logger)
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, output io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, options)), nil
	}
	return slog.New(slog.NewTextHandler(output, options)), nil
}

func transportConfig(cfg *config.Config) (messagehandler.TransportConfig, error) {
	delay, err := cfg.RetryDelayDuration()
	if err != nil {
		return messagehandler.TransportConfig{}, err
	}
	return messagehandler.TransportConfig{
		RetryOnAbort:         cfg.Transport.RetryOnAbort,
		RetryDelay:           delay,
		BroadcastConcurrency: cfg.Transport.BroadcastConcurrency,
	}, nil
}

// dispatch builds the universe, sends command and prints the reply.
func dispatch(ctx context.Context, cfg *config.Config, options runOptions, scenario *Scenario, command *messagehandler.Command, stdout io.Writer, logger *slog.Logger) error {
	transport, err := transportConfig(cfg)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	socketDir, err := os.MkdirTemp(cfg.Paths.SocketDir, "run-")
	if err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	defer os.RemoveAll(socketDir)

	clk := clock.Real()
	registry := browsingcontext.NewRegistry(clk, logger)

	frameModules := messagehandler.NewModules()
	frameactor.RegisterBuiltins(frameModules, clk)
	pool := frameactor.NewPool(registry, socketDir, frameModules, logger)
	defer pool.Close()

	if err := scenario.build(registry, pool, logger); err != nil {
		return fmt.Errorf("building scenario: %w", err)
	}

	handler := messagehandler.NewRootMessageHandler(registry, frameactor.NewSocketChannel(), transport, clk, logger)
	defer handler.Destroy()
	registerSessionModule(handler, frameModules)

	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	navigated := make(chan struct{})
	if options.navigateAfter > 0 {
		go func() {
			defer close(navigated)
			select {
			case <-clk.After(options.navigateAfter):
			case <-ctx.Done():
				return
			}
			target := browsingcontext.ID(options.navigateContext)
			if _, err := pool.Navigate(target, options.navigateURL); err != nil {
				logger.Error("navigation failed", "context_id", target, "error", err)
			}
		}()
	} else {
		close(navigated)
	}

	reply, err := handler.HandleCommand(ctx, command)
	cancel()
	<-navigated
	if err != nil {
		return fmt.Errorf("%s: %w", command.Name(), err)
	}
	return writeReply(stdout, reply)
}

// sessionStatus is the result of session.status.
type sessionStatus struct {
	SessionID     string   `json:"session_id"`
	RootCommands  []string `json:"root_commands"`
	FrameCommands []string `json:"frame_commands"`
}

// registerSessionModule adds the root-level session module.
func registerSessionModule(handler *messagehandler.RootMessageHandler, frameModules *messagehandler.Modules) {
	handler.Modules().Register("session", "status", func(ctx context.Context, request messagehandler.Request) (any, error) {
		return sessionStatus{
			SessionID:     request.SessionID,
			RootCommands:  handler.Modules().Names(),
			FrameCommands: frameModules.Names(),
		}, nil
	})
}
