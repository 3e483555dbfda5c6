package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablerepo/internal/app"
	"tablerepo/internal/config"
	"tablerepo/internal/logging"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errNotFound):
		os.Exit(2)
	default:
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("tablerepo", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tablerepo [flags] <%s>\n", operationList())
		flags.PrintDefaults()
	}
	config.DefineFlags(flags)
	defineCommandFlags(flags)
	flags.Bool("version", false, "Print version and exit")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if showVersion, _ := flags.GetBool("version"); showVersion {
		fmt.Fprintf(stdout, "tablerepo %s (%s)\n", Version, Commit)
		return nil
	}

	op, err := parseOperation(flags.Args())
	if err != nil {
		flags.Usage()
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	in, err := parseInput(op, flags)
	if err != nil {
		return writeFailure(stdout, err)
	}
	ctx, err = scopeRole(ctx, &cfg.Database, in.role)
	if err != nil {
		return writeFailure(stdout, err)
	}

	logger, loggerProvider, err := app.InitLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	runID := uuid.NewString()
	logger = logger.WithRunID(runID)
	ctx = logging.WithLogger(logging.WithRunIDContext(ctx, runID), logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	a.AttachLoggerProvider(loggerProvider)
	defer func() {
		a.LogMetrics(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()

	if err := a.Init(ctx); err != nil {
		return writeFailure(stdout, err)
	}

	logger.Debug("running operation", slog.String("operation", string(op)), slog.String("table", in.table))
	resp, err := execute(ctx, a, op, in)
	if err != nil {
		return writeFailure(stdout, err)
	}
	return writeResponse(stdout, resp)
}
