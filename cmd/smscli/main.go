// Package main is the smscli entrypoint, a command-line front end for
// the CPSMS gateway.
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

	"go.opentelemetry.io/otel/codes"

	cpsms "github.com/jetdk/cpsms-client"
	"github.com/jetdk/cpsms-client/internal/config"
	"github.com/jetdk/cpsms-client/internal/observability"
)

const version = "0.1.0"

// otelShutdownTimeout bounds the final telemetry flush on exit.
const otelShutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if len(args) == 0 {
		usage(os.Stderr)
		return errors.New("missing command")
	}
	name, rest := args[0], args[1:]
	if name == "help" || name == "-h" || name == "--help" {
		usage(os.Stdout)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.OTELServiceName,
	})

	// Startup order: tracer -> metrics -> client.
	tracerProvider, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    cfg.OTELServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTELEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	metricsProvider, err := observability.InitMetrics(ctx, observability.MetricsConfig{
		ServiceName:    cfg.OTELServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTELEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}
	defer func() {
		// Flush telemetry in reverse init order before the process exits.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if shutdownErr := metricsProvider.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("failed to shutdown metrics", slog.String("error", shutdownErr.Error()))
		}
		if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", shutdownErr.Error()))
		}
	}()

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = logger
	client, err := cpsms.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer func() { _ = client.Close() }()

	// One root span per invocation so the client's spans nest under the
	// command that caused them.
	ctx, span := observability.Tracer("smscli").Start(ctx, "cmd."+name)
	defer span.End()

	app := &app{
		client: client,
		logger: observability.WithTraceID(ctx, logger),
		out:    os.Stdout,
	}

	if err := app.dispatch(ctx, name, rest); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// app carries the shared dependencies of every subcommand.
type app struct {
	client *cpsms.Client
	logger *slog.Logger
	out    io.Writer
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "send":
		return a.cmdSend(ctx, args)
	case "sendgroup":
		return a.cmdSendGroup(ctx, args)
	case "cancel":
		return a.cmdCancel(ctx, args)
	case "credit":
		return a.cmdCredit(ctx, args)
	case "groups":
		return a.cmdGroups(ctx, args)
	case "contacts":
		return a.cmdContacts(ctx, args)
	case "members":
		return a.cmdMembers(ctx, args)
	case "log":
		return a.cmdLog(ctx, args)
	case "status":
		return a.cmdStatus(ctx, args)
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", name)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: smscli <command> [options]

commands:
  send       -to <numbers> -from <sender> [options] <message text>
  sendgroup  -group <id> -from <sender> [options] <message text>
  cancel     <reference>
  credit
  groups     [list | create <name> | rename <id> <name> | delete <id>]
  contacts   [list | add -phone <number> -name <name> [-group <id>] |
              update <id> [-phone <number>] [-name <name>] | delete <id>]
  members    <group id>
  log        [-last <duration>] [-from <RFC3339>] [-to <RFC3339>]
  status     [-window <duration>]

configuration comes from CPSMS_-prefixed environment variables:
  CPSMS_USERNAME, CPSMS_API_KEY             account credentials (required)
  CPSMS_BASE_URL, CPSMS_TIMEOUT             gateway endpoint and per-call timeout
  CPSMS_LOG_LEVEL, CPSMS_LOG_FORMAT         logging ("info"/"json" by default)
  CPSMS_OTEL_ENDPOINT                       OTLP collector, empty disables export
`)
}
