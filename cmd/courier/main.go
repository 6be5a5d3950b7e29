package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaydesk/courier/modstore"
	"github.com/relaydesk/courier/pkg/robusthttp"
	"github.com/relaydesk/courier/relay"
	"github.com/relaydesk/courier/telegram"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "courier",
		Usage:   "telegram feedback relay daemon (support inbox with moderation)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "telegram-host",
			Usage:   "scheme and hostname of the Telegram Bot API",
			Value:   telegram.DefaultHost,
			EnvVars: []string{"TELEGRAM_HOST"},
		},
		&cli.StringFlag{
			Name:     "telegram-token",
			Usage:    "bot token issued by BotFather",
			Required: true,
			EnvVars:  []string{"BOT_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "telegram-rate-limit",
			Usage:   "max number of requests per second to the Bot API",
			Value:   25,
			EnvVars: []string{"COURIER_TELEGRAM_RATE_LIMIT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:     "group-chat-id",
			Usage:    "chat id of the staff group user messages are relayed into",
			Required: true,
			EnvVars:  []string{"GROUP_ID"},
		},
		&cli.StringFlag{
			Name:    "group-chat-type",
			Usage:   "chat type of the staff group (group or supergroup)",
			Value:   "group",
			EnvVars: []string{"GROUP_TYPE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for update cursor state; ephemeral if empty",
			EnvVars: []string{"COURIER_REDIS_URL"},
		},
		&cli.DurationFlag{
			Name:    "poll-timeout",
			Usage:   "long poll window for getUpdates",
			Value:   30 * time.Second,
			EnvVars: []string{"COURIER_POLL_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "how often expired mutes are cleared",
			Value:   60 * time.Second,
			EnvVars: []string{"COURIER_SWEEP_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3990",
			EnvVars: []string{"COURIER_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("courier"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		tgc := &telegram.Client{
			Host:    cctx.String("telegram-host"),
			Token:   cctx.String("telegram-token"),
			Client:  robusthttp.NewClient(robusthttp.WithLogger(logger)),
			Limiter: rate.NewLimiter(rate.Limit(cctx.Int("telegram-rate-limit")), 1),
		}

		// confirm the token works before entering the poll loop
		bootCtx, bootCancel := context.WithTimeout(ctx, 15*time.Second)
		me, err := tgc.GetMe(bootCtx)
		bootCancel()
		if err != nil {
			return fmt.Errorf("verifying bot token: %w", err)
		}
		logger.Info("bot identity confirmed", "username", me.Username, "botID", me.ID)

		svc, err := relay.NewService(
			tgc,
			modstore.NewMemModStore(),
			relay.Config{
				GroupChatID:   cctx.Int64("group-chat-id"),
				GroupChatType: cctx.String("group-chat-type"),
				RedisURL:      cctx.String("redis-url"),
				PollTimeout:   cctx.Duration("poll-timeout"),
				SweepInterval: cctx.Duration("sweep-interval"),
				Logger:        logger,
			},
		)
		if err != nil {
			return err
		}

		go func() {
			if err := svc.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-signals
			logger.Info("shutting down on signal")
			cancel()
		}()

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error { return svc.RunConsumer(ctx) })
		eg.Go(func() error { return svc.RunSweeper(ctx) })
		eg.Go(func() error { return svc.RunPersistCursor(ctx) })

		if err := eg.Wait(); err != nil {
			return fmt.Errorf("failed to run relay service: %w", err)
		}
		logger.Info("shut down successfully")
		return nil
	},
}
