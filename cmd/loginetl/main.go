// Command loginetl drains one login event from the queue into Postgres.
//
// Each invocation receives at most one batch of messages, processes the
// first, and exits. It is meant to be scheduled (cron, a Kubernetes
// CronJob) rather than run as a daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"loginetl/internal/config"
	"loginetl/internal/etlerr"
	"loginetl/internal/logging"
	"loginetl/internal/metrics"
	"loginetl/internal/metrics/datadog"
	"loginetl/internal/metrics/prompush"
	"loginetl/internal/pipeline"
	"loginetl/internal/queue"
	"loginetl/internal/queue/file"
	"loginetl/internal/queue/sqs"
	"loginetl/internal/record"
	"loginetl/internal/storage"
	"loginetl/internal/storage/postgres"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("loginetl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "optional config file (yaml, json or toml); env LOGINETL_* overrides it")
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitConfig
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return exitConfig
	}
	if *validate {
		fmt.Fprintln(stderr, "configuration is valid")
		return exitOK
	}

	log, syncLog, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return exitConfig
	}
	defer syncLog()
	log = log.With(zap.String("job", cfg.Job))

	if b, err := newMetricsBackend(cfg); err != nil {
		log.Warn("metrics disabled", zap.Error(err))
	} else if b != nil {
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics flush failed", zap.Error(err))
			}
		}()
	}

	src, err := newSource(ctx, cfg, log)
	if err != nil {
		log.Error("could not create queue source", zap.Error(err))
		return exitFailure
	}

	d := &pipeline.Driver{
		Job:        cfg.Job,
		Source:     src,
		Builder:    record.NewBuilder(cfg.Sentinels...).WithLogger(log),
		OpenLoader: loaderOpener(cfg, log),
		Log:        log,
	}

	start := time.Now()
	res, err := supervise(ctx, d, log)
	log.Debug("run finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return exitCode(err)
}

// supervise runs d until it finishes or SIGINT/SIGTERM cancels it.
func supervise(ctx context.Context, d *pipeline.Driver, log *zap.Logger) (pipeline.Result, error) {
	sigCtx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	done := make(chan struct{})

	var res pipeline.Result
	g.Go(func() error {
		defer close(done)
		var err error
		res, err = d.Run(gctx)
		return err
	})
	g.Go(func() error {
		select {
		case <-done:
		case <-sigCtx.Done():
			log.Warn("interrupted; cancelling run")
		}
		return nil
	})

	err := g.Wait()
	return res, err
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, etlerr.ConfigError):
		return exitConfig
	default:
		return exitFailure
	}
}

func newSource(ctx context.Context, cfg config.Config, log *zap.Logger) (queue.Source, error) {
	switch cfg.Queue.Kind {
	case config.QueueFile:
		return file.New(cfg.Queue.FilePath), nil
	default:
		return sqs.New(ctx, sqs.Config{
			QueueURL:          cfg.Queue.URL,
			Region:            cfg.Queue.Region,
			Endpoint:          cfg.Queue.Endpoint,
			MaxMessages:       cfg.Queue.MaxMessages,
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
			WaitTime:          cfg.Queue.WaitTime,
			ReceiveTimeout:    cfg.Queue.ReceiveTimeout,
		}, log)
	}
}

func loaderOpener(cfg config.Config, log *zap.Logger) pipeline.LoaderOpener {
	schema := postgres.DefaultSchema()
	schema.Table = cfg.Sink.Table
	schema.StagingTable = cfg.Sink.StagingTable

	pcfg := postgres.Config{
		DSN:         cfg.Sink.PostgresDSN(),
		Schema:      schema,
		InsertMode:  postgres.InsertMode(cfg.Sink.InsertMode),
		EnsureTable: cfg.Sink.EnsureTable,
		PingTimeout: cfg.Sink.PingTimeout,
	}
	return func(ctx context.Context) (storage.Loader, func(), error) {
		l, closeFn, err := postgres.Open(ctx, pcfg, log)
		if err != nil {
			return nil, nil, err
		}
		return l, closeFn, nil
	}
}

// newMetricsBackend returns nil, nil when metrics are disabled.
func newMetricsBackend(cfg config.Config) (metrics.Backend, error) {
	switch cfg.Metrics.Backend {
	case config.MetricsPushgateway:
		return prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case config.MetricsDatadog:
		return datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "loginetl.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		return nil, nil
	}
}
