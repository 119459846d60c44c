package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, zapLogger, err := logging.New(cfg.App.LogLevel, cfg.App.PrettyLogs)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(zapLogger)

	logger.WithField("config", cfg.String()).Info("Starting fern")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	resolver := resolution.NewResolver(logger, cfg.MatchingConfig(), cfg.MergingConfig())
	producer := kafka.NewProducer(cfg.ProducerConfig(), logger)
	emitter := events.NewEmitter(producer, logger)

	var proc *processor.Processor
	consumer := kafka.NewConsumer(cfg.ConsumerConfig(), logger, func(ctx context.Context, msg *kafka.IncomingMessage) error {
		return proc.Handle(ctx, msg)
	})
	proc = processor.NewProcessor(logger, resolver, emitter, consumer, cfg.BatchConfig())

	checker := health.NewChecker(cfg.App.Version)
	checker.AddProbe("kafka_consumer", func(context.Context) error {
		if !consumer.Health() {
			if err := consumer.Err(); err != nil {
				return err
			}
			return errors.New("consumer is not running")
		}
		return nil
	})
	checker.AddProbe("batch_processor", func(context.Context) error {
		if !proc.Healthy() {
			return errors.New("batch processor is not running")
		}
		return nil
	})
	server := routes.NewServer(cfg.ServerConfig(), logger, checker)

	// A failed batch stops the service so uncommitted records are redelivered on restart
	procCtx, cancelProc := context.WithCancel(ctx)
	var procWG sync.WaitGroup
	var procErr error

	deps := startup.NewStartup(logger, cfg.App.StartupMaxAttempts)
	deps.AddDependency(server)
	deps.AddDependency(&startup.Func{
		Name:     "kafka_producer",
		StopFunc: func(context.Context) error { return producer.Close() },
	})
	deps.AddDependency(&startup.Func{
		Name: "batch_processor",
		StartFunc: func(context.Context) error {
			procWG.Add(1)
			go func() {
				defer procWG.Done()
				if err := proc.Run(procCtx); err != nil {
					logger.WithError(err).Error("Batch processor failed, shutting down")
					procErr = err
					stop()
				}
			}()
			return nil
		},
		StopFunc: func(context.Context) error {
			cancelProc()
			procWG.Wait()
			return nil
		},
	})
	deps.AddDependency(&startup.Func{
		Name:      "kafka_consumer",
		Upstream:  []string{"kafka_producer", "batch_processor"},
		StartFunc: consumer.Start,
		StopFunc:  func(context.Context) error { return consumer.Stop() },
	})

	if err := deps.Start(ctx); err != nil {
		cancelProc()
		return err
	}
	checker.SetReady(true)
	logger.Info("fern is ready")

	<-ctx.Done()
	logger.Info("Shutting down fern gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopErr := deps.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}

	if procErr != nil {
		return procErr
	}
	return stopErr
}
