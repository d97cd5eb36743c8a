// main package for the chat-tts-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/chat-tts-service/internal/api"
	"github.com/book-expert/chat-tts-service/internal/config"
	"github.com/book-expert/chat-tts-service/internal/handler"
	"github.com/book-expert/chat-tts-service/internal/language"
	"github.com/book-expert/chat-tts-service/internal/objectstore"
	"github.com/book-expert/chat-tts-service/internal/speech"
	"github.com/book-expert/chat-tts-service/internal/worker"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "chat-tts-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 4. Connect to NATS and bind the speech bucket
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("chat-tts-service"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.SpeechObjectStoreBucket)
	if err != nil {
		return err
	}

	// 5. Build the handler and its collaborators
	batchHandler, err := newBatchHandler(cfg, store, log)
	if err != nil {
		return err
	}

	natsWorker, err := worker.NewNatsWorker(jetstreamContext, worker.Settings{
		StreamName:      cfg.NATS.StreamName,
		ConsumerName:    cfg.NATS.ConsumerName,
		InboundSubject:  cfg.NATS.InboundSubject,
		OutboundSubject: cfg.NATS.OutboundSubject,
		BatchSize:       cfg.NATS.BatchSize,
		FetchWait:       cfg.FetchWait(),
		MaxDeliver:      cfg.NATS.MaxDeliver,
		RedeliveryDelay: cfg.RedeliveryDelay(),
	}, batchHandler, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	server := &http.Server{
		Addr: cfg.HTTP.ListenAddr,
		Handler: api.NewRouter(api.NewHandler(batchHandler, store, log), api.RouterConfig{
			APIKey:             cfg.HTTP.APIKey,
			CorsAllowedOrigins: cfg.HTTP.CorsAllowedOrigins,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.System("Chat-TTS-Service initialized. Listening for chat messages on subject: %s", cfg.NATS.InboundSubject)

	return serve(ctx, natsWorker, server, log)
}

func newBatchHandler(cfg *config.Config, store *objectstore.NatsObjectStore, log *logger.Logger) (*handler.BatchHandler, error) {
	tokens, err := speech.NewTokenClient(cfg.Speech.TokenURL, cfg.Speech.SubscriptionKey, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create token client: %w", err)
	}

	synthesizer, err := speech.NewSynthesisClient(
		cfg.Speech.SynthesisURL, cfg.Speech.OutputFormat, cfg.Speech.UserAgent, cfg.Timeout(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis client: %w", err)
	}

	detector, err := language.NewClient(cfg.TextAnalytics.Endpoint, cfg.TextAnalytics.Key, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create language detector: %w", err)
	}

	batchHandler, err := handler.New(handler.Dependencies{
		Tokens:      tokens,
		Detector:    detector,
		Synthesizer: synthesizer,
		Store:       store,
		Voices:      language.DefaultVoiceTable(),
	}, log, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create batch handler: %w", err)
	}

	return batchHandler, nil
}

// serve runs the worker and the HTTP server until ctx is cancelled or either fails.
func serve(ctx context.Context, natsWorker *worker.NatsWorker, server *http.Server, log *logger.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return natsWorker.Run(groupCtx)
	})

	group.Go(func() error {
		log.Info("Operator API listening on %s", server.Addr)

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	if err != nil {
		log.Error("Service stopped with error: %v", err)

		return err
	}

	log.System("Chat-TTS-Service shut down cleanly.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
