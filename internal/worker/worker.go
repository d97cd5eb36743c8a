// Package worker provides a NATS JetStream worker that feeds batches of chat
// messages to the speech synthesis handler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/handler"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const (
	publishTimeout         = 10 * time.Second
	defaultFetchWait       = 5 * time.Second
	defaultMaxDeliver      = 5
	defaultRedeliveryDelay = 10 * time.Second
	fetchRetryDelay        = time.Second
)

var (
	// ErrSettingsIncomplete indicates that a stream, consumer or subject name is missing.
	ErrSettingsIncomplete = errors.New("worker stream, consumer and subjects must be set")
	// ErrBatchSize indicates a non-positive batch size.
	ErrBatchSize = errors.New("batch size must be positive")
)

// BatchProcessor is the contract the worker drives, implemented by handler.BatchHandler.
type BatchProcessor interface {
	Process(ctx context.Context, batch [][]byte) (*core.OutputRecord, error)
}

// Settings names the JetStream resources the worker uses.
//
// MaxDeliver bounds how often a message is handed out before the consumer
// gives up on it, and RedeliveryDelay is how long a nak'd batch waits before
// it is redelivered. Both apply only when the worker creates the consumer.
type Settings struct {
	StreamName      string
	ConsumerName    string
	InboundSubject  string
	OutboundSubject string
	BatchSize       int
	FetchWait       time.Duration
	MaxDeliver      int
	RedeliveryDelay time.Duration
}

// NatsWorker pulls batches from the inbound subject and publishes output records.
type NatsWorker struct {
	jetstreamContext nats.JetStreamContext
	settings         Settings
	processor        BatchProcessor
	log              *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	jetstreamContext nats.JetStreamContext,
	settings Settings,
	processor BatchProcessor,
	log *logger.Logger,
) (*NatsWorker, error) {
	if settings.StreamName == "" || settings.ConsumerName == "" ||
		settings.InboundSubject == "" || settings.OutboundSubject == "" {
		return nil, ErrSettingsIncomplete
	}

	if settings.BatchSize <= 0 {
		return nil, ErrBatchSize
	}

	if settings.FetchWait <= 0 {
		settings.FetchWait = defaultFetchWait
	}

	if settings.MaxDeliver <= 0 {
		settings.MaxDeliver = defaultMaxDeliver
	}

	if settings.RedeliveryDelay <= 0 {
		settings.RedeliveryDelay = defaultRedeliveryDelay
	}

	return &NatsWorker{
		jetstreamContext: jetstreamContext,
		settings:         settings,
		processor:        processor,
		log:              log,
	}, nil
}

// Run ensures the stream and consumer exist and processes batches until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	err := w.ensureStream()
	if err != nil {
		return err
	}

	err = w.ensureConsumer()
	if err != nil {
		return err
	}

	sub, err := w.jetstreamContext.PullSubscribe(
		w.settings.InboundSubject,
		w.settings.ConsumerName,
		nats.Bind(w.settings.StreamName, w.settings.ConsumerName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.settings.InboundSubject, err)
	}

	w.log.Info("Worker consuming %s with batch size %d", w.settings.InboundSubject, w.settings.BatchSize)

	for ctx.Err() == nil {
		msgs, fetchErr := w.fetch(ctx, sub)
		if fetchErr != nil {
			if isFatalFetchError(fetchErr) {
				return fetchErr
			}

			w.log.Error("Failed to fetch batch: %v", fetchErr)
			sleep(ctx, fetchRetryDelay)

			continue
		}

		if len(msgs) > 0 {
			w.handleBatch(ctx, msgs)
		}
	}

	unsubErr := sub.Unsubscribe()
	if unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe: %w", unsubErr)
	}

	return nil
}

// isFatalFetchError reports errors after which the subscription cannot
// deliver again: the connection is closed or the consumer is gone.
func isFatalFetchError(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConsumerDeleted) ||
		errors.Is(err, nats.ErrConsumerNotFound) ||
		errors.Is(err, nats.ErrBadSubscription) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, nats.ErrNoStreamResponse)
}

func sleep(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *NatsWorker) fetch(ctx context.Context, sub *nats.Subscription) ([]*nats.Msg, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.settings.FetchWait)
	defer cancel()

	msgs, err := sub.Fetch(w.settings.BatchSize, nats.Context(fetchCtx))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return msgs, nil
		}

		return nil, fmt.Errorf("failed to fetch from %s: %w", w.settings.ConsumerName, err)
	}

	return msgs, nil
}

// handleBatch acks the batch once it produced a published record or nothing
// at all. On failure every message is nak'd with RedeliveryDelay so the
// stream redelivers the batch later, up to MaxDeliver times.
func (w *NatsWorker) handleBatch(ctx context.Context, msgs []*nats.Msg) {
	batch := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		batch = append(batch, msg.Data)
	}

	record, err := w.processor.Process(ctx, batch)
	if err != nil {
		for _, failure := range handler.Failures(err) {
			w.log.Error("Batch of %d messages failed: %v", len(msgs), failure)
		}

		w.nakAll(msgs)

		return
	}

	if record != nil {
		publishErr := w.publishRecord(ctx, record)
		if publishErr != nil {
			w.log.Error("Failed to publish output record %s: %v", record.SpeechStoragePointer, publishErr)
			w.nakAll(msgs)

			return
		}

		w.log.Info("Published speech record %s to %s", record.SpeechStoragePointer, w.settings.OutboundSubject)
	}

	w.settle(msgs, (*nats.Msg).Ack)
}

func (w *NatsWorker) publishRecord(ctx context.Context, record *core.OutputRecord) error {
	data, err := handler.MarshalRecord(record)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	_, err = w.jetstreamContext.Publish(w.settings.OutboundSubject, data, nats.Context(publishCtx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", w.settings.OutboundSubject, err)
	}

	return nil
}

func (w *NatsWorker) nakAll(msgs []*nats.Msg) {
	w.settle(msgs, func(msg *nats.Msg, opts ...nats.AckOpt) error {
		return msg.NakWithDelay(w.settings.RedeliveryDelay, opts...)
	})
}

func (w *NatsWorker) settle(msgs []*nats.Msg, action func(*nats.Msg, ...nats.AckOpt) error) {
	for _, msg := range msgs {
		err := action(msg)
		if err != nil {
			w.log.Warn("Failed to settle message on %s: %v", msg.Subject, err)
		}
	}
}

func (w *NatsWorker) ensureStream() error {
	_, err := w.jetstreamContext.StreamInfo(w.settings.StreamName)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", w.settings.StreamName, err)
	}

	_, err = w.jetstreamContext.AddStream(&nats.StreamConfig{
		Name:     w.settings.StreamName,
		Subjects: []string{w.settings.InboundSubject, w.settings.OutboundSubject},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", w.settings.StreamName, err)
	}

	return nil
}

func (w *NatsWorker) ensureConsumer() error {
	_, err := w.jetstreamContext.ConsumerInfo(w.settings.StreamName, w.settings.ConsumerName)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to look up consumer %s: %w", w.settings.ConsumerName, err)
	}

	_, err = w.jetstreamContext.AddConsumer(w.settings.StreamName, &nats.ConsumerConfig{
		Durable:       w.settings.ConsumerName,
		FilterSubject: w.settings.InboundSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		DeliverPolicy: nats.DeliverAllPolicy,
		MaxDeliver:    w.settings.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", w.settings.ConsumerName, err)
	}

	return nil
}
