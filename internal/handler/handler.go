// Package handler implements the batch speech synthesis handler: it turns a
// batch of chat messages into a stored speech clip and a pointer record.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/language"
	"github.com/book-expert/chat-tts-service/internal/speech"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	audioExtension   = ".wav"
	audioContentType = "audio/wav"
)

// Dependencies are the external collaborators of the handler.
type Dependencies struct {
	Tokens      core.TokenProvider
	Detector    core.LanguageDetector
	Synthesizer core.SpeechSynthesizer
	Store       core.BlobStore
	Voices      *language.VoiceTable
}

// BatchHandler processes batches of chat messages sequentially.
// It holds no per-batch state and may be shared between goroutines.
type BatchHandler struct {
	deps        Dependencies
	log         *logger.Logger
	callTimeout time.Duration
}

// New creates a BatchHandler. callTimeout bounds every collaborator call;
// zero leaves calls bounded only by the caller's context.
func New(deps Dependencies, log *logger.Logger, callTimeout time.Duration) (*BatchHandler, error) {
	if deps.Tokens == nil || deps.Detector == nil || deps.Synthesizer == nil || deps.Store == nil || log == nil {
		return nil, ErrMissingDependency
	}

	if deps.Voices == nil {
		deps.Voices = language.DefaultVoiceTable()
	}

	return &BatchHandler{
		deps:        deps,
		log:         log,
		callTimeout: callTimeout,
	}, nil
}

// Process walks the batch in order and returns the record of the first
// message that is synthesized and stored; later messages are not attempted.
//
// An empty message ends the batch with no record and no error. A message
// whose token cannot be fetched is skipped without being reported.
// Synthesis and storage failures are collected: one failure is returned
// as-is, two or more as *AggregateError. A nil record with a nil error
// means the batch produced nothing.
func (h *BatchHandler) Process(ctx context.Context, batch [][]byte) (*core.OutputRecord, error) {
	var failures []error

	for index, payload := range batch {
		if len(payload) == 0 {
			h.log.Info("No message content at batch position %d, ending batch", index)

			return nil, nil
		}

		text := string(payload)

		token, err := h.fetchToken(ctx)
		if err != nil {
			h.log.Warn("Failed to obtain an access token for message %d: %v", index, err)

			continue
		}

		record, err := h.processMessage(ctx, text, token)
		if err != nil {
			h.log.Error("Failed to process message %d: %v", index, err)
			failures = append(failures, fmt.Errorf("message %d: %w", index, err))

			continue
		}

		return record, nil
	}

	switch len(failures) {
	case 0:
		return nil, nil
	case 1:
		return nil, failures[0]
	default:
		return nil, &AggregateError{Errors: failures}
	}
}

func (h *BatchHandler) processMessage(ctx context.Context, text, token string) (*core.OutputRecord, error) {
	selection, err := h.selectVoice(ctx, text)
	if err != nil {
		return nil, err
	}

	markup := speech.BuildSSML(selection, text)

	h.log.Info("Calling the speech service with voice %q", selection.Voice)

	synthCtx, cancel := h.callContext(ctx)
	audio, err := h.deps.Synthesizer.Synthesize(synthCtx, markup, token)

	cancel()

	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	id := newSpeechID()
	name := id + audioExtension

	storeCtx, cancel := h.callContext(ctx)
	location, err := h.deps.Store.Put(storeCtx, name, bytes.NewReader(audio), audioContentType)

	cancel()

	if err != nil {
		return nil, fmt.Errorf("failed to store speech file '%s': %w", name, err)
	}

	h.log.Info("The speech file is saved: %s (%d bytes)", location, len(audio))

	return &core.OutputRecord{
		SpeechStoragePointer: id,
		OriginalString:       text,
	}, nil
}

func (h *BatchHandler) fetchToken(ctx context.Context) (string, error) {
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	token, err := h.deps.Tokens.FetchToken(callCtx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token: %w", err)
	}

	return token, nil
}

// selectVoice maps the detected language to a voice. An empty or unlisted
// code gets the default voice; a failed detection call fails the message.
func (h *BatchHandler) selectVoice(ctx context.Context, text string) (core.VoiceSelection, error) {
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	code, err := h.deps.Detector.Detect(callCtx, text)
	if err != nil {
		return core.VoiceSelection{}, fmt.Errorf("failed to detect language: %w", err)
	}

	return h.deps.Voices.Select(code), nil
}

func (h *BatchHandler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, h.callTimeout)
}

// newSpeechID returns a 32 character hex identifier.
func newSpeechID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MarshalRecord serializes a record into the outbound JSON form.
func MarshalRecord(record *core.OutputRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output record: %w", err)
	}

	return data, nil
}
