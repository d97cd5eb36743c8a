package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/handler"
	"github.com/book-expert/chat-tts-service/internal/objectstore"
	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
)

const (
	speechExtension    = ".wav"
	defaultAudioType   = "audio/wav"
	speechPointerBytes = 16
	maxBatchBodyBytes  = 1 << 20
)

// BatchProcessor runs one batch through the speech synthesis handler.
type BatchProcessor interface {
	Process(ctx context.Context, batch [][]byte) (*core.OutputRecord, error)
}

// Handler serves the operator API.
type Handler struct {
	processor BatchProcessor
	store     core.BlobStore
	log       *logger.Logger
}

// NewHandler creates the API handler set.
func NewHandler(processor BatchProcessor, store core.BlobStore, log *logger.Logger) *Handler {
	return &Handler{
		processor: processor,
		store:     store,
		log:       log,
	}
}

type batchFailureResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProcessBatch handles POST /v1/batches with a JSON array of message strings.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var messages []string

	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)

	err := json.NewDecoder(r.Body).Decode(&messages)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body is too large")

			return
		}

		respondError(w, http.StatusBadRequest, "Request body must be a JSON array of strings")

		return
	}

	batch := make([][]byte, 0, len(messages))
	for _, message := range messages {
		batch = append(batch, []byte(message))
	}

	record, err := h.processor.Process(r.Context(), batch)
	if err != nil {
		h.log.Error("Batch invoked over HTTP failed: %v", err)

		failures := handler.Failures(err)
		details := make([]string, 0, len(failures))

		for _, failure := range failures {
			details = append(details, failure.Error())
		}

		respondJSON(w, http.StatusBadGateway, batchFailureResponse{Error: "batch failed", Errors: details})

		return
	}

	if record == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	respondJSON(w, http.StatusOK, record)
}

// GetSpeech handles GET /v1/speech/{pointer}
func (h *Handler) GetSpeech(w http.ResponseWriter, r *http.Request) {
	pointer := chi.URLParam(r, "pointer")

	decoded, err := hex.DecodeString(pointer)
	if err != nil || len(decoded) != speechPointerBytes {
		respondError(w, http.StatusBadRequest, "Invalid speech pointer")

		return
	}

	data, contentType, err := h.store.Get(r.Context(), pointer+speechExtension)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			respondError(w, http.StatusNotFound, "Speech file not found")

			return
		}

		h.log.Error("Failed to read speech file %s: %v", pointer, err)
		respondError(w, http.StatusInternalServerError, "Failed to read speech file")

		return
	}

	if contentType == "" {
		contentType = defaultAudioType
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
