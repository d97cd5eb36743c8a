// Package core defines the core business types and collaborator interfaces
// for the chat text-to-speech service.
package core

import (
	"context"
	"io"
)

// BlobStore defines the interface for persisting and retrieving synthesized audio.
type BlobStore interface {
	// Put stores data under name and returns an opaque location for it.
	Put(ctx context.Context, name string, data io.Reader, contentType string) (string, error)
	Get(ctx context.Context, name string) ([]byte, string, error)
}

// TokenProvider fetches a bearer token for the speech synthesis service.
type TokenProvider interface {
	FetchToken(ctx context.Context) (string, error)
}

// LanguageDetector returns the ISO 639-1 code of the language of text.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// SpeechSynthesizer turns a speech markup document into audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, markup, authToken string) ([]byte, error)
}

// VoiceSelection is the language tag and voice chosen for one message.
type VoiceSelection struct {
	Language string
	Voice    string
}

// OutputRecord is the pointer record published once a message has been
// synthesized and stored. Field names are part of the outbound wire format.
type OutputRecord struct {
	SpeechStoragePointer string `json:"SpeechStoragePointer"`
	OriginalString       string `json:"OriginalString"`
}
