// Package language detects the language of chat text through the text
// analytics REST API and maps it onto a synthesis voice.
package language

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiDetectLanguage     = "/text/analytics/v3.0/languages"
	headerContentType     = "Content-Type"
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
	contentTypeJSON       = "application/json"
	documentID            = "1"
	maxErrorBodyBytes     = 1024
)

// Static errors.
var (
	ErrEndpointEmpty   = errors.New("text analytics endpoint cannot be empty")
	ErrKeyEmpty        = errors.New("text analytics key cannot be empty")
	ErrTextEmpty       = errors.New("text cannot be empty")
	ErrNoDocument      = errors.New("language detection returned no document")
	ErrDocumentFailure = errors.New("language detection failed for document")
)

type detectRequest struct {
	Documents []detectDocument `json:"documents"`
}

type detectDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type detectResponse struct {
	Documents []struct {
		ID               string `json:"id"`
		DetectedLanguage struct {
			Name            string  `json:"name"`
			Iso6391Name     string  `json:"iso6391Name"`
			ConfidenceScore float64 `json:"confidenceScore"`
		} `json:"detectedLanguage"`
	} `json:"documents"`
	Errors []struct {
		ID    string `json:"id"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"errors"`
}

// Client is a LanguageDetector backed by the text analytics service.
type Client struct {
	httpClient *http.Client
	url        string
	key        string
}

// NewClient creates a detector for the text analytics resource at endpoint.
func NewClient(endpoint, key string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, ErrEndpointEmpty
	}

	if key == "" {
		return nil, ErrKeyEmpty
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimRight(endpoint, "/") + apiDetectLanguage,
		key:        key,
	}, nil
}

// Detect returns the ISO 639-1 name of the language detected in text, e.g. "fr".
// "(Unknown)" answers come back as-is and fall through to the default voice.
func (c *Client) Detect(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrTextEmpty
	}

	payload, err := json.Marshal(detectRequest{
		Documents: []detectDocument{{ID: documentID, Text: text}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerSubscriptionKey, c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to text analytics at %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return "", fmt.Errorf("text analytics returned non-OK status: %s, body: %s", resp.Status, string(body))
	}

	var decoded detectResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode language detection response: %w", err)
	}

	if len(decoded.Errors) > 0 {
		docErr := decoded.Errors[0].Error

		return "", fmt.Errorf("%w: %s: %s", ErrDocumentFailure, docErr.Code, docErr.Message)
	}

	if len(decoded.Documents) == 0 {
		return "", ErrNoDocument
	}

	return decoded.Documents[0].DetectedLanguage.Iso6391Name, nil
}
