// Package speech provides the REST clients for the cognitive speech service:
// bearer token issuance and SSML speech synthesis.
//
// Both clients are stateless from the caller's perspective and safe for
// concurrent use.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTP headers.
const (
	headerContentType     = "Content-Type"
	headerAuthorization   = "Authorization"
	headerUserAgent       = "User-Agent"
	headerOutputFormat    = "X-Microsoft-OutputFormat"
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
	contentTypeSSML       = "application/ssml+xml"
	bearerPrefix          = "Bearer "
)

// Maximum number of bytes of an error body kept in HTTPError.
const maxErrorBodyBytes = 1024

// Static errors.
var (
	ErrMarkupEmpty     = errors.New("speech markup cannot be empty")
	ErrAuthTokenEmpty  = errors.New("auth token cannot be empty")
	ErrEmptyAudio      = errors.New("received empty audio data")
	ErrEndpointEmpty   = errors.New("endpoint url cannot be empty")
	ErrSubscriptionKey = errors.New("subscription key cannot be empty")
	ErrEmptyTokenBody  = errors.New("token service returned an empty token")
)

// HTTPError is returned when a speech endpoint answers with a non-success status.
// It keeps enough of the response to tell an expired token (401) from a
// throttled request (429) or a rejected markup document (400).
type HTTPError struct {
	// StatusCode is the numeric HTTP status of the response.
	StatusCode int

	// Status is the status line text, e.g. "401 Unauthorized".
	Status string

	// Body holds at most the first 1 KiB of the response body, trimmed.
	Body string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return "speech service returned non-OK status: " + e.Status
	}

	return fmt.Sprintf("speech service returned non-OK status: %s, body: %s", e.Status, e.Body)
}

func newHTTPError(resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// SynthesisClient calls the speech synthesis endpoint. It holds no per-request
// state, so one client serves every message of every batch.
type SynthesisClient struct {
	httpClient   *http.Client
	url          string
	outputFormat string
	userAgent    string
}

// NewSynthesisClient creates a client for the synthesis endpoint at url, the
// full "https://<region>.tts.speech.microsoft.com/cognitiveservices/v1" form.
// outputFormat is sent as the X-Microsoft-OutputFormat header, e.g.
// "riff-24khz-16bit-mono-pcm", and decides the encoding of the returned audio.
// userAgent is sent when non-empty. The timeout applies to every request,
// in addition to any deadline on the context passed to Synthesize.
//
// An empty url yields ErrEndpointEmpty.
func NewSynthesisClient(url, outputFormat, userAgent string, timeout time.Duration) (*SynthesisClient, error) {
	if url == "" {
		return nil, ErrEndpointEmpty
	}

	return &SynthesisClient{
		httpClient:   &http.Client{Timeout: timeout},
		url:          url,
		outputFormat: outputFormat,
		userAgent:    userAgent,
	}, nil
}

// Synthesize posts the SSML markup and returns the raw audio in the configured format.
// markup must be a complete, escaped SSML document (see BuildSSML) and
// authToken a bearer token from TokenClient.FetchToken; tokens expire after
// a few minutes, so callers fetch one per message rather than caching it.
//
// Empty arguments fail fast with ErrMarkupEmpty or ErrAuthTokenEmpty without a
// network call. A non-200 answer is reported as *HTTPError so callers can
// inspect the status, and a 200 answer with no body as ErrEmptyAudio.
// The returned bytes are the provider's audio unmodified; storing them is the
// caller's job.
func (c *SynthesisClient) Synthesize(ctx context.Context, markup, authToken string) ([]byte, error) {
	if markup == "" {
		return nil, ErrMarkupEmpty
	}

	if authToken == "" {
		return nil, ErrAuthTokenEmpty
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeSSML)
	req.Header.Set(headerAuthorization, bearerPrefix+authToken)
	req.Header.Set(headerOutputFormat, c.outputFormat)

	if c.userAgent != "" {
		req.Header.Set(headerUserAgent, c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to speech service at %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}
