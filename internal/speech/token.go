package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenClient exchanges a subscription key for a short-lived bearer token.
// The key never leaves this client; only the issued token is handed to
// SynthesisClient.
type TokenClient struct {
	httpClient      *http.Client
	url             string
	subscriptionKey string
}

// NewTokenClient creates a token client for the issue-token endpoint at url,
// e.g. "https://<region>.api.cognitive.microsoft.com/sts/v1.0/issueToken".
// A blank url or key yields ErrEndpointEmpty or ErrSubscriptionKey. The
// timeout applies to every request.
func NewTokenClient(url, subscriptionKey string, timeout time.Duration) (*TokenClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEndpointEmpty
	}

	if strings.TrimSpace(subscriptionKey) == "" {
		return nil, ErrSubscriptionKey
	}

	return &TokenClient{
		httpClient:      &http.Client{Timeout: timeout},
		url:             url,
		subscriptionKey: subscriptionKey,
	}, nil
}

// FetchToken posts an empty body with the subscription key and returns the token text.
// A non-200 answer is reported as *HTTPError, and a blank body as
// ErrEmptyTokenBody. No token is cached: every call issues a new one.
func (c *TokenClient) FetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set(headerSubscriptionKey, c.subscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to token service at %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", ErrEmptyTokenBody
	}

	return token, nil
}
