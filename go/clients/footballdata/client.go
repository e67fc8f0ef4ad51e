package footballdata

import (
	"errors"
	"time"

	"github.com/jstats/matchlens/go/clients"
)

// Default backoff applied when a 429 arrives without a usable Retry-After
// header. football-data.org throttles per minute, so a couple of seconds is
// usually enough.
const defaultRetryAfter = 2 * time.Second

type Client struct {
	*clients.BaseClient
}

func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, BaseURL)
}

// NewClientWithBaseURL points the client at an alternate host, such as a
// local stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AuthTokenHeader, apiKey)

	return client
}

// classify maps a transport error onto the client's error taxonomy:
// 404 -> ErrNotFound, 429 -> RateLimitedError, 5xx -> UnavailableError,
// any other 4xx passes through untouched so callers fail fast instead of
// spinning on a bad token or parameter.
func classify(err error) error {
	var apiErr *clients.APIError
	if !errors.As(err, &apiErr) {
		// connection refused, timeout, DNS: all retryable
		return &UnavailableError{Cause: err}
	}

	switch {
	case apiErr.StatusCode == 404:
		return ErrNotFound
	case apiErr.StatusCode == 429:
		ra := apiErr.RetryAfter
		if ra < time.Second {
			ra = defaultRetryAfter
		}
		return &RateLimitedError{RetryAfter: ra}
	case apiErr.StatusCode >= 500:
		return &UnavailableError{StatusCode: apiErr.StatusCode}
	default:
		return err
	}
}
