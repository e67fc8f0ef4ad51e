package footballdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithBaseURL("test-key", server.URL)
}

func TestGetCompetitionSendsAuthToken(t *testing.T) {
	var gotToken, gotPath string
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(AuthTokenHeader)
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":2021,"code":"PL","name":"Premier League"}`))
	})

	competition, body, err := client.GetCompetition(context.Background(), "PL")
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotToken)
	assert.Equal(t, "/v4/competitions/PL", gotPath)
	assert.Equal(t, int64(2021), competition.ID)
	assert.Equal(t, "PL", competition.Code)
	assert.JSONEq(t, `{"id":2021,"code":"PL","name":"Premier League"}`, string(body))
}

func TestGetMatchesDateWindowParams(t *testing.T) {
	var gotQuery string
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"matches":[{"id":1},{"id":2}]}`))
	})

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	resp, err := client.GetMatches(context.Background(), "PL", from, to)
	require.NoError(t, err)

	assert.Equal(t, "dateFrom=2026-09-01&dateTo=2026-09-08", gotQuery)
	assert.Len(t, resp.Matches, 2)
}

func TestGetMatchesOmitsZeroDates(t *testing.T) {
	var gotQuery string
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"matches":[]}`))
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestNotFoundIsSentinel(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	_, _, err := client.GetCompetition(context.Background(), "XX")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRateLimitedHonorsRetryAfter(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, 7*time.Second, rl.Hint())
}

func TestRateLimitedDefaultsWithoutHeader(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, defaultRetryAfter, rl.RetryAfter)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusBadGateway, unavailable.StatusCode)
}

func TestConnectionFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on
	client := NewClientWithBaseURL("test-key", server.URL)

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Zero(t, unavailable.StatusCode)
	assert.Error(t, unavailable.Cause)
}

func TestClientErrorFailsFast(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad token"}`, http.StatusForbidden)
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})
	require.Error(t, err)

	var rl *RateLimitedError
	var unavailable *UnavailableError
	assert.False(t, errors.As(err, &rl) || errors.As(err, &unavailable),
		"4xx other than 404/429 must pass through untouched")
}

func TestMalformedEnvelope(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matches": "nope"`))
	})

	_, err := client.GetMatches(context.Background(), "PL", time.Time{}, time.Time{})

	var malformed *MalformedError
	assert.ErrorAs(t, err, &malformed)
}
