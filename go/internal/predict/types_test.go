package predict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAcceptsDateOnlyPayload(t *testing.T) {
	var req Request
	payload := `{"home_team":"Arsenal FC","away_team":"Chelsea FC","competition":"PL","match_date":"2026-09-12"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	assert.Equal(t, time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC), req.MatchDate)
	assert.NoError(t, req.Validate())
}

func TestRequestAcceptsRFC3339Payload(t *testing.T) {
	var req Request
	payload := `{"home_team":"Arsenal FC","away_team":"Chelsea FC","competition":"PL","match_date":"2026-09-12T15:00:00Z"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	assert.Equal(t, time.Date(2026, 9, 12, 15, 0, 0, 0, time.UTC), req.MatchDate)
}

func TestRequestRejectsUnparseableDate(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"match_date":"12/09/2026"}`), &req)
	assert.ErrorContains(t, err, "match_date")
}

func TestRequestValidateRequiresAllFields(t *testing.T) {
	tests := []struct {
		name string
		edit func(r *Request)
		want string
	}{
		{"home team", func(r *Request) { r.HomeTeam = "" }, "home_team is required"},
		{"away team", func(r *Request) { r.AwayTeam = "  " }, "away_team is required"},
		{"competition", func(r *Request) { r.Competition = "" }, "competition is required"},
		{"match date", func(r *Request) { r.MatchDate = time.Time{} }, "match_date is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testPredictRequest()
			tt.edit(&req)
			assert.ErrorContains(t, req.Validate(), tt.want)
		})
	}
}
