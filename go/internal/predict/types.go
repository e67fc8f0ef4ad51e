package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request identifies the match to predict. All fields are required; the
// fixture does not have to exist in the store yet.
type Request struct {
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Competition string    `json:"competition"`
	MatchDate   time.Time `json:"match_date"`
}

// UnmarshalJSON accepts match_date as either a plain date or RFC 3339.
func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	aux := struct {
		MatchDate string `json:"match_date"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MatchDate == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if ts, err := time.Parse(layout, aux.MatchDate); err == nil {
			r.MatchDate = ts
			return nil
		}
	}
	return fmt.Errorf("match_date %q must be YYYY-MM-DD or RFC 3339", aux.MatchDate)
}

func (r *Request) Validate() error {
	if strings.TrimSpace(r.HomeTeam) == "" {
		return errors.New("home_team is required")
	}
	if strings.TrimSpace(r.AwayTeam) == "" {
		return errors.New("away_team is required")
	}
	if strings.TrimSpace(r.Competition) == "" {
		return errors.New("competition is required")
	}
	if r.MatchDate.IsZero() {
		return errors.New("match_date is required")
	}
	return nil
}

// Response carries the model's verdict plus the historical matches that
// informed it.
type Response struct {
	PredictedWinner string            `json:"predicted_winner"`
	Confidence      float64           `json:"confidence"`
	Reasoning       string            `json:"reasoning"`
	KeyFactors      []string          `json:"key_factors"`
	RelevantMatches []HistoricalMatch `json:"relevant_matches"`
}

// HistoricalMatch is one finished fixture used as prediction context.
type HistoricalMatch struct {
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Result      string    `json:"result"`
	Competition string    `json:"competition"`
	Date        time.Time `json:"date"`
}
