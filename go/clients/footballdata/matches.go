package footballdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

type Area struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Season struct {
	ID              int64  `json:"id"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	CurrentMatchday *int   `json:"currentMatchday"`
}

type Competition struct {
	ID            int64     `json:"id"`
	Area          Area      `json:"area"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	Type          string    `json:"type"`
	Emblem        string    `json:"emblem"`
	CurrentSeason *Season   `json:"currentSeason"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	TLA       string `json:"tla"`
}

type ScoreTime struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type MatchScore struct {
	Winner   string    `json:"winner"`
	FullTime ScoreTime `json:"fullTime"`
	HalfTime ScoreTime `json:"halfTime"`
}

type Match struct {
	ID          int64      `json:"id"`
	UTCDate     time.Time  `json:"utcDate"`
	Status      string     `json:"status"`
	Matchday    *int       `json:"matchday"`
	LastUpdated time.Time  `json:"lastUpdated"`
	HomeTeam    Team       `json:"homeTeam"`
	AwayTeam    Team       `json:"awayTeam"`
	Score       MatchScore `json:"score"`
}

type MatchesResponse struct {
	Filters     map[string]interface{} `json:"filters"`
	ResultSet   map[string]interface{} `json:"resultSet"`
	Competition Competition            `json:"competition"`
	Matches     []json.RawMessage      `json:"matches"`
}

// GetCompetition fetches competition details by code (e.g. PL, CL, PD).
func (c *Client) GetCompetition(ctx context.Context, code string) (*Competition, []byte, error) {
	body, err := c.Get(ctx, fmt.Sprintf(CompetitionEndpoint, code))
	if err != nil {
		return nil, nil, classify(err)
	}

	var competition Competition
	if err := json.Unmarshal(body, &competition); err != nil {
		return nil, nil, &MalformedError{Reason: err.Error()}
	}

	return &competition, body, nil
}

// GetMatches fetches the match list for one competition, optionally bounded
// by a date window. Matches are returned raw so the caller can tolerate
// individual records that fail to decode without losing the batch.
func (c *Client) GetMatches(ctx context.Context, code string, dateFrom, dateTo time.Time) (*MatchesResponse, error) {
	endpoint := fmt.Sprintf(MatchesEndpoint, code)

	params := url.Values{}
	if !dateFrom.IsZero() {
		params.Set("dateFrom", dateFrom.Format("2006-01-02"))
	}
	if !dateTo.IsZero() {
		params.Set("dateTo", dateTo.Format("2006-01-02"))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, classify(err)
	}

	var response MatchesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	return &response, nil
}
