package footballdata

const (
	// Base URL
	BaseURL = "https://api.football-data.org"

	// API Endpoints
	CompetitionEndpoint = "/v4/competitions/%s"
	MatchesEndpoint     = "/v4/competitions/%s/matches"

	// Competition codes
	PremierLeague   = "PL"
	ChampionsLeague = "CL"
	LaLiga          = "PD"
	Bundesliga      = "BL1"
	SerieA          = "SA"

	// Headers
	AuthTokenHeader = "X-Auth-Token"
)
