package upstream

import "time"

// InningsScore is a summary line as listed in a series schedule.
type InningsScore struct {
	Runs    int     `json:"runs"`
	Wickets int     `json:"wickets"`
	Overs   float64 `json:"overs"`
}

type SeriesMatch struct {
	MatchID    int           `json:"match_id"`
	SeriesID   int           `json:"series_id"`
	MatchDesc  string        `json:"match_desc"`
	Format     string        `json:"format"`
	Team1      string        `json:"team1"`
	Team2      string        `json:"team2"`
	Venue      string        `json:"venue"`
	City       string        `json:"city"`
	StartTime  time.Time     `json:"start_time"`
	Status     string        `json:"status"`
	State      string        `json:"state"`
	Team1Score *InningsScore `json:"team1_score,omitempty"`
	Team2Score *InningsScore `json:"team2_score,omitempty"`
}

type SeriesSchedule struct {
	SeriesID int           `json:"series_id"`
	Name     string        `json:"name"`
	Matches  []SeriesMatch `json:"matches"`
}

type Player struct {
	Name       string `json:"name"`
	Substitute bool   `json:"substitute"`
}

type TeamSheet struct {
	Name    string   `json:"name"`
	Players []Player `json:"players"`
}

type TossResult struct {
	Winner   string `json:"winner"`
	Decision string `json:"decision"`
}

type MatchInfo struct {
	MatchID   int         `json:"match_id"`
	SeriesID  int         `json:"series_id"`
	Format    string      `json:"format"`
	Status    string      `json:"status"`
	State     string      `json:"state"`
	Venue     string      `json:"venue"`
	StartTime time.Time   `json:"start_time"`
	Team1     TeamSheet   `json:"team1"`
	Team2     TeamSheet   `json:"team2"`
	Toss      *TossResult `json:"toss,omitempty"`
}

// InningsLine is one innings from the overs or scorecard feeds.
type InningsLine struct {
	InningsID   int     `json:"innings_id"`
	BattingTeam string  `json:"batting_team"`
	Runs        int     `json:"runs"`
	Wickets     int     `json:"wickets"`
	Overs       float64 `json:"overs"`
}

type OversSnapshot struct {
	MatchID int           `json:"match_id"`
	Status  string        `json:"status"`
	Innings []InningsLine `json:"innings"`
	// PowerplayRuns maps innings id to runs scored in the mandatory powerplay.
	PowerplayRuns map[int]int `json:"powerplay_runs,omitempty"`
}

type Scorecard struct {
	MatchID int           `json:"match_id"`
	Status  string        `json:"status"`
	Innings []InningsLine `json:"innings"`
}
