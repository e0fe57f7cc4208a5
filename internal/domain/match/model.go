package match

import (
	"math"
	"time"
)

type Format string

const (
	FormatT20  Format = "T20"
	FormatODI  Format = "ODI"
	FormatTest Format = "TEST"
)

// MaxOvers returns the per-innings over limit, or 0 when the format has none.
func (f Format) MaxOvers() int {
	switch f {
	case FormatT20:
		return 20
	case FormatODI:
		return 50
	default:
		return 0
	}
}

type Toss struct {
	Winner   string `json:"winner"`
	Decision string `json:"decision"`
}

// InningsState is one batting innings as last reported upstream. Overs use
// cricket notation: 12.3 means twelve overs and three balls.
type InningsState struct {
	InningsID      int     `json:"innings_id"`
	BattingTeam    string  `json:"batting_team"`
	Runs           int     `json:"runs"`
	Wickets        int     `json:"wickets"`
	OversCompleted float64 `json:"overs_completed"`
	Target         *int    `json:"target,omitempty"`
}

// Balls converts the overs figure to legal deliveries bowled.
func (i InningsState) Balls() int {
	return OversToBalls(i.OversCompleted)
}

func (i InningsState) Started() bool {
	return i.OversCompleted > 0 || i.Runs > 0 || i.Wickets > 0
}

type PowerplayScore struct {
	Runs      int  `json:"runs"`
	Wickets   int  `json:"wickets"`
	Estimated bool `json:"estimated"`
}

// MatchContext is the request-scoped snapshot the classifier works from.
type MatchContext struct {
	MatchID    int                       `json:"match_id"`
	SeriesID   int                       `json:"series_id"`
	Team1      string                    `json:"team1"`
	Team2      string                    `json:"team2"`
	Venue      string                    `json:"venue"`
	StartTime  time.Time                 `json:"start_time"`
	Format     Format                    `json:"format"`
	Toss       *Toss                     `json:"toss,omitempty"`
	Innings    []InningsState            `json:"innings"`
	StatusText string                    `json:"status_text"`
	Powerplay  map[string]PowerplayScore `json:"powerplay,omitempty"`
	PlayingXI  map[string][]string       `json:"playing_xi,omitempty"`
}

// Teams returns both sides in listing order.
func (m MatchContext) Teams() [2]string {
	return [2]string{m.Team1, m.Team2}
}

// Opponent returns the side that is not team, or "" when team is unknown.
func (m MatchContext) Opponent(team string) string {
	switch team {
	case m.Team1:
		return m.Team2
	case m.Team2:
		return m.Team1
	default:
		return ""
	}
}

func OversToBalls(overs float64) int {
	if overs <= 0 {
		return 0
	}
	whole := math.Floor(overs)
	balls := int(math.Round((overs - whole) * 10))
	return int(whole)*6 + balls
}

// BallsToOvers is the decimal over count used for run-rate arithmetic.
func BallsToOvers(balls int) float64 {
	return float64(balls) / 6
}
