package cricbuzz

import (
	"bytes"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
)

// flexInt accepts numbers and numeric strings; the API sends both for ids
// and millisecond timestamps.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := sonic.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}

	var n float64
	if err := sonic.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type seriesEnvelope struct {
	SeriesName   string          `json:"seriesName"`
	MatchDetails []seriesDayItem `json:"matchDetails"`
}

type seriesDayItem struct {
	MatchDetailsMap *struct {
		Key   string            `json:"key"`
		Match []seriesMatchItem `json:"match"`
	} `json:"matchDetailsMap"`
}

type seriesMatchItem struct {
	MatchInfo  seriesMatchInfo `json:"matchInfo"`
	MatchScore struct {
		Team1Score teamScore `json:"team1Score"`
		Team2Score teamScore `json:"team2Score"`
	} `json:"matchScore"`
}

type seriesMatchInfo struct {
	MatchID     flexInt `json:"matchId"`
	SeriesID    flexInt `json:"seriesId"`
	SeriesName  string  `json:"seriesName"`
	MatchDesc   string  `json:"matchDesc"`
	MatchFormat string  `json:"matchFormat"`
	StartDate   flexInt `json:"startDate"`
	State       string  `json:"state"`
	Status      string  `json:"status"`
	Team1       struct {
		TeamName string `json:"teamName"`
	} `json:"team1"`
	Team2 struct {
		TeamName string `json:"teamName"`
	} `json:"team2"`
	VenueInfo struct {
		Ground string `json:"ground"`
		City   string `json:"city"`
	} `json:"venueInfo"`
}

type teamScore struct {
	Inngs1 *struct {
		Runs    int     `json:"runs"`
		Wickets int     `json:"wickets"`
		Overs   float64 `json:"overs"`
	} `json:"inngs1"`
}

type matchInfoEnvelope struct {
	MatchInfo struct {
		MatchID             flexInt `json:"matchId"`
		MatchFormat         string  `json:"matchFormat"`
		State               string  `json:"state"`
		Status              string  `json:"status"`
		MatchStartTimestamp flexInt `json:"matchStartTimestamp"`
		TossResults         *struct {
			TossWinnerName string `json:"tossWinnerName"`
			Decision       string `json:"decision"`
		} `json:"tossResults"`
		Team1 matchTeam `json:"team1"`
		Team2 matchTeam `json:"team2"`
		Venue struct {
			Name string `json:"name"`
		} `json:"venue"`
		Series struct {
			ID flexInt `json:"id"`
		} `json:"series"`
	} `json:"matchInfo"`
}

type matchTeam struct {
	Name          string `json:"name"`
	PlayerDetails []struct {
		FullName   string `json:"fullName"`
		Substitute *bool  `json:"substitute"`
	} `json:"playerDetails"`
}

type inningsScoreItem struct {
	InningsID      flexInt  `json:"inningsId"`
	InningsIDLower flexInt  `json:"inningsid"`
	BatTeamName    string   `json:"batTeamName"`
	BatTeamLower   string   `json:"batteamname"`
	Score          *int     `json:"score"`
	Wickets        *int     `json:"wickets"`
	Overs          *float64 `json:"overs"`
}

type oversEnvelope struct {
	Status            string `json:"status"`
	MatchScoreDetails struct {
		InningsScoreList []inningsScoreItem `json:"inningsScoreList"`
		CustomStatus     string             `json:"customStatus"`
	} `json:"matchScoreDetails"`
	PPData map[string]struct {
		RunsScored int `json:"runsScored"`
	} `json:"ppData"`
}

type scorecardEnvelope struct {
	Status    string             `json:"status"`
	Scorecard []inningsScoreItem `json:"scorecard"`
}
