package prior

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierVenue  Tier = "venue"
	TierSeries Tier = "series"
	TierLeague Tier = "league"
)

type Metric string

const (
	MetricInningsRuns    Metric = "innings_runs"
	MetricInningsWickets Metric = "innings_wickets"
	MetricPowerplayRatio Metric = "powerplay_ratio"
	MetricChaseSuccess   Metric = "chase_success"

	chasePrefix = string(MetricChaseSuccess) + ":"
)

// TargetBand groups chase targets; High of 0 means unbounded.
type TargetBand struct {
	Low   int
	High  int
	Label string
}

var TargetBands = []TargetBand{
	{Low: 0, High: 140, Label: "0-140"},
	{Low: 141, High: 160, Label: "141-160"},
	{Low: 161, High: 180, Label: "161-180"},
	{Low: 181, High: 0, Label: "181+"},
}

func BandForTarget(target int) TargetBand {
	for _, band := range TargetBands {
		if target >= band.Low && (band.High == 0 || target <= band.High) {
			return band
		}
	}
	return TargetBands[len(TargetBands)-1]
}

// ChaseMetric is the chase success rate for the band containing target.
func ChaseMetric(target int) Metric {
	return Metric(chasePrefix + BandForTarget(target).Label)
}

func ChaseMetrics() []Metric {
	out := make([]Metric, 0, len(TargetBands))
	for _, band := range TargetBands {
		out = append(out, Metric(chasePrefix+band.Label))
	}
	return out
}

// Family strips the band suffix so chase metrics share one floor and one
// league default.
func (m Metric) Family() Metric {
	if strings.HasPrefix(string(m), chasePrefix) {
		return MetricChaseSuccess
	}
	return m
}

func (m Metric) IsChase() bool {
	return strings.HasPrefix(string(m), chasePrefix)
}

func ParseMetric(raw string) (Metric, error) {
	m := Metric(strings.TrimSpace(raw))
	switch m {
	case MetricInningsRuns, MetricInningsWickets, MetricPowerplayRatio:
		return m, nil
	}
	for _, chase := range ChaseMetrics() {
		if m == chase {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", raw)
}

// Stat is one aggregate cell. SampleSize counts matches, or chase attempts
// for chase metrics.
type Stat struct {
	Avg        float64 `json:"avg"`
	StdDev     float64 `json:"stddev"`
	SampleSize int     `json:"sample_size"`
}

type Aggregate map[Metric]Stat

// Tables are the pre-aggregated statistics handed to the resolver.
type Tables struct {
	Venue  map[string]Aggregate `json:"venue"`
	Series map[int]Aggregate    `json:"series"`
}

// Bundle is an immutable resolution result with its provenance.
type Bundle struct {
	Metric       Metric  `json:"metric"`
	Avg          float64 `json:"avg"`
	StdDev       float64 `json:"stddev"`
	SampleSize   int     `json:"sample_size"`
	SourceTier   Tier    `json:"source_tier"`
	FloorApplied bool    `json:"floor_applied"`
	Reason       string  `json:"reason"`
}
