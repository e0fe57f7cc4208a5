package prior

import (
	"fmt"
	"math"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/cricket-predictor/internal/domain/match"
)

// ErrPriorUnavailable means no tier qualified and no league default exists
// for the metric. It affects that metric only.
var ErrPriorUnavailable = crerr.New("prior unavailable")

type Config struct {
	MinVenueSamples  int
	MinSeriesSamples int
	// Floors are keyed by metric family.
	Floors map[Metric]float64
	// League defaults are keyed by metric family.
	League map[Metric]Stat
}

func DefaultConfig() Config {
	return Config{
		MinVenueSamples:  5,
		MinSeriesSamples: 3,
		Floors: map[Metric]float64{
			MetricInningsRuns:    12,
			MetricInningsWickets: 2,
			MetricPowerplayRatio: 0.05,
			MetricChaseSuccess:   0.1,
		},
		League: map[Metric]Stat{
			MetricInningsRuns:    {Avg: 160, StdDev: 25},
			MetricInningsWickets: {Avg: 7, StdDev: 2.5},
			MetricPowerplayRatio: {Avg: 0.28, StdDev: 0.05},
		},
	}
}

// Resolver walks venue, then series, then the league default. It does no I/O.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	defaults := DefaultConfig()
	if cfg.MinVenueSamples < 1 {
		cfg.MinVenueSamples = defaults.MinVenueSamples
	}
	if cfg.MinSeriesSamples < 1 {
		cfg.MinSeriesSamples = defaults.MinSeriesSamples
	}
	if cfg.Floors == nil {
		cfg.Floors = defaults.Floors
	}
	if cfg.League == nil {
		cfg.League = map[Metric]Stat{}
	}
	return &Resolver{cfg: cfg}
}

func (r *Resolver) Config() Config {
	return r.cfg
}

func (r *Resolver) Resolve(tables Tables, venueID string, seriesID int, metric Metric) (Bundle, error) {
	if stat, ok := lookup(tables.Venue[venueID], metric); ok && stat.SampleSize >= r.cfg.MinVenueSamples {
		return r.bundle(metric, stat, TierVenue,
			fmt.Sprintf("venue %q has %d samples", venueID, stat.SampleSize)), nil
	}
	if stat, ok := lookup(tables.Series[seriesID], metric); ok && stat.SampleSize >= r.cfg.MinSeriesSamples {
		return r.bundle(metric, stat, TierSeries,
			fmt.Sprintf("venue %q below %d samples; series %d has %d", venueID, r.cfg.MinVenueSamples, seriesID, stat.SampleSize)), nil
	}

	league, ok := r.cfg.League[metric.Family()]
	if !ok {
		return Bundle{}, crerr.Wrapf(ErrPriorUnavailable, "metric=%s venue=%q series=%d", metric, venueID, seriesID)
	}
	league.SampleSize = 0
	return r.bundle(metric, league, TierLeague, "no venue or series aggregate met the sample minimum"), nil
}

func lookup(agg Aggregate, metric Metric) (Stat, bool) {
	if agg == nil {
		return Stat{}, false
	}
	stat, ok := agg[metric]
	if !ok || math.IsNaN(stat.Avg) || math.IsInf(stat.Avg, 0) {
		return Stat{}, false
	}
	return stat, true
}

func (r *Resolver) bundle(metric Metric, stat Stat, tier Tier, reason string) Bundle {
	b := Bundle{
		Metric:     metric,
		Avg:        stat.Avg,
		StdDev:     stat.StdDev,
		SampleSize: stat.SampleSize,
		SourceTier: tier,
		Reason:     reason,
	}
	floor := r.cfg.Floors[metric.Family()]
	if math.IsNaN(b.StdDev) || b.StdDev < floor {
		b.StdDev = floor
		b.FloorApplied = true
	}
	return b
}

// Resolution pairs a metric with either its bundle or the reason it failed.
type Resolution struct {
	Metric Metric
	Bundle Bundle
	Err    error
}

// ResolveAll resolves each metric independently; one failure does not
// affect the others.
func (r *Resolver) ResolveAll(tables Tables, venueID string, seriesID int, metrics []Metric) []Resolution {
	out := make([]Resolution, 0, len(metrics))
	for _, metric := range metrics {
		bundle, err := r.Resolve(tables, venueID, seriesID, metric)
		out = append(out, Resolution{Metric: metric, Bundle: bundle, Err: err})
	}
	return out
}

// MetricsForStage lists the priors a stage consumes. target is the score
// the chasing side must reach, actual or projected; 0 leaves the chase
// prior out. Finished matches and super overs consume none.
func MetricsForStage(stage match.Stage, target int) []Metric {
	switch stage {
	case match.StageCompleted, match.StageSuperOver:
		return nil
	}
	metrics := []Metric{MetricInningsRuns, MetricInningsWickets, MetricPowerplayRatio}
	if target > 0 {
		metrics = append(metrics, ChaseMetric(target))
	}
	return metrics
}
