package upstream

import (
	"context"

	crerr "github.com/cockroachdb/errors"
)

// ErrEndpointDisabled is returned for feeds the deployment has no endpoint
// configured for, such as scorecards.
var ErrEndpointDisabled = crerr.New("upstream endpoint not configured")

// Provider is the raw match-data API. Implementations do no caching.
type Provider interface {
	FetchSeries(ctx context.Context, seriesID int) (SeriesSchedule, error)
	FetchMatchInfo(ctx context.Context, matchID int) (MatchInfo, error)
	FetchOvers(ctx context.Context, matchID int) (OversSnapshot, error)
	FetchScorecard(ctx context.Context, matchID int) (Scorecard, error)
}
