package history

import (
	"github.com/Sumatoshi-tech/issuetrend/pkg/alg/stats"
	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
)

// DefaultSmoothing is the EMA factor used for smoothed issue counts.
const DefaultSmoothing = 0.3

// Summary condenses a trend series.
type Summary struct {
	Builds int      `json:"builds" yaml:"builds"`
	First  build.ID `json:"first,omitempty" yaml:"first,omitempty"`
	Last   build.ID `json:"last,omitempty" yaml:"last,omitempty"`

	LatestIssues   int     `json:"latest_issues" yaml:"latest_issues"`
	MeanIssues     float64 `json:"mean_issues" yaml:"mean_issues"`
	MedianIssues   float64 `json:"median_issues" yaml:"median_issues"`
	SmoothedIssues float64 `json:"smoothed_issues" yaml:"smoothed_issues"`
	// Slope is the least-squares change in issue count per build.
	Slope float64 `json:"slope" yaml:"slope"`

	TotalNew   int `json:"total_new" yaml:"total_new"`
	TotalFixed int `json:"total_fixed" yaml:"total_fixed"`

	BestHealth  *int `json:"best_health,omitempty" yaml:"best_health,omitempty"`
	WorstHealth *int `json:"worst_health,omitempty" yaml:"worst_health,omitempty"`
}

// Summarize computes a Summary over oldest-first points.
func Summarize(points []build.Point) Summary {
	s := Summary{Builds: len(points)}
	if len(points) == 0 {
		return s
	}

	s.First = points[0].BuildID
	s.Last = points[len(points)-1].BuildID
	s.LatestIssues = points[len(points)-1].Issues

	counts := make([]float64, len(points))

	var healths []int

	for idx, p := range points {
		counts[idx] = float64(p.Issues)
		s.TotalNew += p.New
		s.TotalFixed += p.Fixed

		if p.Health != nil {
			healths = append(healths, *p.Health)
		}
	}

	s.MeanIssues = stats.Mean(counts)
	s.MedianIssues = stats.Median(counts)
	s.Slope = stats.Slope(counts)

	smoothed := stats.Smooth(counts, DefaultSmoothing)
	s.SmoothedIssues = smoothed[len(smoothed)-1]

	if len(healths) > 0 {
		best, worst := stats.Max(healths), stats.Min(healths)
		s.BestHealth, s.WorstHealth = &best, &worst
	}

	return s
}
