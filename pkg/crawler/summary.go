package crawler

import (
	"time"

	"igleads/pkg/models"
)

// StopReason records why a run ended
type StopReason string

const (
	StopFrontierExhausted StopReason = "frontier_exhausted"
	StopDepthLimit        StopReason = "depth_limit"
	StopProfileLimit      StopReason = "profile_limit"
	StopCancelled         StopReason = "cancelled"
)

// Summary holds the counters of one run. Emitted includes leads whose sink
// write failed; SinkFailures counts those separately.
type Summary struct {
	RunID           string                  `json:"run_id"`
	Seeds           []string                `json:"seeds"`
	Visited         int                     `json:"visited"`
	Emitted         int                     `json:"emitted"`
	FetchFailures   int                     `json:"fetch_failures"`
	ExpandFailures  int                     `json:"expand_failures"`
	SinkFailures    int                     `json:"sink_failures"`
	Irrelevant      int                     `json:"irrelevant"`
	MaxDepthReached int                     `json:"max_depth_reached"`
	StopReason      StopReason              `json:"stop_reason"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	Categories      map[models.Category]int `json:"categories"`
}

func newSummary(runID string, seeds []models.Handle, started time.Time) *Summary {
	return &Summary{
		RunID:      runID,
		Seeds:      handleStrings(seeds),
		StartedAt:  started,
		Categories: make(map[models.Category]int),
	}
}

// Duration returns how long the run took
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Fields flattens the summary for structured logging
func (s *Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"run_id":            s.RunID,
		"visited":           s.Visited,
		"emitted":           s.Emitted,
		"fetch_failures":    s.FetchFailures,
		"expand_failures":   s.ExpandFailures,
		"sink_failures":     s.SinkFailures,
		"irrelevant":        s.Irrelevant,
		"max_depth_reached": s.MaxDepthReached,
		"stop_reason":       string(s.StopReason),
		"duration":          s.Duration().String(),
	}
}
