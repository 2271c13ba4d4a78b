package domain

import "time"

// Stream names
const (
	StreamRecovery = "recovery"
	StreamSleep    = "sleep"
	StreamWorkout  = "workout"
	StreamBody     = "body"
	StreamCycle    = "cycle"
)

// TimeWindow is the half-open interval [Start, End) requested from the provider
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// LookbackWindow returns the window of the given number of days ending at now
func LookbackWindow(now time.Time, days int) TimeWindow {
	return TimeWindow{
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}
}

// StreamResult is the outcome of fetching and saving one stream
type StreamResult struct {
	Stream   string `json:"stream"`
	Optional bool   `json:"optional"`
	Fetched  int    `json:"fetched"`
	Skipped  int    `json:"skipped"`
	Saved    int    `json:"saved"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the stream ended with an error
func (r StreamResult) Failed() bool {
	return r.Error != ""
}

// SyncReport aggregates all stream results of one sync run
type SyncReport struct {
	WindowStart time.Time               `json:"window_start"`
	WindowEnd   time.Time               `json:"window_end"`
	Streams     map[string]StreamResult `json:"streams"`
	TotalSaved  int                     `json:"total_saved"`
}

// NewSyncReport creates an empty report for window
func NewSyncReport(window TimeWindow) *SyncReport {
	return &SyncReport{
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Streams:     make(map[string]StreamResult),
	}
}

// Add records a stream result and updates the total
func (r *SyncReport) Add(res StreamResult) {
	r.Streams[res.Stream] = res
	r.TotalSaved += res.Saved
}

// Counts returns saved rows per stream
func (r *SyncReport) Counts() map[string]int {
	counts := make(map[string]int, len(r.Streams))
	for name, res := range r.Streams {
		counts[name] = res.Saved
	}
	return counts
}

// FailedStreams returns the names of failed streams, optionally only mandatory ones
func (r *SyncReport) FailedStreams(mandatoryOnly bool) []string {
	var failed []string
	for _, name := range []string{StreamRecovery, StreamSleep, StreamWorkout, StreamBody, StreamCycle} {
		res, ok := r.Streams[name]
		if !ok || !res.Failed() {
			continue
		}
		if mandatoryOnly && res.Optional {
			continue
		}
		failed = append(failed, name)
	}
	return failed
}
