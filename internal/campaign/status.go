package campaign

import (
	"math"
	"time"
)

// State is the lifecycle of a tenant's tracked campaign
type State string

const (
	StateNone      State = "none"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
)

// Status tracks one user's current (or latest) campaign. Counters are only
// mutated by the dispatcher, the state additionally by Stop, always under
// the engine lock. Processed stays equal to Sent+Failed and never exceeds
// Total.
type Status struct {
	State      State
	Total      int
	Processed  int
	Sent       int
	Failed     int
	StartedAt  time.Time
	Delay      time.Duration
	HasMedia   bool
	Generation uint64
}

// Progress is the snapshot handed to callers, with derived fields filled in
type Progress struct {
	State      State   `json:"status"`
	Total      int     `json:"total"`
	Processed  int     `json:"processed"`
	Sent       int     `json:"sent"`
	Failed     int     `json:"failed"`
	HasMedia   bool    `json:"has_media"`
	Percentage float64 `json:"percentage"`
	ETA        int     `json:"eta"`
}

// progressAt derives the caller view from a status snapshot. Percentage is
// rounded to one decimal place. ETA extrapolates the observed send rate and
// stays zero unless the campaign is running and has processed something.
func (s Status) progressAt(now time.Time) Progress {
	p := Progress{
		State:     s.State,
		Total:     s.Total,
		Processed: s.Processed,
		Sent:      s.Sent,
		Failed:    s.Failed,
		HasMedia:  s.HasMedia,
	}

	if s.Total > 0 {
		p.Percentage = math.Round(float64(s.Processed)/float64(s.Total)*1000) / 10
	}

	if s.State == StateRunning && s.Processed > 0 {
		elapsed := now.Sub(s.StartedAt).Seconds()
		if elapsed > 0 {
			rate := float64(s.Processed) / elapsed
			p.ETA = int(math.Round(float64(s.Total-s.Processed) / rate))
		}
	}

	return p
}
