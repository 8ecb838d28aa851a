package domain

import "time"

// SyncState is a stage of a single sync run.
type SyncState int

const (
	StateIdle SyncState = iota
	StateAuthenticating
	StateListing
	StateFetchingDecoding
	StateClassifying
	StateWriting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateAuthenticating:   "authenticating",
	StateListing:          "listing",
	StateFetchingDecoding: "fetching_decoding",
	StateClassifying:      "classifying",
	StateWriting:          "writing",
	StateDone:             "done",
	StateFailed:           "failed",
}

func (s SyncState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// SkipReason records why one message was left out of a run.
type SkipReason struct {
	ProviderID string
	Stage      string
	Reason     string
}

// Summary is the outcome of one sync run.
type Summary struct {
	AccountID  string
	State      SyncState
	Listed     int
	Written    int
	Skipped    int
	Skips      []SkipReason
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Skip records a skipped message and the error that caused it.
func (s *Summary) Skip(id, stage string, err error) {
	s.Skipped++
	s.Skips = append(s.Skips, SkipReason{ProviderID: id, Stage: stage, Reason: err.Error()})
}
