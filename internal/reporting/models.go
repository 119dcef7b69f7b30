package reporting

import "time"

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type SummaryRequest struct {
	Range TimeRange
}

// QuerySummary aggregates query volume and outcomes over a range.
type QuerySummary struct {
	Total        int `json:"total"`
	InProgress   int `json:"in_progress"`
	PendingReply int `json:"pending_reply"`
	Resolved     int `json:"resolved"`
	Transferred  int `json:"transferred"`

	// ResolutionRate is resolved over total; 0 when the range is empty.
	ResolutionRate float64 `json:"resolution_rate"`
}

// SessionStats is the raw call aggregate a repository produces.
type SessionStats struct {
	Total    int
	Answered int // sessions that reached STARTED
	Active   int // still CREATED or STARTED
	Audio    int
	Video    int

	// TotalDurationSeconds sums ended sessions' started->ended spans.
	TotalDurationSeconds int
}

// CallSummary is the client-facing call aggregate over a range.
type CallSummary struct {
	TotalSessions          int     `json:"total_sessions"`
	AnsweredSessions       int     `json:"answered_sessions"`
	ActiveSessions         int     `json:"active_sessions"`
	AudioSessions          int     `json:"audio_sessions"`
	VideoSessions          int     `json:"video_sessions"`
	TotalDurationSeconds   int     `json:"total_duration_seconds"`
	AverageDurationSeconds int     `json:"average_duration_seconds"`
	AnswerRate             float64 `json:"answer_rate"`
}
