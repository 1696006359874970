package models

import "time"

// SyncReport summarizes one sync run.
type SyncReport struct {
	Universe        string        `json:"universe"`
	AsOf            string        `json:"as_of"`
	TotalInUniverse int           `json:"total_in_universe"`
	AlreadySynced   int           `json:"already_synced"`
	Missing         int           `json:"missing"`
	NewlyFetched    int           `json:"newly_fetched"`
	Failed          int           `json:"failed"`
	Flushes         int           `json:"flushes"`
	FlushErrors     int           `json:"flush_errors"`
	Duration        time.Duration `json:"duration_ns"`
}

// SyncProgress is emitted after every fetch attempt of a run.
type SyncProgress struct {
	Universe  string `json:"universe"`
	AsOf      string `json:"as_of"`
	Key       string `json:"ticker"`
	OK        bool   `json:"ok"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Done      bool   `json:"done"`
}

// Coverage tells how much of a universe is archived for a day.
type Coverage struct {
	Universe string   `json:"universe"`
	AsOf     string   `json:"as_of"`
	Total    int      `json:"total"`
	Synced   int      `json:"synced"`
	Missing  []string `json:"missing"`
}

// SyncRequest is the payload of queued and streamed sync triggers.
type SyncRequest struct {
	Universe string `json:"universe"`
	AsOf     string `json:"as_of,omitempty"`
}

// JobKey identifies the run a request asks for; equal keys are queued once.
func (r SyncRequest) JobKey() string { return r.Universe + "/" + r.AsOf }
