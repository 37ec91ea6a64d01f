package models

import (
	"time"
)

// SyncMode describes how a body job scans its lists
type SyncMode string

const (
	// SyncModeFull scans every page of every list, upserting unconditionally
	SyncModeFull SyncMode = "full"
	// SyncModeIncrementalServer relies on upstream modified_since filtering
	SyncModeIncrementalServer SyncMode = "incremental-server"
	// SyncModeIncrementalClient filters client-side with early-stop
	SyncModeIncrementalClient SyncMode = "incremental-client"
)

// RequestStats is a snapshot of the fetcher's counters
type RequestStats struct {
	Requests  int64
	CacheHits int64
	Retries   int64
	Failures  int64
	BytesRead int64
}

// PipelineResult summarizes one (body, kind) pipeline run. Synced counts new
// plus changed entities; tombstones are reported separately.
type PipelineResult struct {
	Kind    EntityKind
	New     int
	Changed int
	Deleted int
	Skipped int
	Pages   int
	Errors  []string
}

// Synced returns the number of entities counted as synced (new + changed)
func (r PipelineResult) Synced() int {
	return r.New + r.Changed
}

// BodySyncResult aggregates the pipeline results of one body job
type BodySyncResult struct {
	BodyExternalID string
	BodyName       string
	Mode           SyncMode
	Counts         map[EntityKind]int
	Tombstones     int
	Skipped        int
	Errors         []string
	Duration       time.Duration
}

// SourceSyncResult is the source-level job record. Success is true iff no
// fatal error occurred and every per-body error list is empty; counts are
// reported either way.
type SourceSyncResult struct {
	SourceURL  string
	SourceName string
	Success    bool
	Full       bool
	Counts     map[EntityKind]int
	Tombstones int
	Skipped    int
	Errors     []string
	Bodies     []BodySyncResult
	Duration   time.Duration
	HTTPStats  RequestStats
}

// TotalSynced sums the per-kind synced counts
func (r SourceSyncResult) TotalSynced() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}
