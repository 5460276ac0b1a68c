package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IssueKind classifies a [SyncIssue].
type IssueKind string

const (
	IssueUnresolved IssueKind = "unresolved" // No asset matched in either search window
	IssueFailed     IssueKind = "failed"     // Immich rejected the asset for a reason other than "duplicate"
)

// SyncIssue is one non-fatal problem recorded during a run.
type SyncIssue struct {
	Album  string
	File   string
	Kind   IssueKind
	Detail string
}

// SyncRun is the persisted summary of one sync invocation.
type SyncRun struct {
	id          string
	sequence    int
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
	startedAt   time.Time
	completedAt *time.Time

	DryRun         bool
	Status         RunStatus
	AlbumsTotal    int
	AlbumsCreated  int
	FilesTotal     int
	AssetsAttached int
	Unresolved     int
	Failed         int
	ErrorMessage   string
	Issues         []SyncIssue
}

// NewSyncRun creates a running [SyncRun] stamped with the current time.
func NewSyncRun(dryRun bool) *SyncRun {
	now := time.Now().UTC()
	return &SyncRun{
		createdAt: now,
		updatedAt: now,
		startedAt: now,
		DryRun:    dryRun,
		Status:    RunRunning,
	}
}

// RestoreSyncRun rebuilds a [SyncRun] from stored columns.
func RestoreSyncRun(id string, sequence int, createdAt, updatedAt, startedAt time.Time, completedAt, deletedAt *time.Time) *SyncRun {
	return &SyncRun{
		id:          id,
		sequence:    sequence,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		startedAt:   startedAt,
		completedAt: completedAt,
		deletedAt:   deletedAt,
	}
}

func (r *SyncRun) ID() string                { return r.id }
func (r *SyncRun) SetID(id string)           { r.id = id }
func (r *SyncRun) Sequence() int             { return r.sequence }
func (r *SyncRun) SetSequence(seq int)       { r.sequence = seq }
func (r *SyncRun) CreatedAt() time.Time      { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time      { return r.updatedAt }
func (r *SyncRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *SyncRun) StartedAt() time.Time      { return r.startedAt }
func (r *SyncRun) CompletedAt() *time.Time   { return r.completedAt }
func (r *SyncRun) DeletedAt() *time.Time     { return r.deletedAt }
func (r *SyncRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Complete stamps the run as finished. A non-nil err marks it failed.
func (r *SyncRun) Complete(err error) {
	now := time.Now().UTC()
	r.completedAt = &now
	r.updatedAt = now
	if err != nil {
		r.Status = RunFailed
		r.ErrorMessage = err.Error()
		return
	}
	r.Status = RunCompleted
}

// Duration returns how long the run took, or zero while it is still running.
func (r *SyncRun) Duration() time.Duration {
	if r.completedAt == nil {
		return 0
	}
	return r.completedAt.Sub(r.startedAt)
}

// Validate checks counters and status.
func (r *SyncRun) Validate() error {
	switch r.Status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.Status)
	}

	for name, v := range map[string]int{
		"albums_total":     r.AlbumsTotal,
		"albums_created":   r.AlbumsCreated,
		"files_total":      r.FilesTotal,
		"assets_attached":  r.AssetsAttached,
		"unresolved_count": r.Unresolved,
		"failed_count":     r.Failed,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if r.startedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}

	for i, issue := range r.Issues {
		if issue.Kind != IssueUnresolved && issue.Kind != IssueFailed {
			return fmt.Errorf("issue %d: invalid kind %q", i, issue.Kind)
		}
	}
	return nil
}
