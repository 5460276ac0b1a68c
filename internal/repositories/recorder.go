package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
)

// RunRecorder implements tasks.Recorder using SyncRunRepository.
//
// A sync opens a running row when it starts. When it ends the row is completed with its counters plus one issue row
// per unresolved file or failed add.
type RunRecorder struct {
	repo *SyncRunRepository
}

// NewRunRecorder creates a new RunRecorder with the given repository
func NewRunRecorder(repo *SyncRunRepository) *RunRecorder {
	return &RunRecorder{repo: repo}
}

// Start stores a running row and returns its id.
func (a *RunRecorder) Start(ctx context.Context, dryRun bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	run := models.NewSyncRun(dryRun)
	if err := a.repo.Create(run); err != nil {
		return "", fmt.Errorf("failed to record sync start: %w", err)
	}
	return run.ID(), nil
}

// Record completes the running row runID with result. Without a runID, e.g. when Start failed, a new row is created.
func (a *RunRecorder) Record(ctx context.Context, runID string, result *tasks.SyncResult, runErr error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	run := RunFromResult(result, runErr)
	if runID == "" {
		if err := a.repo.Create(run); err != nil {
			return "", fmt.Errorf("failed to record sync run: %w", err)
		}
		return run.ID(), nil
	}

	run.SetID(runID)
	if err := a.repo.Update(run); err != nil {
		return "", fmt.Errorf("failed to complete sync run %s: %w", shared.ShortID(runID), err)
	}
	return runID, nil
}

// RunFromResult converts an engine result into a [models.SyncRun] ready to persist.
func RunFromResult(result *tasks.SyncResult, runErr error) *models.SyncRun {
	now := time.Now().UTC()
	completed := result.CompletedAt
	if completed.IsZero() {
		completed = now
	}
	started := result.StartedAt
	if started.IsZero() {
		started = completed
	}

	run := models.RestoreSyncRun("", 0, now, now, started, &completed, nil)
	run.DryRun = result.DryRun
	run.Status = models.RunCompleted
	if runErr != nil {
		run.Status = models.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	totals := result.Totals()
	run.AlbumsTotal = totals.Albums
	run.AlbumsCreated = totals.Created
	run.FilesTotal = totals.Files
	run.AssetsAttached = totals.Attached
	run.Unresolved = totals.Unresolved
	run.Failed = totals.Failed

	for _, album := range result.Albums {
		for _, u := range album.Unresolved {
			issue := models.SyncIssue{Album: album.Name, File: u.File.Name, Kind: models.IssueUnresolved}
			if u.Err != nil {
				issue.Detail = u.Err.Error()
			}
			run.Issues = append(run.Issues, issue)
		}

		for _, f := range album.Failures {
			file := f.ID
			for _, m := range album.Matches {
				if m.Asset.ID == f.ID {
					file = m.File.Name
					break
				}
			}
			run.Issues = append(run.Issues, models.SyncIssue{
				Album:  album.Name,
				File:   file,
				Kind:   models.IssueFailed,
				Detail: fmt.Sprintf("asset %s: %s", f.ID, f.Error),
			})
		}
	}

	return run
}
