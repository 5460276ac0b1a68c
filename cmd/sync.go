package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corsac-s/immich-tools/internal/formatter"
	"github.com/corsac-s/immich-tools/internal/repositories"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
	"github.com/urfave/cli/v3"
)

// prepareSync validates the configuration, takes the run lock and attaches the history recorder when one is configured.
//
// The returned cleanup releases everything prepareSync acquired.
func (r *Runner) prepareSync(opts tasks.EngineOptions) (tasks.EngineOptions, func(), error) {
	config := r.cfg()
	if err := config.Validate(); err != nil {
		return opts, nil, err
	}

	lock := shared.NewRunLock(config.Sync.LockFile)
	if err := lock.Acquire(); err != nil {
		return opts, nil, err
	}
	r.logger.Debug("lock acquired", "path", lock.Path())
	cleanups := []func(){func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn("failed to release lock", "error", err)
		}
	}}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if opts.Recorder == nil {
		db, repo, err := r.openHistory()
		switch {
		case errors.Is(err, shared.ErrNotConfigured):
			r.logger.Debug("run history disabled")
		case err != nil:
			r.logger.Warn("run history unavailable, continuing without it", "error", err)
		default:
			cleanups = append(cleanups, func() { db.Close() })
			opts.Recorder = repositories.NewRunRecorder(repo)
		}
	}

	return opts, cleanup, nil
}

// Sync reproduces Nextcloud albums as Immich albums.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	opts, cleanup, err := r.prepareSync(tasks.EngineOptions{
		DryRun:  cmd.Bool("dry-run"),
		Albums:  cmd.StringSlice("album"),
		Workers: int(cmd.Int("workers")),
	})
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		result *tasks.SyncResult
		runErr error
	)
	if cmd.Bool("tui") {
		result, runErr = r.runSyncTUI(ctx, opts)
	} else {
		result, runErr = r.runSyncPlain(ctx, opts)
	}

	if result != nil {
		if path := cmd.String("report"); path != "" {
			if err := formatter.WriteReport(result, path); err != nil {
				r.logger.Error("failed to write report", "path", path, "error", err)
			} else {
				r.writePlain("Report written to %s\n", path)
			}
		}
	}

	return runErr
}

func (r *Runner) runSyncPlain(ctx context.Context, opts tasks.EngineOptions) (*tasks.SyncResult, error) {
	engine, err := r.newEngine(opts)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		r.writePlain("Dry run: no album is created and nothing is attached.\n\n")
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSource, tasks.FetchDest:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.MatchAlbum:
				r.writePlain("\n📁 %s\n", update.Message)
			case tasks.FetchFiles, tasks.AttachAssets:
				r.writePlain("   %s\n", update.Message)
			case tasks.SearchAssets:
				r.logger.Debug(update.Message, "album", update.Album)
			}
		}
	}()

	result, runErr := engine.Run(ctx, progressCh)
	close(progressCh)
	<-printed

	if result != nil {
		r.printSyncResult(result, runErr)
	}
	if runErr != nil {
		return result, fmt.Errorf("sync aborted: %w", runErr)
	}
	return result, nil
}

func (r *Runner) printSyncResult(result *tasks.SyncResult, runErr error) {
	title := "Sync Complete!"
	switch {
	case runErr != nil:
		title = "Sync Aborted"
	case result.DryRun:
		title = "Dry Run Complete!"
	}
	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writePlain("%s\n", formatter.SummaryTable(result))

	t := result.Totals()
	if t.Unresolved > 0 {
		r.writePlain("\nNo asset found for %d files:\n", t.Unresolved)
		for _, album := range result.Albums {
			for _, u := range album.Unresolved {
				r.writePlain("  - %s/%s\n", album.Name, u.File.Name)
			}
		}
	}

	if t.Failed > 0 {
		r.writePlain("\nFailed to attach %d assets:\n", t.Failed)
		for _, album := range result.Albums {
			for _, f := range album.Failures {
				r.writePlain("  - %s: %s (%s)\n", album.Name, f.ID, f.Error)
			}
		}
	}

	if result.RunID != "" {
		r.writePlain("\nRecorded as run %s\n", shared.ShortID(result.RunID))
	}
	r.writePlain("Duration: %s\n", result.Duration().Round(time.Millisecond))
}
