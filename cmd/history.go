package main

import (
	"context"
	"fmt"
	"time"

	"github.com/corsac-s/immich-tools/internal/formatter"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repo.List(map[string]any{
		"limit":  int(cmd.Int("limit")),
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded yet.\n")
		return nil
	}

	r.writePlain("%s\n", formatter.HistoryTable(runs, time.Now()))
	return nil
}

// HistoryShow prints one run, looked up by id or unique id prefix, with its issues.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repo.FindByPrefix(id)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d (%s)", run.Sequence(), run.ID()))
	r.writePlain("Status: %s\n", run.Status)
	if run.DryRun {
		r.writePlain("Dry run: yes\n")
	}
	r.writePlain("Started: %s\n", run.StartedAt().Local().Format(time.DateTime))
	r.writePlain("Duration: %s\n", run.Duration().Round(time.Second))
	r.writePlain("Albums: %d (%d created)\n", run.AlbumsTotal, run.AlbumsCreated)
	r.writePlain("Files: %d, attached: %d, unresolved: %d, failed: %d\n", run.FilesTotal, run.AssetsAttached, run.Unresolved, run.Failed)
	if run.ErrorMessage != "" {
		r.writePlain("Error: %s\n", run.ErrorMessage)
	}

	if len(run.Issues) > 0 {
		r.writePlain("\n%s\n", formatter.IssuesTable(run.Issues))
	}
	return nil
}

// HistoryDelete soft-deletes one run, looked up by id or unique id prefix.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repo.FindByPrefix(id)
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID()); err != nil {
		return err
	}

	r.logger.Debug("run deleted", "id", run.ID())
	r.writePlain("✓ Deleted run #%d (%s)\n", run.Sequence(), shared.ShortID(run.ID()))
	return nil
}
