package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
	"github.com/corsac-s/immich-tools/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/immich-tools-tui.log"

// engineFactory returns a [ui.EngineFactory] sharing opts across runs, with the album filter chosen in the UI.
func (r *Runner) engineFactory(opts tasks.EngineOptions) (ui.EngineFactory, error) {
	source, err := r.sourceService()
	if err != nil {
		return nil, err
	}
	dest, err := r.destination()
	if err != nil {
		return nil, err
	}

	return func(albums []string) tasks.SyncEngine {
		runOpts := r.engineOptions(opts)
		runOpts.Albums = albums
		return tasks.NewAlbumEngine(source, dest, runOpts)
	}, nil
}

// useFileLogger redirects logs to a file to avoid interfering with TUI rendering
func (r *Runner) useFileLogger() error {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

func (r *Runner) runModel(model *ui.Model) (*tasks.SyncResult, error) {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	return model.Result(), model.Err()
}

// runSyncTUI runs one sync behind the progress view and returns its result once the view is closed.
func (r *Runner) runSyncTUI(ctx context.Context, opts tasks.EngineOptions) (*tasks.SyncResult, error) {
	if err := r.useFileLogger(); err != nil {
		return nil, err
	}
	opts.Logger = r.logger

	factory, err := r.engineFactory(opts)
	if err != nil {
		return nil, err
	}

	result, err := r.runModel(ui.NewSyncModel(ctx, r.source, factory, opts.Albums))
	if result != nil {
		r.printSyncResult(result, err)
	}
	return result, err
}

// TUI launches the interactive terminal UI for picking and syncing albums.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, cleanup, err := r.prepareSync(tasks.EngineOptions{DryRun: cmd.Bool("dry-run")})
	if err != nil {
		return err
	}
	defer cleanup()

	if err := r.useFileLogger(); err != nil {
		return err
	}
	opts.Logger = r.logger

	factory, err := r.engineFactory(opts)
	if err != nil {
		return err
	}

	_, err = r.runModel(ui.NewModel(ctx, r.source, factory))
	return err
}
