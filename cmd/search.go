package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corsac-s/immich-tools/internal/formatter"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
	"github.com/urfave/cli/v3"
)

// searchTimeLayouts are the accepted --time formats, tried in order.
var searchTimeLayouts = []string{time.RFC3339, time.RFC1123, "2006-01-02 15:04:05"}

func parseSearchTime(value string) (time.Time, error) {
	for _, layout := range searchTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q (use RFC 3339, e.g. 2023-07-01T10:00:00Z)", shared.ErrInvalidArgument, value)
}

// Search runs the asset resolver for a single original filename without touching any album.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.String("name"))
	if name == "" {
		return fmt.Errorf("%w: --name", shared.ErrMissingArgument)
	}
	taken, err := parseSearchTime(cmd.String("time"))
	if err != nil {
		return err
	}

	// Stored names carry an id prefix; the resolver strips it again.
	file := models.SourceFile{Name: "0-" + name, Modified: taken}

	dest, err := r.destination()
	if err != nil {
		return err
	}
	engine := tasks.NewAlbumEngine(nil, dest, r.engineOptions(tasks.EngineOptions{DryRun: true}))

	match, err := engine.ResolveAsset(ctx, "search", file)
	if errors.Is(err, shared.ErrAssetNotFound) {
		r.writePlain("✗ No asset found for %s around %s\n", name, taken.Format(time.RFC3339))
		return nil
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Matched in the %s window\n", match.Phase)
	r.writePlain("%s\n", formatter.SearchTable([]models.DestinationAsset{match.Asset}))
	return nil
}
