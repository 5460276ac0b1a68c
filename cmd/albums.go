package main

import (
	"context"
	"fmt"
	"time"

	"github.com/corsac-s/immich-tools/internal/formatter"
	"github.com/corsac-s/immich-tools/internal/models"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/urfave/cli/v3"
)

// AlbumsImmich lists albums on the Immich server.
func (r *Runner) AlbumsImmich(ctx context.Context, cmd *cli.Command) error {
	dest, err := r.destination()
	if err != nil {
		return err
	}

	albums, err := dest.ListAlbums(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("listed destination albums", "count", len(albums))

	if cmd.Bool("json") {
		return r.writeJSON(albums, true)
	}

	r.writePlain("%s\n", formatter.DestinationAlbumsTable(albums))
	r.writePlain("%d albums\n", len(albums))
	return nil
}

// AlbumsShow prints one Immich album and its asset ids.
func (r *Runner) AlbumsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	dest, err := r.destination()
	if err != nil {
		return err
	}

	album, err := dest.GetAlbum(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(album, true)
	}

	r.writePlainHeader(album.Name)
	r.writePlain("ID: %s\n", album.ID)
	r.writePlain("Assets: %d\n", album.AssetCount)
	for _, assetID := range album.AssetIDs {
		r.writePlain("  %s\n", assetID)
	}
	return nil
}

// AlbumsNextcloud lists albums on the Nextcloud share.
func (r *Runner) AlbumsNextcloud(ctx context.Context, cmd *cli.Command) error {
	source, err := r.sourceService()
	if err != nil {
		return err
	}

	albums, err := source.ListAlbums(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("listed source albums", "count", len(albums))

	if cmd.Bool("json") {
		return r.writeJSON(albums, true)
	}

	r.writePlain("%s\n", formatter.SourceAlbumsTable(albums))
	r.writePlain("%d albums\n", len(albums))
	return nil
}

// AlbumsFiles lists the files of one Nextcloud album by name.
func (r *Runner) AlbumsFiles(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("album")
	if name == "" {
		return fmt.Errorf("%w: album name", shared.ErrMissingArgument)
	}

	source, err := r.sourceService()
	if err != nil {
		return err
	}

	albums, err := source.ListAlbums(ctx)
	if err != nil {
		return err
	}

	var album *models.SourceAlbum
	for i := range albums {
		if albums[i].Name == name {
			album = &albums[i]
			break
		}
	}
	if album == nil {
		return fmt.Errorf("%w: %q on %s", shared.ErrAlbumNotFound, name, source.Name())
	}

	files, err := source.ListFiles(ctx, *album)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(files, true)
	}

	r.writePlain("%s\n", formatter.SourceFilesTable(files, time.Now()))
	r.writePlain("%d files in %s\n", len(files), album.Name)
	return nil
}
