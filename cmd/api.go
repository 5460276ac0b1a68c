package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct authenticated GET request against Immich
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	client, err := r.rawClient()
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := client.Raw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
