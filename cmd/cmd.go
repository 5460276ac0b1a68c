// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// syncCommand runs the album sync
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reproduce Nextcloud albums as Immich albums",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Search only; create no album and attach nothing",
			},
			&cli.StringSliceFlag{
				Name:    "album",
				Aliases: []string{"a"},
				Usage:   "Only sync this source album (repeatable)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent asset searches per album (default from config)",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"o"},
				Usage:   "Write a report file (.json, .csv, .md or .txt)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view",
			},
		},
		Action: r.Sync,
	}
}

// albumsCommand lists albums on either side
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "albums",
		Usage: "Inspect albums on Immich and Nextcloud",
		Commands: []*cli.Command{
			{
				Name:  "immich",
				Usage: "List Immich albums",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AlbumsImmich,
			},
			{
				Name:  "show",
				Usage: "Show one Immich album",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AlbumsShow,
			},
			{
				Name:    "nextcloud",
				Aliases: []string{"nc"},
				Usage:   "List Nextcloud albums",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AlbumsNextcloud,
			},
			{
				Name:  "files",
				Usage: "List the files of one Nextcloud album",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "album",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AlbumsFiles,
			},
		},
	}
}

// searchCommand runs the asset resolver for a single file
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Resolve one file to an Immich asset using the two search windows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "Original capture filename, e.g. IMG_0001.JPG",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "time",
				Aliases:  []string{"t"},
				Usage:    "Capture time (RFC 3339 or RFC 1123)",
				Required: true,
			},
		},
		Action: r.Search,
	}
}

// apiCommand handles direct Immich API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct Immich API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Authenticated GET against Immich, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// historyCommand reads past runs from the history database
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List past runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of runs to show",
						Value:   20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show runs with this status (running, completed, failed)",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run and its issues",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove one run from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive album selection.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Pick Nextcloud albums and sync them interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Search only; create no album and attach nothing",
			},
		},
		Action: r.TUI,
	}
}
