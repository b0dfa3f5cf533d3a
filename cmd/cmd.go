// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the scheduler until interrupted.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run discovery, silent upgrade and credits jobs on their schedules",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "run-on-start",
				Usage: "Run every job once at startup",
			},
		},
		Action: r.Serve,
	}
}

// syncCommand runs one discovery pass and syncs the results.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Discover spatial audio tracks and merge them into the database",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "storefront",
				Aliases: []string{"s"},
				Usage:   "Catalog storefront to crawl (defaults to catalog.storefront)",
			},
			&cli.BoolFlag{
				Name:  "no-regions",
				Usage: "Skip per-storefront availability checks",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide progress output",
			},
		},
		Action: r.Sync,
	}
}

// upgradeCommand re-checks Stereo tracks once.
func upgradeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "upgrade",
		Usage:  "Re-check Stereo tracks for a silent Spatial Audio or Dolby Atmos upgrade",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Upgrade,
	}
}

// creditsCommand scrapes one batch of credits.
func creditsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "credits",
		Usage: "Scrape engineer credits for tracks that have none yet",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "batch",
				Aliases: []string{"n"},
				Usage:   "Number of tracks to scrape (defaults to scheduler.credits_batch_size)",
			},
		},
		Action: r.Credits,
	}
}

// importCommand loads a legacy data.json export.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import tracks from a legacy data.json export",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags:  []cli.Flag{configFlag()},
		Action: r.Import,
	}
}

// exportCommand writes stored tracks to a file.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored tracks as csv, md, txt or json",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, md, txt or json",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
			&cli.StringFlag{
				Name:  "audio",
				Usage: "Only export tracks in this format (e.g. atmos, spatial, stereo)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tracks to export",
				Value: 10000,
			},
		},
		Action: r.Export,
	}
}

// statusCommand summarizes the library and recent job runs.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show track counts and recent job runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "days",
				Usage: "Window for the recently discovered count",
				Value: 30,
			},
			&cli.IntFlag{
				Name:  "runs",
				Usage: "Number of recent job runs to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}
