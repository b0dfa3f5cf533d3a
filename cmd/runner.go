package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/repositories"
	"github.com/desertthunder/selecta/internal/services"
	"github.com/desertthunder/selecta/internal/shared"
	"github.com/desertthunder/selecta/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Tokens overrides the credential provider built from config.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Tokens     oauth2.TokenSource
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, syncCommand, upgradeCommand, creditsCommand, importCommand, exportCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reloads the configuration when --config was given explicitly.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	if !cmd.IsSet("config") {
		return nil
	}
	config, err := shared.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	r.config = config
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return nil
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// engine bundles the components a command works with.
type engine struct {
	db         *sql.DB
	catalog    *services.CatalogClient
	aggregator *tasks.Aggregator
	sync       *tasks.SyncEngine
	credits    *tasks.CreditsJob
	runs       *repositories.JobRunRepository
}

// buildEngine wires the catalog, scraper and task components over db.
// The catalog is only built when needCatalog is set, since it requires credentials.
func (r *Runner) buildEngine(db *sql.DB, needCatalog bool, progress chan<- tasks.ProgressUpdate) (*engine, error) {
	cfg := r.config
	e := &engine{db: db, runs: repositories.NewJobRunRepository(db)}

	var fetcher tasks.TrackFetcher
	if needCatalog {
		tokens := r.tokens
		if tokens == nil {
			var err error
			if tokens, err = services.NewCredentialProvider(cfg.Credentials); err != nil {
				return nil, err
			}
		}

		e.catalog = services.NewCatalogClient(services.CatalogOpts{
			BaseURL:        cfg.Catalog.BaseURL,
			Tokens:         tokens,
			Transport:      r.httpClient.Transport,
			Timeout:        cfg.Catalog.Timeout,
			MusicUserToken: cfg.Credentials.MusicUserToken,
			Logger:         r.logger,
		})
		fetcher = e.catalog

		var regions *tasks.RegionChecker
		if cfg.Catalog.CheckRegions {
			regions = tasks.NewRegionChecker(tasks.RegionCheckerOpts{
				Catalog:     e.catalog,
				Storefronts: cfg.Catalog.RegionStorefronts,
				ChunkSize:   cfg.Catalog.RegionChunkSize,
				Concurrency: cfg.Catalog.RegionConcurrency,
				Logger:      r.logger,
			})
		}

		e.aggregator = tasks.NewAggregator(tasks.AggregatorOpts{
			Catalog:   e.catalog,
			Regions:   regions,
			Discovery: cfg.Discovery,
			Logger:    r.logger,
		})
	}

	e.sync = tasks.NewSyncEngine(tasks.SyncOpts{
		DB:               db,
		Catalog:          fetcher,
		Storefront:       cfg.Catalog.Storefront,
		BatchSize:        cfg.Scheduler.SyncBatchSize,
		UpgradeBatchSize: cfg.Scheduler.UpgradeBatchSize,
		Progress:         progress,
		Logger:           r.logger,
	})

	scraper := services.NewCreditsScraper(services.ScraperOpts{
		Gate:           services.NewRequestGate(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay),
		Transport:      r.httpClient.Transport,
		Timeout:        cfg.Scraper.Timeout,
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		Logger:         r.logger,
	})
	e.credits = tasks.NewCreditsJob(tasks.CreditsJobOpts{
		DB:       db,
		Scraper:  scraper,
		Progress: progress,
		Logger:   r.logger,
	})

	return e, nil
}

// scheduler returns a scheduler that records runs, with jobs registered.
func (e *engine) scheduler(logger *log.Logger, runOnStart bool, jobs ...tasks.Job) (*tasks.Scheduler, error) {
	s := tasks.NewScheduler(tasks.SchedulerOpts{Recorder: e.runs, Logger: logger, RunOnStart: runOnStart})
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// printProgress writes progress messages until the channel is closed.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	for update := range progress {
		r.writePlain("%s\n", update.Message)
	}
	close(done)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
