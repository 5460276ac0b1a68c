package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/corsac-s/immich-tools/internal/repositories"
	"github.com/corsac-s/immich-tools/internal/services"
	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/corsac-s/immich-tools/internal/tasks"
	"github.com/urfave/cli/v3"
)

// rawRequester performs authenticated requests against arbitrary Immich API paths.
type rawRequester interface {
	Raw(ctx context.Context, method, path string, body []byte) (*services.APIResponse, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services are built from the configuration on first use unless they were injected.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.Source
	dest       services.Destination
	raw        rawRequester
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	getenv     func(string) string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Source      services.Source
	Destination services.Destination
	Raw         rawRequester
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Getenv      func(string) string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		dest:       opts.Destination,
		raw:        opts.Raw,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		getenv:     opts.Getenv,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, albumsCommand, searchCommand, apiCommand, setupCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies --verbose. An injected config is kept as is.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.config != nil {
		return ctx, nil
	}

	config, err := shared.ResolveConfig(r.configPath, r.getenv)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.logger.Debug("configuration loaded", "path", r.configPath)
	return ctx, nil
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
		r.config.ApplyEnv(r.getenv)
	}
	return r.config
}

func (r *Runner) immich() (*services.ImmichService, error) {
	config := r.cfg()
	if err := config.ValidateImmich(); err != nil {
		return nil, err
	}
	return services.NewImmichService(services.ImmichOptions{
		BaseURL:    config.Immich.URL,
		APIKey:     config.Immich.APIKey,
		Timeout:    config.Immich.Timeout.Duration,
		RateLimit:  config.Immich.RateLimit,
		HTTPClient: r.httpClient,
	}), nil
}

// destination returns the Immich client, validating its settings before any request is made.
func (r *Runner) destination() (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}
	svc, err := r.immich()
	if err != nil {
		return nil, err
	}
	r.dest = svc
	return r.dest, nil
}

func (r *Runner) rawClient() (rawRequester, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	svc, err := r.immich()
	if err != nil {
		return nil, err
	}
	r.raw = svc
	return r.raw, nil
}

// sourceService returns the Nextcloud WebDAV client, validating its settings first.
func (r *Runner) sourceService() (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}
	config := r.cfg()
	if err := config.ValidateNextcloud(); err != nil {
		return nil, err
	}
	r.source = services.NewWebDAVService(services.WebDAVOptions{
		URL:      config.Nextcloud.URL,
		Login:    config.Nextcloud.Login,
		Password: config.Nextcloud.Password,
		Timeout:  config.Nextcloud.Timeout.Duration,
	})
	return r.source, nil
}

// openHistory opens the run history database. Returns [shared.ErrNotConfigured] when history is disabled.
func (r *Runner) openHistory() (*sql.DB, *repositories.SyncRunRepository, error) {
	db, err := shared.OpenHistory(r.cfg().Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewSyncRunRepository(db), nil
}

// engineOptions fills the configured windows, worker count and logger into opts.
func (r *Runner) engineOptions(opts tasks.EngineOptions) tasks.EngineOptions {
	config := r.cfg()
	if opts.Workers <= 0 {
		opts.Workers = config.Sync.Workers
	}
	opts.NarrowWindow = config.Sync.NarrowWindow.Duration
	opts.WideWindow = config.Sync.WideWindow.Duration
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	return opts
}

// newEngine wires the album engine from the configuration and the given per-run options.
func (r *Runner) newEngine(opts tasks.EngineOptions) (*tasks.AlbumEngine, error) {
	source, err := r.sourceService()
	if err != nil {
		return nil, err
	}
	dest, err := r.destination()
	if err != nil {
		return nil, err
	}
	return tasks.NewAlbumEngine(source, dest, r.engineOptions(opts)), nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
