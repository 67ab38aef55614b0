package main

import (
	"bufio"
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/repositories"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The client stack is built on first use so setup and help never touch the database.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	kv         session.KeyValue
	openURL    func(string) error

	once    sync.Once
	client  *client
	initErr error
	db      *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	// KV replaces the SQLite-backed session storage. The detail cache is disabled when set.
	KV          session.KeyValue
	OpenBrowser func(string) error
}

// client is the wired request stack shared by every command of one invocation.
type client struct {
	store      *session.Store
	pipeline   *services.Pipeline
	sender     *services.Coordinator
	catalog    *services.CatalogService
	watchlists *services.WatchlistService
	rooms      *services.RoomService
	auth       *services.AuthService
	cache      *repositories.CatalogCacheRepository
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
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout()}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		kv:         opts.KV,
		openURL:    opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, trendingCommand, discoverCommand, searchCommand, detailCommand,
		watchlistCommand, roomCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// connect wires the session store, request pipeline and services on first call.
func (r *Runner) connect() (*client, error) {
	r.once.Do(func() {
		r.client, r.initErr = r.wire()
		if r.initErr != nil {
			r.initErr = fmt.Errorf("failed to initialize client: %w", r.initErr)
		}
	})
	return r.client, r.initErr
}

func (r *Runner) wire() (*client, error) {
	c := &client{}

	kv := r.kv
	if kv == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
		kv = repositories.NewKVRepository(db)
		c.cache = repositories.NewCatalogCacheRepository(db)
	}

	store, err := session.NewStore(kv, shared.WithLogger(r.logger, "component", "session"))
	if err != nil {
		return nil, err
	}
	store.Subscribe(func(e session.Event) {
		r.logger.Debug("session changed", "event", e.Kind, "authenticated", e.Authenticated)
	})
	c.store = store

	pipeline, err := services.NewPipeline(services.PipelineOpts{
		BaseURL:   r.config.API.BaseURL,
		Client:    r.httpClient,
		Store:     store,
		RateLimit: r.config.API.RateLimit,
		Burst:     r.config.API.Burst,
		UserAgent: r.config.API.UserAgent,
		Logger:    shared.WithLogger(r.logger, "component", "pipeline"),
	})
	if err != nil {
		return nil, err
	}
	c.pipeline = pipeline

	var refresher services.Refresher
	if r.config.Auth.UsesOAuth2() {
		refresher = services.NewOAuth2Refresher(r.config.Auth.TokenURL, r.config.Auth.ClientID, r.config.Auth.ClientSecret, r.httpClient)
	} else {
		refresher = services.NewBackendRefresher(pipeline, r.config.Auth.RefreshPath)
	}

	c.sender = services.NewCoordinator(services.CoordinatorOpts{
		Pipeline:  pipeline,
		Store:     store,
		Refresher: refresher,
		OnLogout:  r.sessionExpired,
		Logger:    shared.WithLogger(r.logger, "component", "refresh"),
	})

	catalogOpts := services.CatalogOpts{
		Region:   r.config.Catalog.Region,
		CacheTTL: r.config.Catalog.CacheTTL(),
		Logger:   shared.WithLogger(r.logger, "component", "catalog"),
	}
	if c.cache != nil {
		catalogOpts.Cache = c.cache
	}
	c.catalog = services.NewCatalogService(c.sender, catalogOpts)
	c.watchlists = services.NewWatchlistService(c.sender)
	c.rooms = services.NewRoomService(c.sender)
	c.auth = services.NewAuthService(c.sender, store, r.config.Auth.LoginPath, shared.WithLogger(r.logger, "component", "auth"))

	return c, nil
}

// Close releases the database opened by connect.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// sessionExpired points the user at the login entry point once the session is gone.
func (r *Runner) sessionExpired(cause error) {
	r.logger.Warn("session could not be refreshed", "error", cause)
	r.writePlainln("Your session has expired. Run 'reelx auth login' to sign in again.")

	loginURL := r.config.Auth.LoginURL
	if loginURL == "" {
		return
	}
	r.writePlain("Login page: %s\n", loginURL)
	if r.config.Auth.OpenBrowser {
		if err := r.openURL(loginURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
}

// progress starts a goroutine that logs task updates until the returned stop func runs.
func (r *Runner) progress() (chan tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case u := <-updates:
				if u.Err != nil {
					r.logger.Debug(u.Message, "phase", u.Phase, "error", u.Err)
				} else {
					r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
				}
			case <-done:
				return
			}
		}
	}()

	return updates, func() {
		close(done)
		wg.Wait()
	}
}

// prompt reads one line of input after printing label.
func (r *Runner) prompt(label string) (string, error) {
	r.writePlain("%s: ", label)
	line, err := r.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

// render writes data in the format named by --format to --output or the runner output.
func (r *Runner) render(cmd *cli.Command, build func(formatter.Format) ([]byte, error)) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	data, err := build(format)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.logger.Info("output written", "path", path, "format", format)
		return nil
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return r.writePlain("\n")
	}
	return nil
}

// commandError reports a failed action with the message meant for the user while keeping
// the cause reachable through errors.Is.
type commandError struct {
	action string
	err    error
}

func failure(action string, err error) error {
	return &commandError{action: action, err: err}
}

func (e *commandError) Error() string { return e.action + ": " + shared.Message(e.err) }
func (e *commandError) Unwrap() error { return e.err }

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	output = bytes.TrimSuffix(output, []byte("\n"))

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
