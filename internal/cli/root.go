package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dayplan-cli/internal/api"
	"dayplan-cli/internal/format"
	"dayplan-cli/internal/identity"
	"dayplan-cli/internal/session"
	"dayplan-cli/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	APIURL       string
	DataDir      string
	PlatformUser string
	Launch       string
	Headers      []string
	PrettyJSON   bool
	Format       string
	Verbose      bool

	cfg *store.GlobalConfig
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "dayplan",
		Short:        "Day planner client (local-first)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Who am I, and where is my data?
  dayplan whoami

  # Add a task and let the server order the day
  dayplan tasks add --name "Write report" --complexity 3
  dayplan order --free-hours 5

  # Talk to a tunnel-hosted backend
  dayplan --api-url https://abc123.localto.net tasks list
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => current state, for people.
			if len(args) == 0 {
				if !cmd.Flags().Changed("format") && os.Getenv("DAYPLAN_FORMAT") == "" {
					app.Format = "text"
				}
				return runState(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !validFormat(app.Format) {
			return writeErr(cmd, fmt.Errorf("unknown format: %s (valid: %s)", app.Format, strings.Join(format.Formats, "|")))
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", envOr("DAYPLAN_API_URL", ""), "Backend origin (overrides apiUrl in config.json)")
	cmd.PersistentFlags().StringVar(&app.DataDir, "data-dir", envOr("DAYPLAN_DATA_DIR", ""), "Directory holding local.sqlite (overrides dataDir in config.json)")
	cmd.PersistentFlags().StringVar(&app.PlatformUser, "platform-user", envOr("DAYPLAN_PLATFORM_USER_ID", ""), "User id supplied by the host platform (highest priority)")
	cmd.PersistentFlags().StringVar(&app.Launch, "launch", envOr("DAYPLAN_LAUNCH", ""), "Launch link or query string carrying userId/user_id/uid")
	cmd.PersistentFlags().StringArrayVar(&app.Headers, "header", nil, "Extra request header as name=value (repeatable)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("DAYPLAN_FORMAT", "json"), "Output format (json|yaml|text)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Debug logging on stderr")

	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newIdentityCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newOrderCmd(app))
	cmd.AddCommand(newHoursCmd(app))
	cmd.AddCommand(newResultCmd(app))
	cmd.AddCommand(newUserCmd(app))
	cmd.AddCommand(newHealthCmd(app))
	cmd.AddCommand(newStateCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func validFormat(f string) bool {
	if f == "" || f == "yml" {
		return true
	}
	for _, v := range format.Formats {
		if f == v {
			return true
		}
	}
	return false
}

func (app *App) config() (*store.GlobalConfig, error) {
	if app.cfg != nil {
		return app.cfg, nil
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	app.cfg = cfg
	return cfg, nil
}

func (app *App) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if app.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// client builds the API client. Precedence: flag/env, then config.json.
func (app *App) client(cmd *cobra.Command) (*api.Client, error) {
	cfg, err := app.config()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(app.APIURL)
	if base == "" {
		base = cfg.APIURL
	}
	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	for _, h := range app.Headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --header %q (want name=value)", h)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return api.New(api.Config{BaseURL: base, Headers: headers, Timeout: timeout}, api.WithLogger(app.logger(cmd))), nil
}

func (app *App) dataDir() (string, error) {
	if d := strings.TrimSpace(app.DataDir); d != "" {
		return d, nil
	}
	cfg, err := app.config()
	if err != nil {
		return "", err
	}
	if cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	return store.DefaultDataDir()
}

func (app *App) storagePrefix() string {
	cfg, err := app.config()
	if err != nil || cfg.StoragePrefix == "" {
		return store.DefaultPrefix
	}
	return cfg.StoragePrefix
}

// env is everything a user-scoped command needs. Close releases the database.
type env struct {
	kv       *store.SQLiteKV
	resolver *identity.Resolver
	ident    identity.Resolution
	client   *api.Client
	sess     *session.Session
	logger   *slog.Logger
}

func (e *env) Close() {
	if e.sess != nil {
		e.sess.Close()
	}
	if e.kv != nil {
		_ = e.kv.Close()
	}
}

func (app *App) openKV(ctx context.Context) (*store.SQLiteKV, error) {
	dir, err := app.dataDir()
	if err != nil {
		return nil, err
	}
	return store.OpenSQLiteKV(ctx, dir)
}

func (app *App) resolver(kv store.KV, logger *slog.Logger) *identity.Resolver {
	r := identity.NewResolver(kv, app.storagePrefix(), identity.StaticPlatform(app.PlatformUser), app.Launch)
	r.Logger = logger
	return r
}

// open resolves the current user and loads their session.
func (app *App) open(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	logger := app.logger(cmd)
	kv, err := app.openKV(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.client(cmd)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	e := &env{kv: kv, client: client, logger: logger}
	e.resolver = app.resolver(kv, logger)
	e.ident = e.resolver.Resolve(ctx)
	st := store.NewStateStore(kv, app.storagePrefix(), e.ident.ID)
	e.sess = session.Open(ctx, st, client, session.WithLogger(logger))
	return e, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describeErr(err))
	return err
}

func describeErr(err error) string {
	var te *api.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("%s (%s)", err.Error(), te.Hint())
	}
	if errors.Is(err, api.ErrNoOrigin) {
		return err.Error() + "; set --api-url, DAYPLAN_API_URL or `dayplan config set apiUrl <url>`"
	}
	return err.Error()
}
