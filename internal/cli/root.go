package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/inboxsync/internal/app"
	"github.com/lu-zhengda/inboxsync/internal/config"
	"github.com/lu-zhengda/inboxsync/internal/provider/gmail"
	"github.com/lu-zhengda/inboxsync/internal/store"
	"github.com/lu-zhengda/inboxsync/internal/store/sqlite"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inboxsync",
		Short:         "Mailbox sync service",
		Long:          "Pulls recent Gmail messages, classifies them, and stores them per account.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
				switch shell {
				case "bash":
					return cmd.Root().GenBashCompletion(os.Stdout)
				case "zsh":
					return cmd.Root().GenZshCompletion(os.Stdout)
				case "fish":
					return cmd.Root().GenFishCompletion(os.Stdout, true)
				default:
					return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
				}
			}
			return cmd.Help()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("inboxsync %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	root.Flags().MarkHidden("generate-completion")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newMessagesCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the application configuration from the config file.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openDB creates the database directory and opens the SQLite database.
func openDB(cfg *config.Config) (*sqlite.DB, error) {
	path := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newLogger builds the zerolog logger described by the [log] section.
// Format "console" writes human-readable lines; anything else writes JSON.
func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// env holds the dependencies shared by commands that talk to the store.
type env struct {
	cfg    *config.Config
	db     *sqlite.DB
	creds  store.CredentialStore
	logger zerolog.Logger
}

// setup loads config, opens the database and picks the credential backend.
// When validate is set, the config must pass Validate first.
func setup(validate bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, db: db, creds: db, logger: logger}
	if cfg.Store.Credentials == "keyring" {
		e.creds = store.NewKeyringCredentialStore()
	}
	return e, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

func (e *env) gmailClient() *gmail.Client {
	return gmail.NewClient(gmail.ClientOptions{
		Endpoint:          e.cfg.Gmail.APIEndpoint,
		RequestsPerSecond: e.cfg.Sync.RequestsPerSecond,
	})
}

func (e *env) oauth() *gmail.OAuth {
	return gmail.NewOAuth(e.cfg.Gmail)
}

func (e *env) syncService() *app.SyncService {
	logger := e.logger.With().Str("component", "sync").Logger()
	creds := app.NewCredentialManager(e.creds, e.oauth(), logger)
	return app.NewSyncService(creds, e.gmailClient(), e.db, e.cfg.Sync, logger)
}

// resolveAccountID returns flag when set, otherwise the only linked
// account.
func resolveAccountID(ctx context.Context, db *sqlite.DB, flag string) (string, error) {
	if flag != "" {
		if _, err := db.GetAccount(ctx, flag); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("account not found: %s", flag)
			}
			return "", err
		}
		return flag, nil
	}

	accounts, err := db.ListAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list accounts: %w", err)
	}
	switch len(accounts) {
	case 0:
		return "", fmt.Errorf("no accounts linked; run 'inboxsync account link' first")
	case 1:
		return accounts[0].ID, nil
	default:
		return "", fmt.Errorf("%d accounts linked; choose one with --account", len(accounts))
	}
}
