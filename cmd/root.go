package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/config"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/gateway"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/orchestrator"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/provider"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/session"
)

var (
	cfgFile      string
	apiURLFlag   string
	tokenFlag    string
	offlineFlag  bool
	useTUI       bool
	logLevelFlag string

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Terminal client for AI chat sessions",
		Long: "chatctl talks to a chat-sessions server (or, with --offline, to a local store " +
			"and an LLM provider) and keeps your conversations organised as sessions.",
		// Running chatctl with no subcommand starts chat mode.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Default TUI on when stdout is a terminal and --tui was not explicitly set.
			if !cmd.Root().PersistentFlags().Changed("tui") && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/chatctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "chat-sessions API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token for the API")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "use the local session store and an LLM provider instead of the API")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use bubbletea TUI mode (default: auto-detect terminal)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")

	// Subcommands
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newVersionCmd(appVersion, appCommit, appDate))

	return rootCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config values
	flags := cmd.Root().PersistentFlags()
	if apiURLFlag != "" {
		cfg.API.BaseURL = apiURLFlag
	}
	if tokenFlag != "" {
		cfg.API.Token = tokenFlag
	}
	if flags.Changed("offline") {
		cfg.Offline.Enabled = offlineFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// backend is a ready-to-use gateway plus what must be released with it.
type backend struct {
	name    string
	gateway gateway.Gateway
	close   func() error
}

// openBackend builds the HTTP gateway, or the offline gateway backed by
// SQLite and an LLM provider.
func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if !cfg.Offline.Enabled {
		creds := gateway.StaticCredentials{
			Value: cfg.API.Token,
			OnInvalidate: func() {
				logger.Warn("API token rejected; run `chatctl login` to store a new one")
			},
		}
		gw := gateway.NewHTTPGateway(cfg.API.BaseURL, creds,
			gateway.WithTimeout(cfg.API.Timeout),
			gateway.WithLogger(logger),
		)
		return &backend{name: cfg.API.BaseURL, gateway: gw, close: func() error { return nil }}, nil
	}

	p, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Offline.DBPath
	if dbPath == "" {
		if dbPath, err = session.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("session db path: %w", err)
		}
	}
	store, err := session.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	opts := []gateway.LocalOption{gateway.WithLocalLogger(logger)}
	if cfg.Offline.SystemPrompt != "" {
		opts = append(opts, gateway.WithSystemPrompt(cfg.Offline.SystemPrompt))
	}
	gw := gateway.NewLocal(store, p, opts...)
	return &backend{
		name:    fmt.Sprintf("offline (%s/%s)", p.Name(), p.DefaultModel()),
		gateway: gw,
		close:   store.Close,
	}, nil
}

func newOrchestrator(b *backend, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(b.gateway, orchestrator.WithLogger(logger))
}

// newLogger writes logs to w at the configured level and format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.InitLogger(cfg.Log.Level, cfg.Log.Format, w)
}

// fileLogger logs to the configured (or default) log file so that the
// alt-screen stays clean. Falls back to discarding logs.
func fileLogger(cfg *config.Config) (*slog.Logger, func()) {
	path := cfg.Log.File
	if path == "" {
		p, err := logging.DefaultFilePath()
		if err != nil {
			return logging.Discard(), func() {}
		}
		path = p
	}
	f, err := logging.OpenFile(path)
	if err != nil {
		return logging.Discard(), func() {}
	}
	return newLogger(cfg, f), func() { f.Close() }
}

// providerBaseURLs maps OpenAI-compatible provider names to their base URLs.
var providerBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com",
	"minimax":  "https://api.minimax.chat/v1",
	"kimi":     "https://api.moonshot.cn/v1",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"glm":      "https://open.bigmodel.cn/api/paas/v4/",
	"doubao":   "https://ark.cn-beijing.volces.com/api/v3",
	"groq":     "https://api.groq.com/openai/v1",
}

// buildProvider creates the offline-mode Provider from configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Offline.Provider
	pc := cfg.GetProviderConfig(name)

	apiKey := pc.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: offline.providers.%s.api_key\n"+
				"  - environment: LLM_API_KEY\n"+
				"  - run: chatctl init",
			name, name,
		)
	}

	// Model: offline.model > provider entry > provider default
	model := cfg.Offline.Model
	if model == "" {
		model = pc.Model
	}

	switch name {
	case "anthropic":
		return provider.NewAnthropicProvider(apiKey, model), nil
	default:
		// All other providers use the OpenAI-compatible API
		baseURL := pc.BaseURL
		if baseURL == "" {
			u, ok := providerBaseURLs[name]
			if !ok {
				return nil, fmt.Errorf("unknown provider %q; set offline.providers.%s.base_url in config", name, name)
			}
			baseURL = u
		}
		return provider.NewOpenAIProvider(apiKey, baseURL, model), nil
	}
}
