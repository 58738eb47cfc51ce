package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/console"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/tui"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (the default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}
}

// runChat starts the interactive chat (REPL) mode.
func runChat(cmd *cobra.Command) error {
	cfg, err := initConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stderr)
	closeLog := func() {}
	if useTUI {
		logger, closeLog = fileLogger(cfg)
	}
	defer closeLog()

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	orch := newOrchestrator(b, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if useTUI {
		tuiCfg := tui.TUIConfig{
			Version:     appVersion,
			Backend:     b.name,
			ShowWelcome: true,
		}
		return tui.RunTUI(ctx, tuiCfg, func(ctx context.Context, ui tui.IO) error {
			repl := console.New(orch, ui, console.WithBackend(b.name), console.WithLogger(logger))
			return repl.Run(ctx)
		})
	}

	// Plain IO mode
	ui := tui.NewPlainIO(false)
	fmt.Fprintf(cmd.OutOrStdout(), "chatctl %s | %s | /help for commands\n", appVersion, b.name)
	repl := console.New(orch, ui, console.WithBackend(b.name), console.WithLogger(logger))
	if err := repl.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
