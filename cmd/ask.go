package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/orchestrator"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/tui"
)

func newAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a single question non-interactively",
		Example: `  chatctl ask "when does the library close on Fridays?"
  chatctl ask --session 3f2a9c1e "and on Saturdays?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), sessionID)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "append to an existing session instead of starting a new one")

	return cmd
}

// runAsk sends one question and prints the answer.
func runAsk(cmd *cobra.Command, question, sessionID string) error {
	cfg, err := initConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	orch := newOrchestrator(b, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sessionID != "" {
		if err := orch.SelectSession(ctx, sessionID); err != nil {
			return slotError(orch, err)
		}
	}

	reply, err := orch.SendMessage(ctx, question)
	if err != nil {
		return slotError(orch, err)
	}

	out := cmd.OutOrStdout()
	answer := reply.Answer
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			width = 0
		}
		answer = tui.RenderMarkdown(answer, width)
	}
	fmt.Fprintln(out, answer)

	if v := orch.Snapshot(); v.Active != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nsession: %s (%s)\n", v.Active.ID, v.Active.Title)
	}
	return nil
}

// slotError prefers the user-facing error slot text over the raw error.
func slotError(orch *orchestrator.Orchestrator, err error) error {
	if v := orch.Snapshot(); v.Err != "" {
		return errors.New(v.Err)
	}
	if errors.Is(err, chat.ErrEmptyMessage) {
		return errors.New("question is empty")
	}
	return err
}
