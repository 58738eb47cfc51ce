package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/orchestrator"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List and manage chat sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List chat sessions, most recently updated first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator) error {
					if err := orch.RefreshSessions(ctx); err != nil {
						return slotError(orch, err)
					}
					printSessions(cmd.OutOrStdout(), orch.Snapshot().Sessions)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a session's conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator) error {
					if err := orch.SelectSession(ctx, args[0]); err != nil {
						return slotError(orch, err)
					}
					printTranscript(cmd.OutOrStdout(), orch.Snapshot())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename <id> <title>",
			Short: "Rename a session",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator) error {
					if err := orch.RenameSession(ctx, args[0], args[1]); err != nil {
						return slotError(orch, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s.\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator) error {
					if err := orch.DeleteSession(ctx, args[0]); err != nil {
						return slotError(orch, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

// withOrchestrator opens the configured backend, runs fn and closes it.
func withOrchestrator(cmd *cobra.Command, fn func(ctx context.Context, orch *orchestrator.Orchestrator) error) error {
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

	return fn(cmd.Context(), newOrchestrator(b, logger))
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printSessions(w io.Writer, sessions []chat.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No chat sessions yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "MESSAGES", "UPDATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range sessions {
		t.Row(s.ID, s.Title, strconv.Itoa(s.MessageCount), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, t.Render())
}

func printTranscript(w io.Writer, v orchestrator.View) {
	if v.Active != nil {
		fmt.Fprintf(w, "%s (%s)\n\n", v.Active.Title, v.Active.ID)
	}
	if len(v.Transcript) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range v.Transcript {
		who := "You"
		if m.Role == chat.RoleAssistant {
			who = "Assistant"
		}
		fmt.Fprintf(w, "[%s] %s\n", who, m.Text)
	}
}
