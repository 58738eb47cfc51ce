// Package console runs the interactive chat loop on top of the
// orchestrator: it reads lines through a tui.IO, sends plain text as
// questions and handles slash commands.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/orchestrator"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/tui"
)

const (
	shortIDLen     = 8
	maxListed      = 20
	historyPreview = 200
)

// REPL is the interactive loop.
type REPL struct {
	orch    *orchestrator.Orchestrator
	io      tui.IO
	backend string
	logger  *slog.Logger
}

// Option configures a REPL.
type Option func(*REPL)

// WithBackend sets the backend label shown by /status and the status bar.
func WithBackend(name string) Option {
	return func(r *REPL) { r.backend = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *REPL) { r.logger = l }
}

func New(orch *orchestrator.Orchestrator, ui tui.IO, opts ...Option) *REPL {
	r := &REPL{orch: orch, io: ui, logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads the session list, then reads input until EOF, /quit or ctx is
// cancelled.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.orch.RefreshSessions(ctx); err != nil {
		r.report(err)
	}
	r.publishStatus()

	for {
		input, err := r.io.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if input == "" {
			continue
		}
		if r.Handle(ctx, input) {
			return nil
		}
	}
}

// Handle processes one line of input and reports whether the loop should
// stop.
func (r *REPL) Handle(ctx context.Context, input string) (quit bool) {
	defer r.publishStatus()

	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		r.send(ctx, input)
		return false
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit", "/q":
		r.io.SystemMessage("Bye.")
		return true
	case "/help":
		r.io.SystemMessage(helpText)
	case "/new":
		r.orch.StartNewChat()
		r.io.SystemMessage("Started a new chat. Your first message creates the session.")
	case "/sessions":
		r.io.SystemMessage(formatSessions(r.orch.Snapshot()))
	case "/refresh":
		if err := r.orch.RefreshSessions(ctx); err != nil {
			r.report(err)
			return false
		}
		r.io.SystemMessage(formatSessions(r.orch.Snapshot()))
	case "/open":
		r.open(ctx, arg)
	case "/history":
		r.io.SystemMessage(formatHistory(r.orch.Snapshot()))
	case "/title":
		r.retitleActive(ctx, arg)
	case "/rename":
		r.rename(ctx, arg)
	case "/delete":
		r.delete(ctx, arg)
	case "/status":
		r.io.SystemMessage(r.formatStatus(r.orch.Snapshot()))
	default:
		r.io.Error(fmt.Sprintf("Unknown command %s. Type /help for the list.", cmd))
	}
	return false
}

func (r *REPL) send(ctx context.Context, text string) {
	r.io.UserMessage(text)
	r.io.ThinkingStart()
	reply, err := r.orch.SendMessage(ctx, text)
	if err != nil {
		r.report(err)
		return
	}
	r.io.AssistantMessage(reply.Answer)
}

func (r *REPL) open(ctx context.Context, prefix string) {
	if prefix == "" {
		r.io.SystemMessage("Usage: /open <session-id-prefix>")
		return
	}
	id, err := r.resolve(prefix)
	if err != nil {
		r.io.Error(err.Error())
		return
	}
	if err := r.orch.SelectSession(ctx, id); err != nil {
		r.report(err)
		return
	}
	v := r.orch.Snapshot()
	if v.Active == nil || v.Active.ID != id {
		// Superseded by another operation.
		return
	}
	r.io.SystemMessage(fmt.Sprintf("Opened %q (%d messages).", v.Active.Title, len(v.Transcript)))
	if len(v.Transcript) > 0 {
		r.io.SystemMessage(formatHistory(v))
	}
}

func (r *REPL) retitleActive(ctx context.Context, title string) {
	v := r.orch.Snapshot()
	if v.Mode != chat.ModeBound || v.Active == nil {
		r.io.Error("No saved session is open. Send a message or /open one first.")
		return
	}
	if err := r.orch.RenameSession(ctx, v.Active.ID, title); err != nil {
		r.report(err)
		return
	}
	r.io.SystemMessage(fmt.Sprintf("Renamed to %q.", strings.TrimSpace(title)))
}

func (r *REPL) rename(ctx context.Context, arg string) {
	prefix, title, _ := strings.Cut(arg, " ")
	if prefix == "" {
		r.io.SystemMessage("Usage: /rename <session-id-prefix> <title>")
		return
	}
	id, err := r.resolve(prefix)
	if err != nil {
		r.io.Error(err.Error())
		return
	}
	if err := r.orch.RenameSession(ctx, id, title); err != nil {
		r.report(err)
		return
	}
	r.io.SystemMessage(fmt.Sprintf("Renamed %s to %q.", shortID(id), strings.TrimSpace(title)))
}

func (r *REPL) delete(ctx context.Context, prefix string) {
	if prefix == "" {
		r.io.SystemMessage("Usage: /delete <session-id-prefix>")
		return
	}
	id, err := r.resolve(prefix)
	if err != nil {
		r.io.Error(err.Error())
		return
	}
	if err := r.orch.DeleteSession(ctx, id); err != nil {
		r.report(err)
		return
	}
	r.io.SystemMessage(fmt.Sprintf("Deleted %s.", shortID(id)))
}

// resolve maps an id or unique id prefix to a session id from the registry.
func (r *REPL) resolve(prefix string) (string, error) {
	sessions := r.orch.Snapshot().Sessions
	var matches []chat.SessionSummary
	for _, s := range sessions {
		if s.ID == prefix {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("No session matches %q. Try /refresh.", prefix)
	case 1:
		return matches[0].ID, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ambiguous prefix %q matches %d sessions:", prefix, len(matches))
	for _, m := range matches {
		fmt.Fprintf(&sb, "\n  %s  %s", m.ID, m.Title)
	}
	sb.WriteString("\nProvide a longer prefix.")
	return "", errors.New(sb.String())
}

// report shows the error slot if the failure filled it, or a short
// message for failures that never reach the slot.
func (r *REPL) report(err error) {
	v := r.orch.Snapshot()
	if v.Err != "" {
		r.io.Error(v.Err)
		r.orch.ClearError()
		return
	}
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		r.io.Error("Message is empty.")
	case errors.Is(err, chat.ErrEmptyTitle):
		r.io.Error("Title cannot be empty.")
	case errors.Is(err, chat.ErrSessionLoading):
		r.io.Error("A session is still loading. Try again in a moment.")
	case errors.Is(err, context.Canceled):
	default:
		r.logger.Debug("error without slot text", "error", err)
	}
}

func (r *REPL) publishStatus() {
	v := r.orch.Snapshot()
	s := tui.Status{
		Mode:     v.Mode.String(),
		Sessions: len(v.Sessions),
		Pending:  v.InFlight,
		Backend:  r.backend,
	}
	if v.Active != nil {
		s.Title = v.Active.Title
	}
	r.io.SetStatus(s)
}

func (r *REPL) formatStatus(v orchestrator.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Backend:  %s\n", r.backend)
	fmt.Fprintf(&sb, "Mode:     %s\n", v.Mode)
	if v.Active != nil {
		fmt.Fprintf(&sb, "Session:  %s (%s)\n", v.Active.Title, v.Active.ID)
	} else {
		sb.WriteString("Session:  none\n")
	}
	fmt.Fprintf(&sb, "Messages: %d\n", len(v.Transcript))
	fmt.Fprintf(&sb, "Sessions: %d", len(v.Sessions))
	if v.InFlight > 0 {
		fmt.Fprintf(&sb, "\nPending:  %d", v.InFlight)
	}
	return sb.String()
}

func formatSessions(v orchestrator.View) string {
	if len(v.Sessions) == 0 {
		return "No chat sessions yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chat sessions (%d):", len(v.Sessions))
	for i, s := range v.Sessions {
		if i >= maxListed {
			fmt.Fprintf(&sb, "\n  ... and %d more", len(v.Sessions)-maxListed)
			break
		}
		marker := " "
		if v.Active != nil && v.Active.ID == s.ID {
			marker = "*"
		}
		fmt.Fprintf(&sb, "\n%s %-8s  %s  %d msgs  %s",
			marker, shortID(s.ID), s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.MessageCount, s.Title)
	}
	sb.WriteString("\nUse /open <id> to continue a session.")
	return sb.String()
}

func formatHistory(v orchestrator.View) string {
	if len(v.Transcript) == 0 {
		return "No messages yet."
	}
	var sb strings.Builder
	for i, m := range v.Transcript {
		if i > 0 {
			sb.WriteString("\n")
		}
		who := "You"
		if m.Role == chat.RoleAssistant {
			who = "Assistant"
		}
		fmt.Fprintf(&sb, "[%s] %s", who, truncate(m.Text, historyPreview))
		if m.Pending {
			sb.WriteString(" (sending)")
		}
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

const helpText = `Available commands:
  /help                   Show this help message
  /new                    Start a new chat
  /sessions               List chat sessions
  /refresh                Reload the session list
  /open <id>              Open a session (id or unique prefix)
  /history                Show the open conversation
  /title <text>           Rename the open session
  /rename <id> <text>     Rename any session
  /delete <id>            Delete a session
  /status                 Show backend and session state
  /quit                   Exit
Anything else is sent as a question.`
