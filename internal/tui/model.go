package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ---------- messages sent from the REPL goroutine via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type assistantMsg struct{ text string }
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type statusMsg struct{ status Status }
type replDoneMsg struct{ err error }

// TUIConfig holds what the welcome banner shows.
type TUIConfig struct {
	Version     string
	Backend     string
	ShowWelcome bool
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	welcomeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)

	welcomeTitleStyle = lipgloss.NewStyle().Bold(true)
)

// ---------- Model ----------

const statusBarHeight = 1
const inputHeight = 1

// Model is the bubbletea model managing the full TUI state.
type Model struct {
	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model
	width     int
	height    int

	lines     []string // rendered transcript, one entry per event
	inputMode bool     // text input is active (waiting for user)
	thinking  bool

	inputCh chan inputResult // send user input back to ReadInput()

	quitting bool
	status   Status
}

// NewModel creates the initial bubbletea model.
func NewModel(inputCh chan inputResult, cfg TUIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Placeholder = "Ask a question, or /help"

	vp := viewport.New(80, 24)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		viewport:  vp,
		textinput: ti,
		spinner:   sp,
		inputCh:   inputCh,
		status:    Status{Backend: cfg.Backend},
	}
	if cfg.ShowWelcome {
		m.lines = append(m.lines, renderWelcome(cfg))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - statusBarHeight - inputHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.textinput.Width = m.width - 4

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			if m.inputMode {
				m.submit(inputResult{err: fmt.Errorf("interrupted")})
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.inputMode {
				text := strings.TrimSpace(m.textinput.Value())
				m.textinput.SetValue("")
				m.submit(inputResult{text: text})
			}
			return m, nil
		}

		if m.inputMode {
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
		}

	// ---------- custom messages from the REPL goroutine ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()
		cmds = append(cmds, textinput.Blink)

	case userMsg:
		m.lines = append(m.lines, userStyle.Render("You: "+msg.text))

	case thinkingStartMsg:
		m.thinking = true

	case assistantMsg:
		m.thinking = false
		m.lines = append(m.lines, RenderMarkdown(msg.text, m.width))

	case systemMsg:
		m.lines = append(m.lines, systemStyle.Render(msg.text))

	case errorMsg:
		m.thinking = false
		m.lines = append(m.lines, errorStyle.Render("Error: "+msg.text))

	case statusMsg:
		m.status = msg.status
		if m.status.Pending == 0 {
			m.thinking = false
		}

	case replDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	bar := statusBarStyle.Width(m.width).Render(m.statusLine())

	var input string
	if m.inputMode {
		input = m.textinput.View()
	}

	return m.viewport.View() + "\n" + bar + "\n" + input
}

// submit hands a line back to ReadInput without blocking the UI loop.
func (m *Model) submit(res inputResult) {
	select {
	case m.inputCh <- res:
	default:
	}
	m.inputMode = false
	m.textinput.Blur()
}

func (m *Model) statusLine() string {
	s := m.status
	parts := []string{}
	if s.Backend != "" {
		parts = append(parts, s.Backend)
	}
	switch {
	case s.Mode == "loading":
		parts = append(parts, "loading...")
	case s.Title != "":
		parts = append(parts, truncate(s.Title, 40))
	default:
		parts = append(parts, "new chat")
	}
	parts = append(parts, fmt.Sprintf("sessions: %d", s.Sessions))
	if s.Pending > 0 {
		parts = append(parts, fmt.Sprintf("pending: %d", s.Pending))
	}
	return strings.Join(parts, " | ")
}

func (m *Model) renderContent() string {
	base := strings.Join(m.lines, "\n")
	if m.thinking {
		return base + "\n" + m.spinner.View() + " Thinking..."
	}
	return base
}

func renderWelcome(cfg TUIConfig) string {
	title := welcomeTitleStyle.Render("chatctl " + cfg.Version)
	body := title + "\n" + "backend: " + cfg.Backend + "\n" + "type /help for commands"
	return welcomeStyle.Render(body)
}
