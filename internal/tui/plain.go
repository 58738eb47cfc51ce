package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PlainIO implements IO with line-based terminal output. It is used when
// TUI mode is disabled or stdout is not a terminal.
type PlainIO struct {
	scanner  *bufio.Scanner
	out      io.Writer
	errOut   io.Writer
	markdown bool
	status   Status
}

var _ IO = (*PlainIO)(nil)

// NewPlainIO creates a PlainIO on stdin/stdout. markdown enables glamour
// rendering of replies.
func NewPlainIO(markdown bool) *PlainIO {
	return NewPlainIOWith(os.Stdin, os.Stdout, os.Stderr, markdown)
}

// NewPlainIOWith creates a PlainIO on the given streams.
func NewPlainIOWith(in io.Reader, out, errOut io.Writer, markdown bool) *PlainIO {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s, out: out, errOut: errOut, markdown: markdown}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Fprint(p.out, "\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// The user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Fprintln(p.out, "...")
}

func (p *PlainIO) AssistantMessage(text string) {
	if p.markdown {
		text = RenderMarkdown(text, defaultWidth)
	}
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(p.errOut, "error: %s\n", msg)
}

func (p *PlainIO) SetStatus(s Status) {
	p.status = s
}

// truncate shortens s to maxLen runes, appending "..." if cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
