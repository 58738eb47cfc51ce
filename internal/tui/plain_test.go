package tui

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPlainIO_ReadInput(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPlainIOWith(strings.NewReader("hello\n  /help  \n"), &out, &errOut, false)

	got, err := p.ReadInput()
	if err != nil || got != "hello" {
		t.Fatalf("ReadInput = %q, %v", got, err)
	}
	got, err = p.ReadInput()
	if err != nil || got != "/help" {
		t.Fatalf("ReadInput = %q, %v", got, err)
	}
	if _, err := p.ReadInput(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if !strings.Contains(out.String(), "> ") {
		t.Errorf("prompt not written: %q", out.String())
	}
}

func TestPlainIO_Output(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPlainIOWith(strings.NewReader(""), &out, &errOut, false)

	p.UserMessage("ignored")
	p.AssistantMessage("**answer**")
	p.SystemMessage("notice")
	p.Error("Failed to load chat session")

	if strings.Contains(out.String(), "ignored") {
		t.Errorf("user message echoed: %q", out.String())
	}
	if !strings.Contains(out.String(), "**answer**") {
		t.Errorf("raw reply missing: %q", out.String())
	}
	if !strings.Contains(out.String(), "notice") {
		t.Errorf("system message missing: %q", out.String())
	}
	if errOut.String() != "error: Failed to load chat session\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestPlainIO_MarkdownReply(t *testing.T) {
	var out bytes.Buffer
	p := NewPlainIOWith(strings.NewReader(""), &out, io.Discard, true)
	p.AssistantMessage("# Title\n\nbody text")
	if !strings.Contains(out.String(), "body text") {
		t.Errorf("rendered reply missing text: %q", out.String())
	}
}

func TestBufferIO(t *testing.T) {
	b := NewBufferIO(" first ", "second")
	got, _ := b.ReadInput()
	if got != "first" {
		t.Fatalf("ReadInput = %q", got)
	}
	b.UserMessage("first")
	b.ThinkingStart()
	b.AssistantMessage("reply")
	b.Error("oops")
	b.SetStatus(Status{Mode: "bound", Sessions: 2})

	_, _ = b.ReadInput()
	if _, err := b.ReadInput(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	want := []string{"user: first", "thinking", "assistant: reply", "error: oops"}
	events := b.Events()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
	if b.LastStatus().Sessions != 2 {
		t.Errorf("status not recorded: %+v", b.LastStatus())
	}
}
