package main

import (
	"runtime/debug"

	"github.com/ismaeeeelshaikh/college-ai-assistant/cmd"
)

// version info injected via ldflags:
// go build -ldflags "-X main.version=0.1.0 -X main.commit=abc123 -X main.date=2026-10-16"
var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

func init() {
	// Fall back to the VCS revision recorded by the Go toolchain.
	if commit == "none" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					commit = s.Value[:7]
					break
				}
			}
		}
	}
}

func main() {
	cmd.Execute(version, commit, date)
}
