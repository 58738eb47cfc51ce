package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/config"
)

var offlineProviders = []string{
	"openai", "anthropic", "deepseek", "minimax",
	"kimi", "qwen", "glm", "doubao", "groq",
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up chatctl: point it at a chat server, or choose an LLM provider for offline mode, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), path)
		},
	}
}

func runInit(in io.Reader, out io.Writer, path string) error {
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	fmt.Fprintln(out, "Welcome to the chatctl configuration wizard!")
	fmt.Fprintln(out)

	cfg := config.DefaultConfig()

	mode := ask("Use a chat server (1) or offline mode with your own LLM key (2)? [1]: ")
	switch mode {
	case "", "1":
		if u := ask(fmt.Sprintf("API base URL [%s]: ", cfg.API.BaseURL)); u != "" {
			cfg.API.BaseURL = u
		}
		cfg.API.Token = ask("Bearer token (leave empty to set later with `chatctl login`): ")
	case "2":
		cfg.Offline.Enabled = true
		fmt.Fprintln(out, "Available providers:")
		for i, p := range offlineProviders {
			fmt.Fprintf(out, "  %d. %s\n", i+1, p)
		}
		selectedIdx := 0
		if n, err := strconv.Atoi(ask(fmt.Sprintf("\nSelect provider (1-%d) [1]: ", len(offlineProviders)))); err == nil && n >= 1 && n <= len(offlineProviders) {
			selectedIdx = n - 1
		}
		name := offlineProviders[selectedIdx]
		fmt.Fprintf(out, "Selected: %s\n\n", name)

		apiKey := ask(fmt.Sprintf("Enter API key for %s: ", name))
		if apiKey == "" {
			return errors.New("API key cannot be empty")
		}
		cfg.Offline.Provider = name
		cfg.Offline.Providers[name] = &config.ProviderConfig{APIKey: apiKey}
	default:
		return fmt.Errorf("unknown choice %q", mode)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "\nConfig file already exists at %s\n", path)
		if !strings.EqualFold(ask("Overwrite? [y/N]: "), "y") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", path)
	fmt.Fprintln(out, "You can now run: chatctl")
	return nil
}
