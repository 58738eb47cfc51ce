package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/config"
)

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API bearer token in the config file",
		Long: "Stores a bearer token obtained from the chat server. Without --token the " +
			"token is read from stdin (hidden when stdin is a terminal).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				t, err := readToken(cmd)
				if err != nil {
					return err
				}
				token = t
			}
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := saveToken(path, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token to store")

	return cmd
}

func readToken(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// saveToken updates api.token in the config file at path, keeping the
// rest of the file's settings.
func saveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.API.Token = token
	return config.Save(path, cfg)
}
