package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		token string
		cost  int
	)

	root := &cobra.Command{
		Use:   "hash-token",
		Short: "Create the bcrypt hash the record API server checks bearer tokens against",
		Long: `Create the bcrypt hash the record API server checks bearer tokens against.

Without --token a random token is generated. Put the token in REMOTE_TOKEN on
clients and the hash in API_TOKEN_HASH on the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			generated := false
			if token == "" {
				token = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
				generated = true
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
			if err != nil {
				return fmt.Errorf("failed to hash token: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("✓ API token hash created"))
			if generated {
				fmt.Fprintf(out, "  %s%s\n", keyStyle.Render("REMOTE_TOKEN="), token)
			}
			fmt.Fprintf(out, "  %s'%s'\n", keyStyle.Render("API_TOKEN_HASH="), hash)
			return nil
		},
	}
	root.Flags().StringVar(&token, "token", "", "API token to hash")
	root.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	root.AddCommand(newVerifyCmd())
	return root
}

func newVerifyCmd() *cobra.Command {
	var token, hash string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a token against a hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" || hash == "" {
				return errors.New("--token and --hash are required")
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				return errors.New("token does not match hash")
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ token matches"))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().StringVar(&hash, "hash", "", "bcrypt hash")
	return cmd
}
