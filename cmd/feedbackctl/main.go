package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/org/feedbackvault/internal/app"
	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/internal/config"
	"github.com/org/feedbackvault/internal/crypto"
	"github.com/org/feedbackvault/pkg/models"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "feedbackctl",
	Short:         "Feedback service CLI",
	Long:          "A CLI for submitting, reading and deleting feedback records.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := loadConfig(); err != nil {
			printError("ignoring CLI config: " + err.Error())
		}
		if !cmd.Flags().Changed("format") && cfg.Format != "" {
			outputFormat = cfg.Format
		}
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with --format=raw)")

	rootCmd.AddCommand(submitCmd(), getCmd(), deleteCmd(), tokenCmd(), loginCmd())
}

// parseRating sends numeric-looking ratings as JSON numbers and anything else as a string.
func parseRating(v string) models.Rating {
	var n json.Number
	if err := json.Unmarshal([]byte(v), &n); err == nil {
		return models.NumericRating(n.String())
	}
	return models.TextRating(v)
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <id> <rating> <comment...>",
		Short: "Submit or replace a feedback record",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"id":      args[0],
				"rating":  parseRating(args[1]),
				"comment": strings.Join(args[2:], " "),
			}
			result, err := newClient().submit(body)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Read a feedback record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().get(args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a feedback record (succeeds for unknown ids)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().delete(args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

// --- token ---

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an HS256 bearer token for local development",
		Long: "Issue a token signed with --secret, FEEDBACK_JWT_SECRET, or the key the server\n" +
			"derives from AES_SECRET_KEY when no JWT secret is configured.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secretFlag, _ := cmd.Flags().GetString("secret")
			scopes, _ := cmd.Flags().GetStringSlice("scope")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			save, _ := cmd.Flags().GetBool("save")

			var sc config.Config
			sc.Auth.JWTSecret = firstNonEmpty(secretFlag, os.Getenv("FEEDBACK_JWT_SECRET"))
			passphrase := os.Getenv("AES_SECRET_KEY")
			if sc.Auth.JWTSecret == "" && passphrase == "" {
				return fmt.Errorf("no signing secret: pass --secret or set FEEDBACK_JWT_SECRET or AES_SECRET_KEY")
			}
			secret, err := app.JWTSecret(sc, crypto.DeriveKey(passphrase))
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(secret, args[0], scopes, ttl)
			if err != nil {
				return err
			}
			if save {
				cfg.Token = tok
				if err := saveConfig(); err != nil {
					return fmt.Errorf("saving token: %w", err)
				}
				printSuccess("Token saved to " + configPath())
				return nil
			}
			printResult(map[string]any{
				"token":      tok,
				"subject":    args[0],
				"scope":      strings.Join(scopes, " "),
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			})
			return nil
		},
	}
	cmd.Flags().String("secret", "", "HMAC signing secret")
	cmd.Flags().StringSlice("scope", []string{auth.ScopeRead, auth.ScopeWrite, auth.ScopeDelete}, "Scopes to grant")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	cmd.Flags().Bool("save", false, "Store the token in the CLI config instead of printing it")
	return cmd
}

// --- login ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <token>",
		Short: "Save the server address and a bearer token to the CLI config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("address"); addr != "" {
				cfg.Address = addr
			}
			cfg.Token = args[0]
			if err := saveConfig(); err != nil {
				return err
			}
			printSuccess("Credentials saved to " + configPath())
			return nil
		},
	}
	cmd.Flags().String("address", "", "Server address, e.g. https://feedback.example.com")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
