// Package main provides the smith CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/smith/cli"
	"github.com/richinex/smith/config"
	"github.com/richinex/smith/storage"
)

var (
	// Global flags
	provider string
	model    string
	maxIter  int
	mode     string
	workDir  string
	web      bool
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "smith",
		Short: "An autonomous coding agent for your terminal",
		Long: `smith runs a language model in a loop with file and shell tools.

Every tool call that writes files or runs commands asks for approval first,
unless allowed by .smith/permissions.json or --mode.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", envOr("LLM_PROVIDER", "anthropic"), "LLM provider ("+strings.Join(config.SupportedProviders(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model name (default: provider's default)")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum model turns per task (default: AGENT_MAX_ITERATIONS or 10)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "Permission mode: prompt, allow, deny")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", "", "Working directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&web, "web", false, "Enable the fetch tool (asks for network permission per host)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs and tool output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		Model:    model,
		MaxIter:  maxIter,
		Mode:     mode,
		WorkDir:  workDir,
		Web:      web,
		Verbose:  verbose,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Run(cmd.Context(), strings.Join(args, " "), options(), nil, cli.StdIO())
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), sessionID, dbPath, options(), nil, cli.StdIO())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (default: SMITH_DB_PATH or "+config.DefaultDBPath+")")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(os.Stdout, verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func sessionsCmd() *cobra.Command {
	var dbPath string

	withStore := func(fn func(ctx context.Context, store storage.ConversationStorage, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				path = envOr("SMITH_DB_PATH", config.DefaultDBPath)
			}
			store, err := storage.OpenSqlite(path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()
			return fn(cmd.Context(), store, args)
		}
	}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat sessions",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: SMITH_DB_PATH or "+config.DefaultDBPath+")")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, store storage.ConversationStorage, args []string) error {
				return cli.ListSessions(ctx, store, os.Stdout)
			}),
		},
		&cobra.Command{
			Use:   "show [session]",
			Short: "Print a session's messages",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, store storage.ConversationStorage, args []string) error {
				return cli.ShowSession(ctx, store, args[0], os.Stdout, cli.TerminalWidth(os.Stdout))
			}),
		},
		&cobra.Command{
			Use:   "delete [session]",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, store storage.ConversationStorage, args []string) error {
				return cli.DeleteSession(ctx, store, args[0], os.Stdout)
			}),
		},
	)

	return cmd
}
