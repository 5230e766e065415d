package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/51302890/mcp-mem0/internal/config"
	"github.com/51302890/mcp-mem0/internal/factory"
	"github.com/51302890/mcp-mem0/internal/logger"
)

var (
	envFileFlag string
	userFlag    string
	rootCmd     = &cobra.Command{
		Use:           "memoryctl",
		Short:         "Operator CLI for the mem0 memory store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// withService loads settings, builds the memory service, runs fn and closes
// the service again.
func withService(cmd *cobra.Command, fn func(ctx context.Context, s *config.Settings, svc *factory.Service) error) error {
	s, log, err := load()
	if err != nil {
		return err
	}
	if userFlag == "" {
		userFlag = s.DefaultUserID
	}
	svc, err := factory.NewService(cmd.Context(), s, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(cmd.Context(), s, svc)
}

func load() (*config.Settings, zerolog.Logger, error) {
	var files []string
	if envFileFlag != "" {
		files = []string{envFileFlag}
	}
	s, err := config.Load(files...)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	l := logger.New("memoryctl", os.Stderr)
	// the CLI only reports problems unless asked otherwise
	level := logger.ParseLevel(s.LogLevel)
	if os.Getenv("LOG_LEVEL") == "" {
		level = zerolog.WarnLevel
	}
	logger.Install(l, level)
	return s, l, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&envFileFlag, "env-file", "e", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID (default DEFAULT_USER_ID)")

	addCmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Save text to memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runAdd(ctx, svc.Engine, userFlag, args[0], cmd.OutOrStdout())
			})
		},
	}
	rootCmd.AddCommand(addCmd)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by meaning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topk, _ := cmd.Flags().GetInt("topk")
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runSearch(ctx, svc.Engine, userFlag, args[0], topk, cmd.OutOrStdout())
			})
		},
	}
	searchCmd.Flags().IntP("topk", "k", 5, "Number of top results to return")
	rootCmd.AddCommand(searchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memories of a user, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runList(ctx, svc.Engine, userFlag, limit, cmd.OutOrStdout())
			})
		},
	}
	listCmd.Flags().IntP("limit", "n", 100, "Maximum number of memories")
	rootCmd.AddCommand(listCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <memory-id>",
		Short: "Delete one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runDelete(ctx, svc.Engine, args[0], cmd.OutOrStdout())
			})
		},
	}
	rootCmd.AddCommand(deleteCmd)

	historyCmd := &cobra.Command{
		Use:   "history <memory-id>",
		Short: "Show the change log of one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runHistory(ctx, svc.Engine, args[0], cmd.OutOrStdout())
			})
		},
	}
	rootCmd.AddCommand(historyCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every memory of a user; --history also clears the change log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			withHistory, _ := cmd.Flags().GetBool("history")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("reset deletes data; pass --yes to confirm")
			}
			return withService(cmd, func(ctx context.Context, _ *config.Settings, svc *factory.Service) error {
				return runReset(ctx, svc.Engine, userFlag, withHistory, cmd.OutOrStdout())
			})
		},
	}
	resetCmd.Flags().Bool("history", false, "Also clear the history log of all memories")
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
	rootCmd.AddCommand(resetCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the pgvector extension and collection table, then verify its dimension",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, log, err := load()
			if err != nil {
				return err
			}
			st, err := factory.NewStore(cmd.Context(), s, log)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "collection %q ready (vector(%d))\n", s.CollectionName, s.EmbeddingDims)
			return err
		},
	}
	rootCmd.AddCommand(migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
