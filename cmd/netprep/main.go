package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/netplus/netprep/internal/config"
	"github.com/netplus/netprep/internal/logging"
	"github.com/netplus/netprep/internal/version"
	"github.com/spf13/cobra"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netprep",
		Short:         "Netprep command line client",
		Version:       version.Detailed(),
		SilenceErrors: true,
	}

	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Netprep config file")
	cmd.PersistentFlags().StringP("server", "s", "", "API base URL (default "+config.DefaultBaseURL+")")
	cmd.PersistentFlags().StringP("datadir", "d", "", "Data directory (default "+config.DefaultDataDir+")")
	cmd.PersistentFlags().String("metrics-file", "", "Write request metrics in Prometheus text format to this file on exit")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newGetCmd(),
		newStatusCmd(),
		newProgressCmd(),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	logger, closeLog, err := logging.New(logging.Options{
		Level:    slog.LevelWarn,
		FilePath: config.DefaultLogFilePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = newRootCmd().ExecuteContext(ctx)
	stop()
	closeLog()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
