package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/netplus/netprep/internal/devserver"
	"github.com/netplus/netprep/internal/logging"
	"github.com/netplus/netprep/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	logger, closeLog, err := logging.New(logging.Options{Level: slog.LevelDebug, Console: os.Stdout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "devserver",
		Short:   "Local Netprep API backend for development",
		Version: version.WithApp(version.Detailed()),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := devserver.DefaultConfig()
			v.SetEnvPrefix("NETPREP_DEVSERVER")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := v.Unmarshal(cfg); err != nil {
				return fmt.Errorf("config decode: %w", err)
			}

			srv, err := devserver.New(cfg, devserver.WithLogger(slog.Default()))
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			slog.Info("demo account", "email", devserver.DemoEmail, "password", devserver.DemoPassword)
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	defaults := devserver.DefaultConfig()
	cmd.Flags().StringP("bind", "b", defaults.Addr, "Address to bind the server")
	cmd.Flags().String("base-path", defaults.BasePath, "Path prefix of every route")
	cmd.Flags().String("rate", defaults.RateLimit, "Rate limit per client, e.g. 600-M")
	cmd.Flags().Duration("access-expiry", defaults.AccessTokenExpiry, "Access token lifetime")
	cmd.Flags().Duration("refresh-expiry", defaults.RefreshTokenExpiry, "Refresh token lifetime")

	v.BindPFlag("addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("base_path", cmd.Flags().Lookup("base-path"))
	v.BindPFlag("rate_limit", cmd.Flags().Lookup("rate"))
	v.BindPFlag("access_token_expiry", cmd.Flags().Lookup("access-expiry"))
	v.BindPFlag("refresh_token_expiry", cmd.Flags().Lookup("refresh-expiry"))
	v.SetDefault("access_token_secret", defaults.AccessTokenSecret)
	v.SetDefault("refresh_token_secret", defaults.RefreshTokenSecret)
	v.SetDefault("token_issuer", defaults.TokenIssuer)

	return cmd
}
