package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/imroc/req/v3"
	"github.com/jmoiron/sqlx"
	"github.com/netplus/netprep/internal/apiclient"
	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/config"
	"github.com/netplus/netprep/internal/db"
	"github.com/netplus/netprep/internal/metrics"
	"github.com/netplus/netprep/internal/netstatus"
	"github.com/netplus/netprep/internal/progress"
	"github.com/netplus/netprep/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	scopeDurable = "durable"
	scopeSession = "session"
)

var ErrDataDirLocked = errors.New("data directory is in use by another netprep process")

// app is everything a command needs, opened once per invocation.
type app struct {
	cfg      *config.Config
	lock     *flock.Flock
	conn     *sqlx.DB
	metrics  *metrics.Metrics
	monitor  *netstatus.Monitor
	store    *auth.TokenStore
	client   *apiclient.Client
	progress *progress.Service
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.BindPFlag("base_url", cmd.Flags().Lookup("server"))
	v.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	v.BindPFlag("metrics_file", cmd.Flags().Lookup("metrics-file"))

	path := ""
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		path = f.Value.String()
	}
	return config.Load(v, path)
}

// runWithApp opens the app, holds the data-dir lock for the duration of fn and closes
// everything afterwards.
func runWithApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func openApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return nil, ErrDataDirLocked
	}

	schema := append([]string{storage.Schema}, progress.Schema...)
	conn, err := db.Open(schema, db.WithPath(cfg.DBPath()))
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	a := &app{cfg: cfg, lock: lock, conn: conn, metrics: metrics.New(nil)}
	a.store = auth.NewTokenStore(
		storage.NewSQLiteStorage(conn, scopeDurable),
		storage.NewSQLiteStorage(conn, scopeSession),
	)

	// the session scope outlives the process, so it ends after inactivity instead
	if !a.store.RememberMe() && cfg.InactivityTimeout > 0 && a.store.IsInactive(cfg.InactivityTimeout) {
		slog.Info("session expired after inactivity", "timeout", cfg.InactivityTimeout)
		a.store.Clear()
	}

	a.monitor = netstatus.New(
		netstatus.WithProbe(netstatus.HTTPProbe(req.C(), cfg.HealthURL(), cfg.ProbeTimeout)),
		netstatus.WithProbeInterval(cfg.ProbeInterval),
		netstatus.WithMaxAge(cfg.QueueMaxAge),
		netstatus.WithMaxRequeues(cfg.QueueMaxRequeues),
		netstatus.WithMetrics(a.metrics),
	)
	if !a.monitor.Check(cmd.Context()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s is unreachable, requests wait for the connection\n",
			yellow("OFFLINE"), cfg.BaseURL)
	}
	a.monitor.Start(cmd.Context())

	a.client, err = apiclient.New(cfg.BaseURL,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithMaxRetries(cfg.MaxRetries),
		apiclient.WithRetryBaseDelay(cfg.RetryBaseDelay),
		apiclient.WithTokenExpiryBuffer(cfg.TokenExpiryBuffer),
		apiclient.WithTokenStore(a.store),
		apiclient.WithMonitor(a.monitor),
		apiclient.WithMetrics(a.metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.progress = progress.NewService(a.client, progress.NewLocalStore(conn))
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil && a.store.AccessToken() != "" {
		a.store.TouchActivity()
	}
	if a.monitor != nil {
		a.monitor.Close()
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		slog.Warn("metrics textfile", "error", err)
	}
	err := a.conn.Close()
	if uerr := a.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

func printError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(w, "%s: interrupted\n", yellow("STOPPED"))
		return
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.UserMessage
		if msg == "" {
			msg = apiErr.Message
		}
		fmt.Fprintf(w, "%s: %s %s\n", red("ERROR"), msg, cyan("["+string(apiErr.Code)+"]"))
		return
	}
	fmt.Fprintf(w, "%s: %s\n", red("ERROR"), err)
}
