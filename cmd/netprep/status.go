package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/codec"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, session and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(a *app) error {
				pending, err := a.progress.Local().Pending(cmd.Context())
				if err != nil {
					return err
				}
				writeStatus(cmd.OutOrStdout(), a, len(pending), time.Now())
				return nil
			})
		},
	}
}

func writeStatus(w io.Writer, a *app, outbox int, now time.Time) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%-10s %s\n", label, value)
	}

	online := green("online")
	if !a.monitor.Status() {
		online = red("offline")
	}
	row("Server", a.cfg.BaseURL+" "+online)

	token := a.store.AccessToken()
	if token == "" {
		row("Account", yellow("not logged in"))
	} else {
		row("Account", cyan(userEmail(a.store.User())))
		if a.store.RememberMe() {
			row("Session", "remembered on this device")
		} else {
			row("Session", fmt.Sprintf("ends after %s of inactivity", humanDuration(a.cfg.InactivityTimeout)))
		}
		row("Token", tokenState(token, now))
	}

	row("Queue", fmt.Sprintf("%s waiting for the connection, %s in the outbox",
		plural(a.monitor.QueueSize(), "request"), plural(outbox, "progress update")))
	cfgPath := a.cfg.Path
	if cfgPath == "" {
		cfgPath = "defaults"
	}
	row("Config", cfgPath)
	row("Data", a.cfg.DataDir)
}

func tokenState(token string, now time.Time) string {
	exp, err := auth.ExpiresAt(token)
	if err != nil {
		return "opaque, expiry unknown"
	}
	if !exp.After(now) {
		return red("expired " + humanize.RelTime(exp, now, "ago", "from now"))
	}
	return "expires " + humanize.RelTime(exp, now, "ago", "from now")
}

func userEmail(raw string) string {
	var u struct {
		Email string `json:"email"`
	}
	if raw == "" || codec.Unmarshal([]byte(raw), &u) != nil || u.Email == "" {
		return "unknown user"
	}
	return u.Email
}

func humanDuration(d time.Duration) string {
	if d < time.Second {
		return "no time"
	}
	return strings.TrimSpace(humanize.RelTime(time.Time{}, time.Time{}.Add(d), "", ""))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}
