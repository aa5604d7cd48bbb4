package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/netplus/netprep/internal/apiclient"
	"github.com/spf13/cobra"
)

var errNoCredentials = errors.New("email and password are required")

func newLoginCmd() *cobra.Command {
	var email string
	var password string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Netprep API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("NETPREP_PASSWORD")
			}

			return runWithApp(cmd, func(a *app) error {
				rememberMe := remember || a.cfg.RememberMe
				login := func(email, password string) error {
					creds := apiclient.Credentials{Email: strings.TrimSpace(email), Password: password}
					_, err := a.client.Login(cmd.Context(), creds, rememberMe)
					return err
				}

				switch {
				case email != "" && password != "":
					if err := login(email, password); err != nil {
						return err
					}
				case isTerminal(cmd):
					loggedIn, err := runLoginTUI(loginTUIOpts{
						Email:     email,
						ServerURL: a.cfg.BaseURL,
						DataDir:   a.cfg.DataDir,
						Remember:  rememberMe,
						Submit:    login,
					}, tea.WithContext(cmd.Context()))
					if err != nil {
						return err
					}
					email = loggedIn
				default:
					if err := promptCredentials(cmd, &email, &password); err != nil {
						return err
					}
					if err := login(email, password); err != nil {
						return err
					}
				}

				scope := "this session"
				if rememberMe {
					scope = "this device"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s logged in as %s on %s\n", green("OK"), cyan(strings.TrimSpace(email)), scope)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (or NETPREP_PASSWORD)")
	cmd.Flags().BoolVarP(&remember, "remember", "r", false, "Keep the session on this device")
	return cmd
}

// isTerminal reports whether the command reads from an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// promptCredentials reads missing credentials line by line from a pipe or file.
func promptCredentials(cmd *cobra.Command, email, password *string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if *email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return errNoCredentials
		}
		*email = strings.TrimSpace(line)
	}
	if *password == "" {
		fmt.Fprint(out, "Password: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return errNoCredentials
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	if *email == "" || *password == "" {
		return errNoCredentials
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(a *app) error {
				a.client.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), green("OK"), "logged out")
				return nil
			})
		},
	}
}
