package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blocktrace/blocktrace/internal/auth"
	"github.com/blocktrace/blocktrace/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login <credential>",
	Short: "Log in and store a session token",
	Long:  "Logs in with a Plug wallet principal or an Internet Identity delegation token and stores the session token for later commands.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		method, _ := cmd.Flags().GetString("method")
		token, s, err := env.Auth.Login(ctx, auth.Credentials{
			Method:     model.AuthMethod(method),
			Credential: args[0],
		})
		if err != nil {
			return err
		}
		if err := saveToken(cfg.Auth.TokenFile, token); err != nil {
			return err
		}

		formatSession(os.Stdout, s)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		token, err := loadToken(cfg.Auth.TokenFile)
		if err != nil {
			return err
		}
		if token != "" {
			if err := env.Auth.Logout(ctx, token); err != nil {
				return err
			}
		}
		if err := clearToken(cfg.Auth.TokenFile); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		formatSession(os.Stdout, s)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("method", "", "auth method (internet-identity, plug-wallet); default from config")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// formatSession writes a session summary to out.
func formatSession(out io.Writer, s *model.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Principal:\t%s\n", s.Principal)
	_, _ = fmt.Fprintf(w, "Method:\t%s\n", s.AuthMethod)
	_, _ = fmt.Fprintf(w, "Logged in:\t%s\n", s.LoginTime.Format("2006-01-02 15:04"))
	if !s.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Expires:\t%s\n", s.ExpiresAt.Format("2006-01-02 15:04"))
	} else {
		_, _ = fmt.Fprintf(w, "Expires:\tnever\n")
	}
	_, _ = fmt.Fprintf(w, "Session:\t%s\n", truncateID(s.ID))
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
