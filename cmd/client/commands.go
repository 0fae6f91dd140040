package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/spf13/cobra"
)

type appKey struct{}

// newRootCmd builds the command tree. The returned func closes session storage opened by
// whichever command ran, and must be called after Execute whether or not it failed.
func newRootCmd() (*cobra.Command, func() error) {
	var a *app

	root := &cobra.Command{
		Use:           "authclient",
		Short:         "Log in to the API and make authenticated requests",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c := config.New()
			setupLogging(c.GetEnv())

			var err error
			a, err = newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			cmd.SetContext(withApp(cmd.Context(), a))
			return nil
		},
	}

	root.AddCommand(newLoginCmd(), newLogoutCmd(), newStatusCmd(), newRequestCmd())
	closeApp := func() error {
		if a == nil {
			return nil
		}
		err := a.Close()
		a = nil
		return err
	}
	return root, closeApp
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an email and password for an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			a := appFrom(cmd.Context())
			attempt := a.login.Login(cmd.Context(), email, password)
			if err := attempt.Wait(cmd.Context()); err != nil {
				return err
			}
			state := a.store.State()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in, token expires %s\n", state.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", os.Getenv("AUTH_PASSWORD"), "account password (defaults to $AUTH_PASSWORD)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appFrom(cmd.Context()).login.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd.Context())
			displayAppname(a.config.GetAppName())

			state := a.store.State()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API:       %s\n", a.config.GetAPIURL())
			fmt.Fprintf(out, "State:     %s\n", state.Phase())
			if state.Phase() != sessions.Authenticated {
				return nil
			}
			fmt.Fprintf(out, "Expires:   %s\n", state.ExpiresAt().Format(time.RFC3339))
			fmt.Fprintf(out, "Expired:   %t\n", state.IsExpiredWithin(time.Now(), a.config.GetTokenExpiryBuffer()))
			return nil
		},
	}
}

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request METHOD ROUTE",
		Short: "Make an authenticated API request",
		Long: `Make an authenticated request against the API's resource routes.

The stored token is refreshed first if it is about to expire, and once more
if the API answers 401. Validation errors are printed per field.

Examples:
  authclient request GET me
  authclient request GET posts --query page=2 --query include=author
  authclient request PATCH users/1 --data '{"data":{"type":"users","id":"1","attributes":{"name":"Jo"}}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			queryPairs, _ := cmd.Flags().GetStringArray("query")
			fields, _ := cmd.Flags().GetStringSlice("field")

			spec := gateway.RequestSpec{Method: args[0], Route: args[1]}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				spec.Body = json.RawMessage(data)
			}
			query, err := parseQuery(queryPairs)
			if err != nil {
				return err
			}
			spec.Query = query

			resp, err := appFrom(cmd.Context()).gateway.Do(cmd.Context(), spec)
			if err != nil {
				for _, field := range fields {
					if msg := gateway.ErrorFromPointer(err, field); msg != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
					}
				}
				if errors.Is(err, gateway.ErrSessionEnded) {
					return fmt.Errorf("session ended, run login again: %w", err)
				}
				return err
			}
			_, err = cmd.OutOrStdout().Write(resp.Body)
			return err
		},
	}
	cmd.Flags().String("data", "", "JSON:API request body")
	cmd.Flags().StringArray("query", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringSlice("field", nil, "attribute names whose validation errors should be printed")
	return cmd
}

func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --query %q, expected key=value", p)
		}
		values.Add(k, v)
	}
	return values, nil
}
