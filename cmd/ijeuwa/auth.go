package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with --username and --password and show the new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return errors.New("login needs --username")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Session().Await(ctx)
		if err != nil {
			return err
		}
		printSession(cmd, s)
		d := app.Guard().Decide(s, "/login")
		fmt.Fprintf(cmd.OutOrStdout(), "ROUTE    → /login redirects to %s\n", d.RedirectTo)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign in, sign out, and show the session after each step",
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return errors.New("logout needs --username")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Session().Await(ctx)
		if err != nil {
			return err
		}
		printSession(cmd, s)

		if err := app.Logout(ctx); err != nil {
			return err
		}
		printSession(cmd, app.Session().Peek())
		d := app.Navigate(ctx, "/home")
		fmt.Fprintf(cmd.OutOrStdout(), "ROUTE    → /home redirects to %s\n", d.RedirectTo)
		return nil
	},
}
