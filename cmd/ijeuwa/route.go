package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route <path>",
	Short: "Probe the session and print what a path renders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		d, err := app.NavigateAwait(ctx, args[0])
		if err != nil {
			return err
		}
		printSession(cmd, app.Session().Peek())

		out := cmd.OutOrStdout()
		if d.Redirect() {
			fmt.Fprintf(out, "ROUTE    → %s redirects to %s\n", args[0], d.RedirectTo)
			return nil
		}
		fmt.Fprintf(out, "ROUTE    → %s renders %s\n", args[0], d.Page)
		for k, v := range d.Params {
			fmt.Fprintf(out, "PARAM    → %s = %s\n", k, v)
		}
		return nil
	},
}
