package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rotiminicol/ijeuwa/types"
)

var clearNotifications bool

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List, and optionally clear, the signed-in user's notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Notifications(ctx)
		if err != nil {
			return err
		}
		printNotifications(cmd, res.Data)

		if !clearNotifications {
			return nil
		}
		if err := app.ClearNotifications(ctx); err != nil {
			return err
		}
		res, err = app.Notifications(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "after clear:")
		printNotifications(cmd, res.Data)
		return nil
	},
}

func init() {
	notificationsCmd.Flags().BoolVar(&clearNotifications, "clear", false, "delete every notification")
}

func printNotifications(cmd *cobra.Command, list []types.Notification) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No notifications")
		return
	}
	for _, n := range list {
		line := fmt.Sprintf("%s  @%s", n.Type, n.From.Username)
		if n.Type == types.NotificationFollow {
			line += " followed you"
		} else {
			line += " liked your post"
		}
		if n.Post != nil && n.Post.Text != "" {
			line += fmt.Sprintf(": %q", n.Post.Text)
		}
		fmt.Fprintln(out, line)
	}
}
