// Command ijeuwa drives the client core from a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotiminicol/ijeuwa/client"
	"github.com/rotiminicol/ijeuwa/config"
	"github.com/rotiminicol/ijeuwa/logging"
	"github.com/rotiminicol/ijeuwa/types"
)

var (
	cfgFile  string
	verbose  bool
	username string
	password string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ijeuwa",
	Short: "Session-gated navigation and query cache for the ijeuwa client",
	Long: `ijeuwa runs the non-visual core of the ijeuwa client.

It probes the session, decides which route a path renders, and keeps
server state in a query cache that mutations invalidate.

Use "ijeuwa stub" to run a local fake of the API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Log.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "sign in as this user first")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "password for --username")

	rootCmd.AddCommand(stubCmd, routeCmd, notificationsCmd, loginCmd, logoutCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp builds a client and signs in when --username is set.
func newApp(ctx context.Context) (*client.App, error) {
	app, err := client.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return app, nil
	}
	if _, err := app.Login(ctx, types.Credentials{Username: username, Password: password}); err != nil {
		app.Close()
		return nil, errors.Wrapf(err, "sign in as %s", username)
	}
	return app, nil
}

func printSession(cmd *cobra.Command, s types.Session) {
	who := "nobody"
	if s.Identity != nil {
		who = s.Identity.Username
	}
	fmt.Fprintf(cmd.OutOrStdout(), "SESSION  → %s (%s, version %d)\n", who, s.Status, s.Version)
}
