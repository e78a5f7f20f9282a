package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotiminicol/ijeuwa/stubapi"
	"github.com/rotiminicol/ijeuwa/types"
)

var stubSeed bool

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run the in-memory fake API",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := stubapi.New(stubapi.Options{Secret: cfg.Stub.Secret, Logger: logger})
		if err != nil {
			return err
		}
		if stubSeed {
			if err := seed(srv); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(cfg.Stub.Addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down stub api")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	stubCmd.Flags().BoolVar(&stubSeed, "seed", false, "create demo users bob and alice (password: password)")
}

func seed(srv *stubapi.Server) error {
	for _, name := range []string{"bob", "alice"} {
		if _, err := srv.CreateUser(types.Credentials{Username: name, Password: "password", Email: name + "@example.test"}); err != nil {
			return errors.Wrapf(err, "seed %s", name)
		}
	}
	if _, err := srv.Notify("bob", "alice", types.NotificationFollow, ""); err != nil {
		return err
	}
	if _, err := srv.Notify("bob", "alice", types.NotificationLike, "first post"); err != nil {
		return err
	}
	logger.Info("seeded demo data", zap.Strings("users", []string{"bob", "alice"}))
	return nil
}
