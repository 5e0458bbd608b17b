/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/logging"
	"github.com/dawgsconnect/jobboard/internal/mq"
	"github.com/dawgsconnect/jobboard/internal/server"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes job board events",
	Long: `Consumes events published by the API server: counts job applications
and delivers sign-up verification codes. Requires MQ_BACKEND.

	jobboard worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := server.OpenDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer deps.Close()
		if deps.Events == nil {
			return errors.New("worker requires MQ_BACKEND to be set")
		}

		errs := make(chan error, 2)
		go func() {
			errs <- deps.Jobs.CountApplications(ctx, deps.Events)
		}()
		go func() {
			errs <- deps.Events.Subscribe(ctx, mq.ChannelVerification, verificationMailer(logger))
		}()

		logger.WithField("backend", cfg.MQ.Backend).Info("worker started")
		for range 2 {
			if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
				stop()
				return err
			}
		}
		return nil
	},
}

// verificationMailer hands verification codes to the mail sink. Only the log
// sink exists, so codes are visible to whoever runs the worker.
func verificationMailer(logger logrus.FieldLogger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event mq.VerificationEvent
		if err := mq.Decode(msg, &event); err != nil {
			return mq.Permanent(err)
		}
		if event.Email == "" || event.Code == "" {
			return mq.Permanent(errors.New("verification event without email or code"))
		}
		logger.WithFields(logrus.Fields{
			"email": event.Email,
			"code":  event.Code,
		}).Info("verification code issued")
		return nil
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
