/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/logging"
	"github.com/dawgsconnect/jobboard/internal/mq"
	"github.com/dawgsconnect/jobboard/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the job board API server",
	Long: `Starts the job board API server. Usage:

	jobboard server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to start server")
		}

		// With the in-process broker nobody else can consume job.applied.
		if strings.EqualFold(cfg.MQ.Backend, mq.BackendMemory) {
			go func() {
				if err := srv.Deps().Jobs.CountApplications(ctx, srv.Deps().Events); err != nil && !errors.Is(err, context.Canceled) {
					logger.WithError(err).Error("application counter stopped")
				}
			}()
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("shutdown failed")
			}
		}()

		logger.WithField("port", cfg.ServerPort).Info("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
