package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gramseva/mgnrega-tracker/internal/api"
	"github.com/gramseva/mgnrega-tracker/internal/datagov"
	"github.com/gramseva/mgnrega-tracker/internal/ingest"
	"github.com/gramseva/mgnrega-tracker/internal/query"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server with scheduled data refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		source := datagov.NewClient(cfg.DataGov, cfg.Ingest)
		pipeline := ingest.New(st, source, cfg.Ingest)
		service := query.NewService(st)
		server := api.NewServer(service, pipeline, cfg.Server)

		// Initial refresh in the background so the server comes up
		// immediately; a failed run leaves seed/fallback data in place.
		go func() {
			if err := pipeline.RefreshAll(ctx); err != nil {
				zap.L().Error("startup refresh failed", zap.Error(err))
			}
		}()

		// Scheduled refresh every six hours.
		scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
		_, err = scheduler.AddFunc(cfg.Ingest.CronSpec, func() {
			zap.L().Info("running scheduled data refresh")
			if err := pipeline.RefreshAll(ctx); err != nil {
				zap.L().Error("scheduled refresh failed", zap.Error(err))
			}
		})
		if err != nil {
			return eris.Wrapf(err, "schedule refresh %q", cfg.Ingest.CronSpec)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.Server.ShutdownTimeSecs)*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
