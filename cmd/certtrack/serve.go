package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bwservicing/certtrack/internal/handlers"
	"github.com/bwservicing/certtrack/internal/server"
	"github.com/bwservicing/certtrack/internal/services"
	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/pkg/scheduler"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = zap.L().Sync() }()
		log := zap.S().Named("serve")

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		st, err := store.Open(ctx, cfg, reg)
		if err != nil {
			return err
		}
		defer st.Close()

		sched := scheduler.NewScheduler(cfg.Workers.Count, scheduler.WithMetrics(scheduler.NewMetrics(reg)))
		defer sched.Close()

		certs := services.NewCertificateService(st)
		h := handlers.New(
			services.NewRecordService(st),
			certs,
			services.NewWorkOrderService(st, sched),
			services.NewExportService(certs),
			services.NewSQLService(st),
		)

		srv, err := server.NewServer(cfg, h.Register,
			server.WithMetrics(reg, reg),
			server.WithBackend(st.Driver().Name()),
		)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(ctx) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return <-errCh
	},
}
