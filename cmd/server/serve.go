package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/ai-chat-backend/internal/app"
	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/db"
)

func newServeCmd(cfg config.Config, log *zap.Logger) *cobra.Command {
	var opts struct {
		Addr    string
		Migrate bool
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Addr != "" {
				cfg.HTTPAddr = opts.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, opts.Migrate)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "run database migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger, migrate bool) error {
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if migrate {
		if err := db.Migrate(core.DB); err != nil {
			_ = core.Close()
			return err
		}
	}
	srv, err := app.NewServer(ctx, core)
	if err != nil {
		_ = core.Close()
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: streamed replies can run for minutes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
