package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/siemql/siemql/internal/metrics"
	"github.com/siemql/siemql/internal/session"
	"github.com/siemql/siemql/internal/web"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web front end",
		Long: `Serve the search page, the JSON API, the live audit feed and
Prometheus metrics. Each browser gets its own session, so follow-up
questions inherit context per analyst.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("host") {
				a.cfg.Web.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Web.Port, _ = cmd.Flags().GetInt("port")
			}
			noEvents, _ := cmd.Flags().GetBool("no-events")

			return runServer(ctx, a, !noEvents)
		},
	}

	cmd.Flags().IntP("port", "p", 5000, "HTTP server port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	cmd.Flags().Bool("no-events", false, "disable the live audit feed")

	return cmd
}

// runServer runs the web server and the bus subscribers until ctx ends.
func runServer(ctx context.Context, a *app, events bool) error {
	sessions, err := session.NewManager(a.cfg.Session, a.log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := metrics.NewEventSubscriber(a.metrics, a.bus).SubscribeToEvents(gctx); err != nil {
		a.log.Warn("Audit event metrics disabled", "error", err)
	}

	var hub *web.EventHub
	if events {
		hub = web.NewEventHub(a.bus, a.log)
		if err := hub.Start(gctx); err != nil {
			a.log.Warn("Live audit feed disabled", "error", err)
			hub = nil
		}
	}

	handler := web.NewHandler(a.orch, sessions, hub, a.log)
	handler.SetSessionGauge(a.metrics)
	srv := web.NewServer(a.cfg.Web, handler, a.metrics, a.log)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	a.log.Info("siemql serving",
		"addr", srv.Addr(),
		"index", a.orch.Index(),
		"bus", a.cfg.Bus.Type,
	)
	return g.Wait()
}
