package cmd

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/studio2230704/technical-analysis-dashboard/internal/gateway"
)

var (
	serveAddr        string
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API, alert stream and scheduler",
	Long: `Start the HTTP API (/api/indicators, /api/signals, /api/watchlist,
/api/alerts), the /ws alert stream, /metrics and /healthz, and run the
alert schedule in the same process.

With Redis enabled, alerts reach websocket clients through Redis Pub/Sub so
that several instances share one stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve only; do not run alert checks")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{hub: true})
	if err != nil {
		return err
	}
	defer a.Close()

	hub := a.hub
	if a.redis != nil {
		go gateway.NewPubSubRouter(hub, a.redis).Run(ctx)
	}
	go hub.Run(ctx)
	a.startLiveness(ctx)

	if !serveNoScheduler {
		sch, err := a.svc.Start(ctx)
		if err != nil {
			return err
		}
		defer sch.Stop()
	}

	mux := http.NewServeMux()
	api := &gateway.API{
		Backend:   a.svc,
		Watchlist: a.watchlist,
		Hub:       hub,
		Metrics:   a.metrics,
		Health:    a.health,
		Gatherer:  a.registry,
	}
	api.RegisterRoutes(mux)

	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[tad] listening on %s", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Println("[tad] shutting down...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
