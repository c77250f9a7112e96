package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"localchat/internal/catalog"
	"localchat/internal/config"
	"localchat/internal/httpapi"
	"localchat/internal/session"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ln, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&a.flags.Addr, "addr", "", "HTTP listen address (default "+config.Defaults().Addr+")")
	return cmd
}

// serve runs the daemon on ln until ctx is cancelled, then drains sessions
// and the HTTP server.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	store, err := a.settingsStore()
	if err != nil {
		return err
	}
	client := a.ollamaClient(store)
	cat := catalog.New(client,
		catalog.WithTTL(a.cfg.TagsTTL.D()),
		catalog.WithLogger(a.log.With().Str("component", "catalog").Logger()),
	)

	sessLog := a.log.With().Str("component", "session").Logger()
	reg := session.NewRegistry(session.Config{
		Streamer:    client,
		Publisher:   session.Publishers{session.LogPublisher{Logger: sessLog}, httpapi.MetricsPublisher{}},
		Logger:      &sessLog,
		BaseContext: ctx,
	})

	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(a.cfg.LogLevel)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetWebSocketOptions(0, 0, wsOrigins(a.cfg))
	httpapi.SetCORSOptions(a.cfg.CORS.Enabled, a.cfg.CORS.Origins, a.cfg.CORS.Methods, a.cfg.CORS.Headers)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Handler: httpapi.NewMux(httpapi.Deps{
			Streamer: client,
			Catalog:  cat,
			Registry: reg,
			Settings: store,
			Pinger:   client,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().
			Str("addr", ln.Addr().String()).
			Str("ollama", client.BaseURL()).
			Str("settings", store.Path()).
			Msg("localchatd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Sessions first so hijacked WebSocket connections are closed;
		// Shutdown does not track them.
		if err := reg.Close(sctx); err != nil {
			a.log.Warn().Err(err).Msg("sessions did not drain")
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// wsOrigins lists the origins admitted on /ws besides loopback pages and
// browser extensions.
func wsOrigins(cfg config.Config) []string {
	out := append([]string(nil), cfg.CORS.Origins...)
	if o := strings.TrimSpace(cfg.OllamaOrigin); o != "" {
		out = append(out, o)
	}
	return out
}
