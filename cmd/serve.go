package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"civicsync/controllers"
	"civicsync/lifecycle"
	"civicsync/middlewares"
	"civicsync/notify"
	"civicsync/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.serveOn(ctx, ln, a.router())
}

// router wires the lifecycle controller and handlers into the gin engine.
func (a *app) router() *gin.Engine {
	if a.cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := []lifecycle.Option{}
	if a.leaderboard != nil {
		opts = append(opts, lifecycle.WithLeaderboard(a.leaderboard))
	}
	dispatcher := notify.NewDispatcher(a.store.Notifications(), a.log)
	lc := lifecycle.New(a.store, a.ledger, a.rewards, dispatcher, a.bus, a.log, opts...)

	var leaderboard controllers.LeaderboardCache
	if a.leaderboard != nil {
		leaderboard = a.leaderboard
	}
	h := controllers.New(a.store, lc, a.bus, leaderboard, a.ledger.Ranks(), controllers.AuthSettings{
		Secret:         a.cfg.JWTSecret,
		TokenTTL:       a.cfg.TokenTTL,
		Production:     a.cfg.Production(),
		Domain:         a.cfg.Domain,
		GovernmentCode: a.cfg.GovernmentCode,
	}, a.log)

	var limiter gin.HandlerFunc
	if a.redis != nil {
		limiter = middlewares.IssueRateLimiter(a.redis, a.cfg.IssueLimitKey, a.cfg.IssueLimit, a.log)
	}
	return routes.NewRouter(h, routes.Options{
		JWTSecret:    a.cfg.JWTSecret,
		CORSOrigins:  a.cfg.CORSOrigins,
		IssueLimiter: limiter,
		Log:          a.log,
	})
}

// serveOn runs router on ln until ctx is done. Request contexts are
// cancelled when shutdown starts so open event streams end.
func (a *app) serveOn(ctx context.Context, ln net.Listener, router http.Handler) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errc := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
