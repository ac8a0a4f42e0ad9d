package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/you-humble/videovault/internal/transport"
)

type app struct {
	di  *dependencyInjector
	srv *http.Server
}

func New(ctx context.Context) *app {
	di := newDI()
	di.Logger()
	mux := http.NewServeMux()
	return &app{
		di: di,
		srv: &http.Server{
			Addr: di.Config().Addr,
			Handler: transport.WithRecover(
				transport.LogMiddleware(
					transport.MetricsMiddleware(di.Metrics(),
						transport.CORSMiddleware(di.Config().AllowedOrigins,
							di.Router(ctx).MountRoutes(mux),
						),
					),
				),
			),
		},
	}
}

func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.di.Dispatcher(ctx).Run(ctx)
	a.di.Janitor(ctx).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", a.srv.Addr))
		if e := a.srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
			errCh <- e
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		slog.Error("server error", slog.String("error", runErr.Error()))
	case <-ctx.Done():
		slog.Info("shutdown signal received")

		shutdownCtx, cancelShutdown := context.WithTimeout(
			context.Background(),
			a.di.Config().ShutdownTimeout,
		)
		defer cancelShutdown()

		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", slog.String("error", err.Error()))
			runErr = err
		}
	}

	// workers and connections are released on both paths
	cancel()
	a.di.Dispatcher(ctx).Stop()
	a.di.Close()

	if runErr == nil {
		slog.Info("server gracefully stopped")
	}
	return runErr
}
