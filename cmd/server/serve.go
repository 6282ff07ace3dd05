package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/farm-marketplace/internal/handler"
	"github.com/iliyamo/farm-marketplace/internal/middleware"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/router"
)

var (
	serveMigrate  bool
	serveConsumer bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, cfg, bootstrapOpts{migrate: serveMigrate, redis: true})
		if err != nil {
			return err
		}
		defer a.Close()

		e := newEcho(a)
		addr := ":" + cfg.Port

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("listening", "addr", addr, "env", cfg.Env)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
		if serveConsumer && cfg.EventsEnabled {
			c := queue.NewConsumer(cfg.RabbitURL, cfg.EventsQueue, cfg.EventsLogDir, logger)
			g.Go(func() error {
				if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}

		err = g.Wait()
		logger.Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the schema before serving")
	serveCmd.Flags().BoolVar(&serveConsumer, "with-consumer", false, "also run the account event consumer (needs EVENTS_ENABLED)")
}

// newEcho wires handlers, guards and middleware onto a fresh Echo.
func newEcho(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Debug("request",
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	limiter := middleware.NewTokenBucket(cfg.RateLimit, a.rdb, logger)
	if a.rdb == nil {
		limiter = middleware.NewLocalTokenBucket(cfg.RateLimit, logger)
	}

	auth := handler.NewAuthHandler(a.accounts, logger)
	guards := router.Guards{
		Auth:      a.accounts,
		RateLimit: limiter,
		Cache:     middleware.NewRedisCache(cfg.Cache, a.rdb, logger),
	}
	router.RegisterRoutes(e, &handler.HealthHandler{DB: a.db})
	router.RegisterAuth(e, auth, guards)
	router.RegisterFarmer(e, auth, guards)
	return e
}
