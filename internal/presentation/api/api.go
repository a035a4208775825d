package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/hilthontt/parley/docs"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	auditHandler "github.com/hilthontt/parley/internal/presentation/handler/audit"
	healthHandler "github.com/hilthontt/parley/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/parley/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/parley/internal/presentation/handler/rooms"
	translateHandler "github.com/hilthontt/parley/internal/presentation/handler/translate"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config           configs.Config
	roomHandler      *roomHandler.Handler
	messagesHandler  *messagesHandler.Handler
	translateHandler *translateHandler.Handler
	healthHandler    *healthHandler.Handler
	auditHandler     *auditHandler.Handler
	logger           logging.Logger
	ratelimiter      ratelimiter.Limiter
	metrics          *metrics.Metrics
	sentry           *sentryhttp.Handler
}

type Handlers struct {
	Rooms     *roomHandler.Handler
	Messages  *messagesHandler.Handler
	Translate *translateHandler.Handler
	Health    *healthHandler.Handler
	// Audit is optional; the audit route is only mounted when it is set.
	Audit *auditHandler.Handler
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	app := &Application{
		config:           config,
		roomHandler:      handlers.Rooms,
		messagesHandler:  handlers.Messages,
		translateHandler: handlers.Translate,
		healthHandler:    handlers.Health,
		auditHandler:     handlers.Audit,
		logger:           logger,
		ratelimiter:      ratelimiter,
		metrics:          metrics,
	}
	if config.Sentry.DSN != "" {
		app.sentry = sentryhttp.New(sentryhttp.Options{
			Repanic:         true,
			WaitForDelivery: false,
			Timeout:         5 * time.Second,
		})
	}
	return app
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(app.recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)
	r.Use(app.rateLimiterMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/rooms/{roomId}", func(r chi.Router) {
			r.Post("/join", app.roomHandler.JoinRoomHandler)
			r.Post("/heartbeat", app.roomHandler.HeartbeatHandler)
			r.Post("/leave", app.roomHandler.LeaveHandler)
			r.Get("/presence", app.roomHandler.GetPresenceHandler)
			r.Delete("/presence", app.roomHandler.ClearPresenceHandler)
			r.Get("/typing", app.roomHandler.GetTypingHandler)
			r.Get("/ws", app.roomHandler.SubscribeHandler)

			r.Get("/messages", app.messagesHandler.GetMessagesHandler)
			r.Post("/messages", app.messagesHandler.SendMessageHandler)
			r.Delete("/messages", app.messagesHandler.ClearMessagesHandler)
			r.Patch("/messages/{messageId}", app.messagesHandler.UpdateMessageHandler)

			if app.auditHandler != nil {
				r.Get("/audit", app.auditHandler.GetAuditLogHandler)
			}
		})

		r.Post("/translate", app.translateHandler.TranslateHandler)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", app.metrics.Handler())
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return otelhttp.NewHandler(r, "parley",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until SIGINT or SIGTERM, then drains in-flight requests.
func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.healthHandler.SetUnhealthy()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"Signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"Addr": srv.Addr,
	})

	return nil
}
