package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"outsy/internal/auth"
	"outsy/internal/config"
	"outsy/internal/domain/places"
	"outsy/internal/domain/storage"
	"outsy/internal/ratelimiter"
)

type application struct {
	config        config.Config
	store         *storage.Container
	catalog       *places.Catalog
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(app.RateLimiterMiddleware)

	r.Route("/v1", func(r chi.Router) {
		// Long-lived; must not inherit the request timeout.
		r.Get("/places/live", app.livePlacesHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", app.healthCheckHandler)
			r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

			r.Route("/places", func(r chi.Router) {
				r.Get("/", app.listPlacesHandler)
				r.Get("/categories", app.listCategoriesHandler)
				r.With(app.AuthTokenMiddleware, app.RequireOwner).Post("/", app.createPlaceHandler)

				r.Route("/{placeID}/reviews", func(r chi.Router) {
					r.Get("/", app.getPlaceReviewsHandler)
					r.With(app.AuthTokenMiddleware).Post("/", app.createPlaceReviewHandler)
				})
			})

			r.Route("/owners/me", func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware, app.RequireOwner)
				r.Get("/places", app.ownerPlacesHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:        app.config.Addr,
		Handler:     mux,
		ReadTimeout: time.Second * 10,
		IdleTimeout: time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.Addr, "env", app.config.Env)

	return nil
}
