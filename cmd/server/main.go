package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-notes/pkg/simplenotes/api"
	"github.com/tendant/simple-notes/pkg/simplenotes/config"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	comps, err := cfg.Build(ctx, slog.Default())
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer comps.Close()

	slog.Info("Notes service configured",
		"project", cfg.ProjectName,
		"env", cfg.Environment,
		"database", cfg.DatabaseType,
		"storage", cfg.StorageType,
		"api_prefix", cfg.APIPrefix,
	)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	handler := api.NewHandler(comps.Service)

	var apiKeyMiddleware func(next http.Handler) http.Handler
	if cfg.APIKeySHA256 != "" {
		apiKeyMiddleware, err = middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{"key1": cfg.APIKeySHA256},
		})
		if err != nil {
			slog.Error("Failed initialize API Key middleware", "err", err)
			os.Exit(1)
		}
	}

	server.R.Route(cfg.APIPrefix, func(r chi.Router) {
		if comps.Metrics != nil {
			r.Use(comps.Metrics.Middleware)
		}
		if apiKeyMiddleware != nil {
			r.Use(apiKeyMiddleware)
		}
		r.Mount("/", handler.Routes())
	})

	// Short links stay public and outside the API prefix
	server.R.Get("/i/{code}", handler.RedirectShortURL)

	if comps.Metrics != nil {
		server.R.Handle("/metrics", comps.Metrics.Handler())
	}

	server.Run()
}
