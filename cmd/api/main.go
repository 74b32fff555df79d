package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"outsy/internal/auth"
	"outsy/internal/config"
	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/domain/storage"
	"outsy/internal/media"
	"outsy/internal/ratelimiter"
)

// NewLogger creates a new zap logger with color.
func NewLogger(env string) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel
	if env == "development" {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core).Sugar(), nil
}

var version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := NewLogger(cfg.Env)
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Directory
	dir, closeDir, err := directory.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeDir()

	// Media store
	var uploader media.Uploader = media.Disabled{}
	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			logger.Fatal(err)
		}
		uploader = cld
	} else {
		logger.Warn("CLOUDINARY_URL not set, places will be saved without images")
	}

	if cfg.IsProduction() && cfg.DirectoryBackend == config.BackendMemory {
		logger.Warn("memory directory in production, places are lost on restart")
	}

	store := storage.NewContainer(dir, uploader, logger)

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(cfg.RateLimiterRequests, cfg.RateLimiterWindow)
	if cfg.RateLimiterEnabled {
		go rateLimiter.Run(ctx)
	}

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(cfg.AuthTokenSecret, cfg.AuthTokenIss, cfg.AuthTokenIss)

	app := &application{
		config:        cfg,
		store:         store,
		catalog:       places.NewCatalog(),
		logger:        logger,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	go app.syncCatalog(ctx, catalogRetryDelay)

	// Metrics collected
	expvar.NewString("version").Set(version)
	expvar.Publish("places", expvar.Func(func() any {
		return app.catalog.Len()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()
	if err := app.run(mux); err != nil {
		logger.Fatal(err)
	}
}
