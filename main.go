package main

import (
	"context"
	"designlink/config"
	"designlink/core"
	"designlink/handlers/api/assets"
	"designlink/handlers/api/links"
	"designlink/handlers/auth"
	authMiddleware "designlink/middleware"
	"designlink/registry"
	"designlink/share"
	"designlink/stores"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

func setupRouter(cfg *config.Config, regs assets.Registries) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	resolver := share.NewResolver(regs[core.KindVector], regs[core.KindFont])

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/share", func(r chi.Router) {
			r.Post("/", links.HandleCreate(cfg.ShareBaseURL))
			r.Get("/{token}", links.HandleResolve(resolver))
		})

		r.Route("/assets/{kind}", func(r chi.Router) {
			r.Get("/", assets.HandleList(regs))
			r.Get("/stats", assets.HandleStats(regs))
			r.Get("/{id}", assets.HandleGetContent(regs))
			r.Post("/{id}/verify", assets.HandleVerify(regs))

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.AuthJWT)
				r.Post("/", assets.HandleUpload(regs))
				r.Delete("/", assets.HandleClear(regs))
				r.Patch("/{id}", assets.HandleRename(regs))
				r.Delete("/{id}", assets.HandleDelete(regs))
			})
		})
	})

	return r
}

// loadRegistries reads both collections up front. Corrupted data is
// logged and replaced by an empty collection; read errors are fatal.
func loadRegistries(ctx context.Context, store core.BlobStore, cfg *config.Config) (assets.Registries, error) {
	regs := assets.Registries{
		core.KindVector: registry.NewVectorRegistry(store, registry.Limits{MaxCount: cfg.VectorMaxCount, MaxBytes: cfg.VectorMaxBytes}),
		core.KindFont:   registry.NewFontRegistry(store, registry.Limits{MaxCount: cfg.FontMaxCount, MaxBytes: cfg.FontMaxBytes}),
	}
	for kind, reg := range regs {
		if _, err := reg.Load(ctx); err != nil {
			if errors.Is(err, registry.ErrCorruptStorage) {
				logrus.WithField("asset_kind", kind).WithError(err).Warn("Starting with an empty asset collection")
				continue
			}
			return nil, err
		}
	}
	return regs, nil
}

func waitForShutdown(srv *http.Server, closers ...io.Closer) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close resource")
		}
	}
}

func main() {
	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()
	auth.InitAuth(cfg.JWTSecret)

	store, err := stores.GetStore(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open storage")
	}
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	regs, err := loadRegistries(ctx, store, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load assets")
	}

	srv := &http.Server{
		Addr:              *listenAddress,
		Handler:           setupRouter(cfg, regs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, closers...)
}
