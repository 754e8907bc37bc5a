package main

import (
	"context"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"portal-rest-api/internal/config"
	"portal-rest-api/internal/metrics"
	"portal-rest-api/internal/middleware"
	"portal-rest-api/internal/offline"
	"portal-rest-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// installRetryInterval spaces install attempts while the origin is down.
const installRetryInterval = 30 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting portal edge...")

	cfg := config.MustLoad()

	origin, err := url.Parse(cfg.Offline.Origin)
	if err != nil || origin.Host == "" {
		log.Fatalf("Invalid OFFLINE_ORIGIN %q", cfg.Offline.Origin)
	}

	var store offline.Storage
	if cfg.Offline.StorePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Offline.StorePath), 0o755); err != nil {
			log.Fatalf("Failed to create offline store directory: %v", err)
		}
		boltStore, err := offline.OpenBoltStorage(cfg.Offline.StorePath)
		if err != nil {
			log.Fatalf("Failed to open offline store: %v", err)
		}
		store = boltStore
		log.Printf("Offline store opened at %s", cfg.Offline.StorePath)
	} else {
		store = offline.NewMemoryStorage()
		log.Println("Offline store is in memory")
	}
	defer store.Close()

	manager, err := offline.NewManager(http.DefaultTransport, store, offline.Config{
		Origin:         origin,
		Version:        cfg.Offline.Version,
		Precache:       cfg.Offline.Precache,
		StaticMax:      cfg.Offline.StaticMax,
		DynamicMax:     cfg.Offline.DynamicMax,
		RefreshTimeout: cfg.Offline.RefreshTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize offline manager: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go startManager(ctx, manager)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		Transport: manager,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("[Edge] %s %s failed: %v", r.Method, r.URL.Path, err)
			http.Error(w, "origin unavailable", http.StatusBadGateway)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/edge/status", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]interface{}{
			"state":   manager.State().String(),
			"static":  manager.StaticCacheName(),
			"dynamic": manager.DynamicCacheName(),
			"origin":  origin.String(),
		})
	})
	r.Handle("/*", proxy)

	addr := ":" + strconv.Itoa(cfg.Offline.ListenPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Edge listening on %s, proxying %s", addr, origin)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down edge...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Background revalidations write to the store, so wait before closing it.
	manager.Wait()
	log.Println("Edge stopped")
}

// startManager installs and activates the manager, retrying while the origin
// is unreachable. Requests pass straight through until it is active.
func startManager(ctx context.Context, manager *offline.Manager) {
	for {
		err := manager.Start(ctx)
		if err == nil {
			log.Printf("[Edge] Offline cache %s active", manager.StaticCacheName())
			return
		}
		log.Printf("[Edge] Install failed, retrying in %s: %v", installRetryInterval, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(installRetryInterval):
		}
	}
}
