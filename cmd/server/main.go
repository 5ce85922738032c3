package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stickduel/backend/internal/config"
	"github.com/stickduel/backend/internal/httpapi"
	"github.com/stickduel/backend/internal/hub"
	"github.com/stickduel/backend/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogFile)
	defer func() { _ = log.Sync() }()

	h := hub.NewHub(context.Background(), log)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, log, cfg.Origins)
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		log.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	h.Inbox() <- hub.Shutdown{}
}
