package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"color-grade-agent/internal/api"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/parallel"
	"color-grade-agent/internal/service"
	"color-grade-agent/internal/storage"
	"color-grade-agent/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewStore(cfg.DataPath)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	hub := ws.NewHub(model.EventCCMFitted)
	go hub.Run()
	jobs := ws.NewJobHub()

	pool := parallel.NewPool(cfg.PixelWorkers)
	defer pool.Close()

	calibSvc, err := service.NewCalibrationService(cfg, store, hub)
	if err != nil {
		log.Fatalf("init calibration service: %v", err)
	}
	presetSvc, err := service.NewPresetService(cfg, store, hub)
	if err != nil {
		log.Fatalf("init preset service: %v", err)
	}
	gradeSvc := service.NewGradeService(cfg, store, hub, jobs, calibSvc, presetSvc, pool)

	router := api.NewRouter(cfg, hub, jobs, calibSvc, gradeSvc, presetSvc)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (%d pixel workers, %d frame workers)", cfg.ListenAddr, pool.Workers(), cfg.FrameWorkers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	gradeSvc.Close()
	hub.Stop()
}
