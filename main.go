package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/config"
	"lpr-service/internal/confirm"
	"lpr-service/internal/detector"
	httpapi "lpr-service/internal/http"
	"lpr-service/internal/parking"
	"lpr-service/internal/service"
	"lpr-service/internal/stream"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Int("cameras", len(cfg.Cameras)).Msg("configuration loaded")

	detectorClient := detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout, detector.PreviewHints{
		Width:   cfg.Preview.Width,
		Height:  cfg.Preview.Height,
		Quality: cfg.Preview.Quality,
	}, log)
	parkingClient := parking.NewClient(cfg.Parking.URL, cfg.Parking.Timeout, log)

	hub := broadcast.NewHub(log)
	workflow := confirm.NewWorkflow(parkingClient, hub, log)
	registry := stream.NewRegistry(cfg.Cameras, detectorClient, hub, workflow, cfg.Detection.Cooldown, stream.Options{
		MinConfidence:   cfg.Detection.MinConfidence,
		FrameSkip:       cfg.Detection.FrameSkip,
		PreviewInterval: cfg.Preview.Interval,
		AutoConfirm:     cfg.Detection.AutoEntryExit,
		StopTimeout:     cfg.Detection.StopTimeout,
	}, log)
	hub.SetSnapshot(func() broadcast.CamerasEvent {
		return broadcast.NewCamerasEvent(registry.Snapshot())
	})

	detectService := service.NewDetectService(detectorClient, cfg.Detection.MinConfidence, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := httpapi.NewHandler(registry, detectService, workflow, parkingClient, hub, log)
	handler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	for _, res := range registry.StopAll() {
		if !res.OK {
			log.Warn().Str("camera_id", res.CameraID).Str("error", res.Error).Msg("camera did not stop cleanly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced server shutdown")
	}

	log.Info().Msg("server stopped")
}
