package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"holdem/internal/config"
	"holdem/internal/controller"
	"holdem/internal/logger"
	"holdem/internal/server"
	"holdem/internal/service"
	"holdem/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "holdem",
		Short: "Multi-table No-Limit Texas Hold'em engine",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cfg.DSN)
	if err != nil {
		return err
	}

	hub := server.NewHub(log)
	coord := service.NewCoordinator(st, hub, service.Config{
		ReadyTimeout:  cfg.ReadyTimeout,
		ActionTimeout: cfg.ActionTimeout,
		QueueSize:     cfg.QueueSize,
	}, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	players := controller.NewPlayerController(st)
	tables := controller.NewTableController(coord, st)
	games := controller.NewGameController(coord, st)
	stream := server.NewStreamHandler(st, hub, coord, log)

	api := router.Group("/api")
	players.Register(api)
	authed := api.Group("")
	authed.Use(controller.Auth(st))
	players.RegisterAuthed(authed)
	tables.Register(authed)
	games.Register(authed)

	router.GET("/ws/game/:id", stream.HandleGameStream)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	coord.Close()
	return nil
}
