package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/groovechat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	registry := server.NewRegistry(cfg.Rooms)
	log.Printf("Rooms ready: %v", registry.Names())

	hub := server.NewHub(cfg, registry)
	go hub.Run()

	server.CheckStaticAssets(cfg.StaticDir)

	router := server.SetupRoutes(hub, cfg.StaticDir)
	httpServer := server.CreateServer(cfg.Port, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	return hub.Shutdown(shutdownTimeout)
}
