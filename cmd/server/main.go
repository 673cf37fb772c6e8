package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/mock"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/notify"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/poll"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/status"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/ws"
)

const defaultTitle = "Network Inventory"

func main() {
	mockMode := flag.Bool("mock", false, "Use fabricated analysis results instead of the job-status endpoint")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	broadcaster := ws.NewBroadcaster(defaultTitle)
	registry := poll.NewRegistry(cfg.Poll, broadcaster)
	dispatcher := notify.NewDispatcher(broadcaster, broadcaster, cfg.Notify)

	var fetcher poll.Fetcher
	if *mockMode {
		log.Println("Starting in mock mode (fabricated analysis results)")
		fetcher = mock.NewFetcher().Snapshot
	} else {
		log.Printf("Using job-status endpoint at %s", cfg.Status.BaseURL)
		fetcher = status.NewClient(cfg.Status).Snapshot
	}

	server := ws.NewServer(cfg, registry, broadcaster, dispatcher, fetcher)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		registry.Shutdown()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, server.Router()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
