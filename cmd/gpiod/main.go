package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fkcurrie/bcmgpio/internal/config"
	"github.com/fkcurrie/bcmgpio/internal/dispatch"
	"github.com/fkcurrie/bcmgpio/internal/server"
	"github.com/fkcurrie/bcmgpio/pkg/gpio"
	"github.com/fkcurrie/bcmgpio/pkg/mmap"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	logger := log.New(os.Stderr, "gpiod: ", log.LstdFlags)

	// Load configuration
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load configuration: %v", err)
		}
	}

	// Map the register block up front so a missing device fails at startup
	regs := mmap.NewRegisterMap(mmap.NewDeviceMapper(cfg.GPIO.Device), cfg.Base())
	if _, err := regs.Acquire(); err != nil {
		logger.Fatalf("Failed to map GPIO registers: %v", err)
	}
	defer func() {
		if err := regs.Release(); err != nil {
			logger.Printf("Failed to unmap GPIO registers: %v", err)
		}
	}()
	logger.Printf("Mapped GPIO registers at %#x via %s", cfg.Base(), cfg.GPIO.Device)

	table := dispatch.NewTable(gpio.NewController(regs, logger))
	srv := server.NewServer(cfg.Server, table, regs, logger)

	l, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		logger.Printf("Failed to listen on %s: %v", cfg.Server.Listen, err)
		return
	}

	// Handle shutdown gracefully
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("Serving on %s", l.Addr())
	if err := srv.Serve(ctx, l); err != nil {
		logger.Printf("Server stopped: %v", err)
		return
	}
	logger.Println("Shutting down...")
}
