// The UDP notification bus with its HTTP admin trigger port.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mangahub/internal/protocols/udp"
	"mangahub/pkg/config"
	"mangahub/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "config file path")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	bus := udp.NewServer(cfg.UDP.Addr)
	if err := bus.Start(); err != nil {
		logger.Fatalf("notification bus: %v", err)
	}

	trigger := udp.NewTriggerServer(cfg.UDP.AdminAddr, bus)
	if err := trigger.Start(); err != nil {
		logger.Fatalf("admin trigger: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	trigger.Stop(ctx)
	bus.Stop()
	logger.Info("notification bus stopped")
}
