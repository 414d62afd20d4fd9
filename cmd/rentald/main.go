package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewbaird/rentalops/internal/app"
	"github.com/matthewbaird/rentalops/internal/config"
	"github.com/matthewbaird/rentalops/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("RENTALOPS_CONFIG"), "path to a CUE or JSON config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	l, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}

	a, err := app.New(ctx, cfg, app.WithLogger(l))
	if err != nil {
		log.Fatalf("starting rentald: %v", err)
	}
	defer a.Close()

	l.Info("rentald started",
		"store", cfg.Store.Driver,
		"lock", cfg.Lock.Driver,
		"sweep_schedule", cfg.SweepSchedule,
		"proposal_validity_days", cfg.ProposalValidityDays)

	if err := a.Run(ctx); err != nil {
		l.Error("rentald stopped with error", "error", err)
		os.Exit(1)
	}
	l.Info("rentald stopped")
}
