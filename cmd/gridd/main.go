package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gridchain/config"
	"gridchain/native/market"
	"gridchain/observability/logging"
	"gridchain/storage"
	"gridchain/storage/marketstore"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	sweepInterval := flag.Duration("sweep-interval", time.Hour, "Delay between liquidation sweeps")
	once := flag.Bool("once", false, "Run a single liquidation sweep and exit")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GRID_ENV"))
	logger := logging.Setup("gridd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	authority, err := cfg.AuthorityAddress()
	if err != nil {
		logger.Error("Invalid authority account", slog.Any("error", err))
		os.Exit(1)
	}
	reserve, err := cfg.ReserveAddress()
	if err != nil {
		logger.Error("Invalid reserve account", slog.Any("error", err))
		os.Exit(1)
	}
	params, err := cfg.Market.Params()
	if err != nil {
		logger.Error("Invalid market parameters", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store, err := marketstore.Open(db, logger)
	if err != nil {
		logger.Error("Failed to open market store", slog.Any("error", err))
		os.Exit(1)
	}

	engine := market.NewEngine(authority, reserve, params)
	engine.SetState(store)
	engine.SetLedger(store)
	engine.SetPauses(cfg.Pauses)

	sweep := func() {
		if err := engine.Liquidate(authority); err != nil {
			logger.Error("Liquidation sweep failed", slog.Any("error", err))
			return
		}
		logger.Info("Liquidation sweep complete")
	}

	sweep()
	if *once {
		return
	}

	ticker := time.NewTicker(*sweepInterval)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("gridd running", "sweepInterval", sweepInterval.String(), "dataDir", cfg.DataDir)
	for {
		select {
		case <-ticker.C:
			sweep()
		case sig := <-stop:
			logger.Info("Shutting down", "signal", sig.String())
			return
		}
	}
}
