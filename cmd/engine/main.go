// Command engine runs the timelock commit-reveal service: the auction proxy,
// the optional roulette event, the slot clock and the development beacon,
// all behind one HTTP server.
//
// # Usage
//
//	go run ./cmd/engine --config=engine.yaml
//	go run ./cmd/engine --addr=:8080 --slot-duration=6s
//
// Rounds are kept in memory unless --pg-dsn (or postgres_dsn in the config)
// points at a PostgreSQL database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideal-lab5/tlock-engine/api/httpserver"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/proxy"
	"github.com/ideal-lab5/tlock-engine/registry"
	"github.com/ideal-lab5/tlock-engine/roulette"
	"github.com/ideal-lab5/tlock-engine/services"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		addr         = flag.String("addr", "", "HTTP listen address")
		metricsAddr  = flag.String("metrics-addr", "", "Prometheus listen address")
		pgDSN        = flag.String("pg-dsn", "", "PostgreSQL DSN for round storage")
		slotDuration = flag.Duration("slot-duration", 0, "Wall-clock length of one slot")
		beaconSeed   = flag.String("beacon-seed", "", "Development beacon seed")
		enablePprof  = flag.Bool("pprof", false, "Enable pprof debug API")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *addr, *metricsAddr, *pgDSN, *slotDuration, *beaconSeed, *enablePprof)

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("Service failed", "err", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*services.Config, error) {
	if configPath != "" {
		return services.LoadConfig(configPath)
	}
	return services.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *services.Config, addr, metricsAddr, pgDSN string, slotDuration time.Duration, beaconSeed string, enablePprof bool) {
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if pgDSN != "" {
		cfg.PostgresDSN = pgDSN
	}
	if slotDuration != 0 {
		cfg.SlotDuration = services.Duration(slotDuration)
	}
	if beaconSeed != "" {
		cfg.BeaconSeed = beaconSeed
	}
	if enablePprof {
		cfg.EnablePprof = true
	}
}

func run(ctx context.Context, log *slog.Logger, cfg *services.Config) error {
	clock := oracle.NewSlotClock(cfg.SlotDuration.Std())
	clock.Start(ctx)

	beacon := oracle.NewBeacon([]byte(cfg.BeaconSeed))
	beacon.AdvanceTo(clock.CurrentSlot())
	beacon.Follow(ctx, clock)

	var store engine.RoundStore
	if cfg.PostgresDSN != "" {
		pg, err := services.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connecting round store: %w", err)
		}
		defer pg.Close()
		store = pg
		log.Info("Using PostgreSQL round store")
	} else {
		store = engine.NewMemStore()
		log.Info("Using in-memory round store")
	}

	ledger := engine.NewMemLedger()
	assets := registry.NewMemRegistry()
	p := proxy.New(beacon, ledger, store, assets)

	registrars := []httpserver.RouteRegistrar{
		services.NewAuctionService(log.With("service", "auction"), p),
	}

	if cfg.Roulette.Enabled {
		rcfg := roulette.Config{
			Pool:        engine.Amount(cfg.Roulette.Pool),
			MinDeposit:  engine.Amount(cfg.Roulette.MinDeposit),
			InitialSlot: oracle.SlotID(cfg.Roulette.InitialSlot),
			Interval:    oracle.SlotID(cfg.Roulette.Interval),
		}
		if rcfg.InitialSlot == 0 {
			rcfg.InitialSlot = clock.CurrentSlot() + rcfg.Interval
		}
		event := roulette.NewEvent(rcfg, beacon, ledger, store, "house")
		registrars = append(registrars, services.NewRouletteService(log.With("service", "roulette"), event))
		log.Info("Roulette event enabled", "initialSlot", rcfg.InitialSlot, "interval", rcfg.Interval)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, registrars...)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.RunInBackground()
	log.Info("Engine service started", "addr", cfg.ListenAddr, "slotDuration", cfg.SlotDuration.Std().String())

	<-ctx.Done()
	srv.Shutdown()
	return nil
}
