package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "Listen address")
		bidders      = flag.Int("bidders", 3, "Number of bidders")
		slotDuration = flag.Duration("slot-duration", 500*time.Millisecond, "Slot duration")
		reserve      = flag.Uint64("reserve", 10, "Auction reserve price")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orchestrator := NewOrchestrator(&OrchestratorConfig{
		Addr:         *addr,
		Bidders:      *bidders,
		SlotDuration: *slotDuration,
		Reserve:      *reserve,
	})

	if err := orchestrator.Deploy(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Deployment failed: %v\n", err)
		os.Exit(1)
	}
	defer orchestrator.Shutdown()

	if err := orchestrator.RunAuction(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Auction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	if err := orchestrator.RunRoulette(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Roulette failed: %v\n", err)
		os.Exit(1)
	}
}
