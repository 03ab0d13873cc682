// Package cmd provides CLI commands for the timelock engine.
//
// # Commands
//
// engine: Runs the HTTP service hosting the asset auction proxy and,
// optionally, the bit-roulette event.
//
//	go run ./cmd/engine --addr=:8080 --slot-duration=6s
//	go run ./cmd/engine --config=config.yaml --pg-dsn="postgres://..."
//
// bid-cli: CLI for interacting with a running engine service. Generates
// participant keys, registers assets, seals bids and parity guesses against
// a deadline slot and submits them.
//
//	go run ./cmd/bid-cli keygen
//	go run ./cmd/bid-cli register --key=<hex> --metadata="rare pressing" --deadline=120
//	go run ./cmd/bid-cli bid --key=<hex> --asset=<id> --amount=42 --deposit=50 --beacon-seed=dev
//
// # Configuration
//
// The engine command supports a YAML configuration file via the --config
// flag. Command-line flags override config file values.
//
// Example config:
//
//	listen_addr: ":8080"
//	metrics_addr: ":9090"
//	postgres_dsn: ""
//	beacon_seed: "dev"
//	slot_duration: 6s
//	auction:
//	  reserve_price: 1
//	  min_deposit: 1
//	roulette:
//	  enabled: true
//	  pool: 100
//	  min_deposit: 1
//	  interval: 10
package cmd
