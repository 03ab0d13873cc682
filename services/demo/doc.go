// Command demo runs a complete local engine deployment and plays through a
// sealed-bid auction and a bit-roulette round against it.
//
// The demo starts the HTTP service in-process with a fast slot clock and an
// in-memory ledger, then acts as the participants:
//   - A seller registers an asset, opening a Vickrey auction
//   - Several bidders seal random bids against the deadline slot and commit
//   - After the deadline the auction is closed and resolved
//   - The same participants guess bits in a roulette round
//
// Outcomes, payouts and final ledger balances are printed as they settle.
//
// # Usage
//
//	go run ./services/demo [flags]
//
// # Flags
//
//	--addr           Listen address (default: :8080)
//	--bidders        Number of bidders (default: 3)
//	--slot-duration  Slot duration (default: 500ms)
//	--reserve        Auction reserve price (default: 10)
package main
