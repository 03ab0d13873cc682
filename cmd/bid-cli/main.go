// Command bid-cli interacts with a running engine service.
//
// # Commands
//
// keygen: Generate an Ed25519 participant key pair.
//
//	bid-cli keygen
//
// register: Register an asset and open its auction.
//
//	bid-cli register --key=<hex> --metadata="rare pressing" --reserve=10 --deadline=120
//
// bid: Seal a bid against the auction deadline and submit it.
//
//	bid-cli bid --key=<hex> --asset=<id> --amount=42 --deposit=50 --beacon-seed=dev
//
// guess: Seal a parity guess for the current roulette round and submit it.
//
//	bid-cli guess --key=<hex> --bit=1 --deposit=1 --beacon-seed=dev
//
// status: Show an auction's round state.
//
//	bid-cli status --asset=<id>
//
// Sealing needs the beacon seed, so bid and guess only work against the
// development beacon.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "keygen":
		err = runKeygen()
	case "register":
		err = runRegister(args)
	case "bid":
		err = runBid(args)
	case "guess":
		err = runGuess(args)
	case "status":
		err = runStatus(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: bid-cli <keygen|register|bid|guess|status> [flags]")
	fmt.Println("Run 'bid-cli <command> --help' for command flags.")
}

func runKeygen() error {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Printf("public key:  %s\n", pub.String())
	fmt.Printf("private key: %s\n", hex.EncodeToString(priv.Bytes()))
	return nil
}

func loadKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("--key is required")
	}
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	return crypto.NewPrivateKeyFromBytes(keyBytes), nil
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	var (
		endpoint   = fs.String("endpoint", "http://localhost:8080", "Engine service URL")
		keyHex     = fs.String("key", "", "Seller Ed25519 private key (hex)")
		metadata   = fs.String("metadata", "", "Asset metadata")
		reserve    = fs.Uint64("reserve", 1, "Reserve price")
		minDeposit = fs.Uint64("min-deposit", 1, "Minimum bid deposit")
		deadline   = fs.Uint64("deadline", 0, "Deadline slot")
	)
	fs.Parse(args)

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	if *metadata == "" {
		return fmt.Errorf("--metadata is required")
	}

	var resp services.RegisterAssetResponse
	err = postSigned(*endpoint+"/assets", key, &services.RegisterAssetRequest{
		Metadata:     []byte(*metadata),
		ReservePrice: *reserve,
		MinDeposit:   *minDeposit,
		Deadline:     *deadline,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("asset id: %s\n", resp.AssetID)
	return nil
}

func runBid(args []string) error {
	fs := flag.NewFlagSet("bid", flag.ExitOnError)
	var (
		endpoint   = fs.String("endpoint", "http://localhost:8080", "Engine service URL")
		keyHex     = fs.String("key", "", "Bidder Ed25519 private key (hex)")
		asset      = fs.String("asset", "", "Asset id")
		amount     = fs.Uint64("amount", 0, "Bid amount")
		deposit    = fs.Uint64("deposit", 0, "Deposit to escrow")
		beaconSeed = fs.String("beacon-seed", "", "Development beacon seed")
	)
	fs.Parse(args)

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	if *asset == "" {
		return fmt.Errorf("--asset is required")
	}

	var view engine.RoundView
	if err := getJSON(*endpoint+"/assets/"+*asset+"/round", &view); err != nil {
		return fmt.Errorf("fetching round: %w", err)
	}

	ciphertext, err := seal(*beaconSeed, uint64(view.Deadline), crypto.EncodeBidAmount(*amount))
	if err != nil {
		return err
	}

	var status map[string]string
	err = postSigned(*endpoint+"/assets/"+*asset+"/commit", key, &services.CommitRequest{
		Ciphertext: ciphertext,
		Deposit:    *deposit,
	}, &status)
	if err != nil {
		return err
	}
	fmt.Printf("bid sealed for slot %d: %s\n", view.Deadline, status["status"])
	return nil
}

func runGuess(args []string) error {
	fs := flag.NewFlagSet("guess", flag.ExitOnError)
	var (
		endpoint   = fs.String("endpoint", "http://localhost:8080", "Engine service URL")
		keyHex     = fs.String("key", "", "Participant Ed25519 private key (hex)")
		bit        = fs.Uint("bit", 0, "Parity guess (0 or 1)")
		deposit    = fs.Uint64("deposit", 1, "Deposit to escrow")
		beaconSeed = fs.String("beacon-seed", "", "Development beacon seed")
	)
	fs.Parse(args)

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	if *bit > 1 {
		return fmt.Errorf("--bit must be 0 or 1")
	}

	var round services.RouletteRoundResponse
	if err := getJSON(*endpoint+"/roulette/round", &round); err != nil {
		return fmt.Errorf("fetching round: %w", err)
	}

	ciphertext, err := seal(*beaconSeed, round.Deadline, crypto.EncodeBit(uint8(*bit)))
	if err != nil {
		return err
	}

	var status map[string]string
	err = postSigned(*endpoint+"/roulette/commit", key, &services.CommitRequest{
		Ciphertext: ciphertext,
		Deposit:    *deposit,
	}, &status)
	if err != nil {
		return err
	}
	fmt.Printf("guess sealed for slot %d: %s\n", round.Deadline, status["status"])
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var (
		endpoint = fs.String("endpoint", "http://localhost:8080", "Engine service URL")
		asset    = fs.String("asset", "", "Asset id")
	)
	fs.Parse(args)

	if *asset == "" {
		return fmt.Errorf("--asset is required")
	}
	var view engine.RoundView
	if err := getJSON(*endpoint+"/assets/"+*asset+"/round", &view); err != nil {
		return err
	}
	fmt.Printf("round %d: %s, deadline slot %d, %d commitments\n",
		view.ID, view.Status, view.Deadline, view.Commitments)
	return nil
}

func seal(beaconSeed string, slot uint64, plaintext []byte) ([]byte, error) {
	if beaconSeed == "" {
		return nil, fmt.Errorf("--beacon-seed is required for sealing")
	}
	beacon := oracle.NewBeacon([]byte(beaconSeed))
	sealed, err := crypto.Seal(beacon.SealingKeyFor(oracle.SlotID(slot)), slot, plaintext)
	if err != nil {
		return nil, err
	}
	return sealed.Bytes(), nil
}

func postSigned[T any, R any](url string, key crypto.PrivateKey, obj *T, out *R) error {
	signed, err := services.NewSigned(key, obj)
	if err != nil {
		return err
	}
	body, err := json.Marshal(signed)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON[R any](url string, out *R) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
