// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/analytics"
	"github.com/luxfi/samizdat/pkg/client"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/renderer"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/tags"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

	var err error
	switch command {
	case "keygen":
		err = keygen()
	case "register":
		err = register()
	case "policy":
		err = checkPolicy()
	case "play":
		err = play()
	case "balance":
		err = balance()
	case "version":
		fmt.Printf("samizdat-renderer %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("samizdat-renderer - sign and report ad plays for a screen")
	fmt.Println("\nUsage:")
	fmt.Println("  samizdat-renderer <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  keygen    Derive a screen signing key from a master seed")
	fmt.Println("  register  Register the screen with the settlement server")
	fmt.Println("  policy    Check a tag set against a content policy")
	fmt.Println("  play      Pick campaigns and report plays")
	fmt.Println("  balance   Show a wallet's accumulated payouts")
	fmt.Println("  version   Show version information")
	fmt.Println("\nCommon Options:")
	fmt.Println("  --server <url>         Settlement API (default: http://localhost:8080)")
	fmt.Println("  --seed-file <path>     Hex-encoded master seed")
	fmt.Println("  --owner <id>           Owner wallet that receives payouts")
	fmt.Println("  --screen-id <n>        Screen number under the owner")
	fmt.Println("  --blocked <tags>       Comma-separated categories to refuse")
	fmt.Println("  --required <tags>      Comma-separated categories to insist on")
}

type screenFlags struct {
	server   *string
	seedFile *string
	owner    *string
	screenID *uint64
}

func addScreenFlags() screenFlags {
	return screenFlags{
		server:   flag.String("server", "http://localhost:8080", "Settlement API base URL"),
		seedFile: flag.String("seed-file", "", "Hex-encoded master seed file"),
		owner:    flag.String("owner", "", "Owner wallet ID (hex)"),
		screenID: flag.Uint64("screen-id", 1, "Screen number under the owner"),
	}
}

// resolve derives the screen's address and key.
func (f screenFlags) resolve() (owner, screen ids.ID, r renderer.Config, err error) {
	if *f.owner == "" {
		return owner, screen, r, errors.New("--owner is required")
	}
	if owner, err = ids.FromString(*f.owner); err != nil {
		return owner, screen, r, fmt.Errorf("--owner: %w", err)
	}
	seed, err := readSeed(*f.seedFile)
	if err != nil {
		return owner, screen, r, err
	}
	_, priv, err := renderer.DeriveScreenKey(seed, owner, *f.screenID)
	if err != nil {
		return owner, screen, r, err
	}
	screen = accounts.ScreenAddress(owner, *f.screenID)
	return owner, screen, renderer.Config{Screen: screen, Key: priv}, nil
}

func readSeed(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("--seed-file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	return seed, nil
}

func parsePolicy(blocked, required string) (renderer.Policy, error) {
	var (
		p   renderer.Policy
		err error
	)
	if p.Blocked, err = tags.ParseList(blocked); err != nil {
		return p, fmt.Errorf("--blocked: %w", err)
	}
	if p.Required, err = tags.ParseList(required); err != nil {
		return p, fmt.Errorf("--required: %w", err)
	}
	return p, nil
}

func keygen() error {
	f := addScreenFlags()
	newSeed := flag.Bool("new-seed", false, "Write a fresh random seed to --seed-file first")
	flag.Parse()

	if *newSeed {
		if *f.seedFile == "" {
			return errors.New("--seed-file is required")
		}
		seed := make([]byte, renderer.MinSeedLen)
		if _, err := rand.Read(seed); err != nil {
			return err
		}
		if err := os.WriteFile(*f.seedFile, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
			return err
		}
		fmt.Printf("Seed written to %s\n", *f.seedFile)
	}

	_, screen, cfg, err := f.resolve()
	if err != nil {
		return err
	}
	r, err := renderer.New(cfg, nil, log.NoOp())
	if err != nil {
		return err
	}
	fmt.Printf("Screen:      %s\n", screen)
	fmt.Printf("Signing key: %s\n", r.KeyID())
	return nil
}

func register() error {
	f := addScreenFlags()
	width := flag.Uint("width", 1920, "Display width in pixels")
	height := flag.Uint("height", 1080, "Display height in pixels")
	location := flag.String("location", "", "Free-form location label")
	flag.Parse()

	owner, _, cfg, err := f.resolve()
	if err != nil {
		return err
	}
	r, err := renderer.New(cfg, nil, log.NoOp())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	entry, err := client.NewClient(*f.server).WithCaller(owner).CreateScreen(ctx, &settlement.CreateScreenRequest{
		ScreenID:   *f.screenID,
		SigningKey: r.KeyID(),
		Dimensions: accounts.Dimensions{Width: uint16(*width), Height: uint16(*height)},
		Location:   *location,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered screen %s (%s)\n", entry.ID, entry.Screen.Dimensions)
	return nil
}

func checkPolicy() error {
	blocked := flag.String("blocked", "", "Categories to refuse")
	required := flag.String("required", "", "Categories to insist on")
	mask := flag.String("tags", "", "Categories carried by the campaign")
	flag.Parse()

	p, err := parsePolicy(*blocked, *required)
	if err != nil {
		return err
	}
	m, err := tags.ParseList(*mask)
	if err != nil {
		return fmt.Errorf("--tags: %w", err)
	}
	verdict := "deny"
	if p.Allows(m) {
		verdict = "allow"
	}
	fmt.Printf("%s: campaign [%s] under blocked [%s] required [%s]\n", verdict, m, p.Blocked, p.Required)
	return nil
}

func play() error {
	f := addScreenFlags()
	blocked := flag.String("blocked", "", "Categories to refuse")
	required := flag.String("required", "", "Categories to insist on")
	count := flag.Int("count", 1, "Plays to report; 0 runs until interrupted")
	interval := flag.Duration("interval", 15*time.Second, "Pause between plays")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	_, _, cfg, err := f.resolve()
	if err != nil {
		return err
	}
	if cfg.Policy, err = parsePolicy(*blocked, *required); err != nil {
		return err
	}
	logger, err := log.NewWithLevel(*logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	r, err := renderer.New(cfg, client.NewClient(*f.server), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := r.Sync(ctx); err != nil {
		return fmt.Errorf("sync screen: %w", err)
	}

	for played := 0; *count == 0 || played < *count; played++ {
		if played > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
		receipt, err := r.PlayNext(ctx)
		switch {
		case errors.Is(err, renderer.ErrNoEligibleAd):
			fmt.Println("No eligible campaign")
			continue
		case err != nil:
			fmt.Printf("Play rejected: %v\n", err)
			continue
		}
		fmt.Printf("Settled nonce %d on ad %s: +%s\n", receipt.Nonce, receipt.Ad.Short(), analytics.FormatUnits(receipt.Amount))
	}
	return nil
}

func balance() error {
	server := flag.String("server", "http://localhost:8080", "Settlement API base URL")
	wallet := flag.String("wallet", "", "Wallet ID (hex)")
	flag.Parse()

	id, err := ids.FromString(*wallet)
	if err != nil {
		return fmt.Errorf("--wallet: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	resp, err := client.NewClient(*server).Balance(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Wallet:  %s\n", resp.Wallet)
	fmt.Printf("Balance: %s (%d base units)\n", resp.Units, resp.Balance)
	return nil
}
