package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gridchain/config"
	"gridchain/crypto"
	"gridchain/native/market"
	"gridchain/storage"
	"gridchain/storage/marketstore"
)

const defaultConfig = "./config.toml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set-config":
		runSetConfig(os.Args[2:])
	case "pool":
		runPool(os.Args[2:])
	case "claim":
		runClaim(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gridctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  set-config -key <name> -value <n>   store a global tunable override")
	fmt.Fprintln(os.Stderr, "  pool -miner <addr>                  print a maker pool's state")
	fmt.Fprintln(os.Stderr, "  claim -owner <addr>                 release matured redemption payouts")
}

func openStore(configPath string) (*config.Config, *marketstore.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := marketstore.Open(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return cfg, store, func() { db.Close() }, nil
}

func newEngine(cfg *config.Config, store *marketstore.Store) (*market.Engine, crypto.Address, error) {
	authority, err := cfg.AuthorityAddress()
	if err != nil {
		return nil, crypto.Address{}, err
	}
	reserve, err := cfg.ReserveAddress()
	if err != nil {
		return nil, crypto.Address{}, err
	}
	params, err := cfg.Market.Params()
	if err != nil {
		return nil, crypto.Address{}, err
	}
	engine := market.NewEngine(authority, reserve, params)
	engine.SetState(store)
	engine.SetLedger(store)
	return engine, authority, nil
}

func runSetConfig(args []string) {
	fs := flag.NewFlagSet("set-config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	key := fs.String("key", "", "Config store key")
	value := fs.String("value", "", "Unsigned integer value")
	fs.Parse(args)

	if *key == "" || *value == "" {
		fatal(fmt.Errorf("set-config requires -key and -value"))
	}
	parsed, err := strconv.ParseUint(*value, 10, 64)
	if err != nil {
		fatal(fmt.Errorf("invalid value %q: %w", *value, err))
	}

	cfg, store, closeDB, err := openStore(*configPath)
	if err != nil {
		fatal(err)
	}
	defer closeDB()

	engine, authority, err := newEngine(cfg, store)
	if err != nil {
		fatal(err)
	}
	if err := engine.SetConfig(authority, *key, parsed); err != nil {
		fatal(err)
	}
	fmt.Printf("%s = %d\n", *key, parsed)
}

func runPool(args []string) {
	fs := flag.NewFlagSet("pool", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	miner := fs.String("miner", "", "Miner account address")
	fs.Parse(args)

	minerAddr, err := crypto.DecodeAddress(*miner)
	if err != nil {
		fatal(fmt.Errorf("invalid miner address: %w", err))
	}

	_, store, closeDB, err := openStore(*configPath)
	if err != nil {
		fatal(err)
	}
	defer closeDB()

	maker, err := store.GetMaker(minerAddr)
	if err != nil {
		fatal(err)
	}
	if maker == nil {
		fatal(fmt.Errorf("no pool for miner %s", minerAddr))
	}
	shares, err := store.SharesByMiner(minerAddr)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("miner:          %s\n", maker.Miner)
	fmt.Printf("total staked:   %s\n", maker.TotalStaked)
	fmt.Printf("total weight:   %s\n", maker.TotalWeight.FloatString(6))
	fmt.Printf("current rate:   %s\n", maker.CurrentRate.FloatString(6))
	fmt.Printf("miner rate:     %s\n", maker.MinerRate.FloatString(6))
	fmt.Printf("benchmark raw:  %d\n", maker.BenchmarkStakeRate)
	for _, share := range shares {
		fmt.Printf("  share %s weight %s\n", share.Owner, share.Weight.FloatString(6))
	}
}

func runClaim(args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	owner := fs.String("owner", "", "Account address to release matured payouts for")
	fs.Parse(args)

	ownerAddr, err := crypto.DecodeAddress(*owner)
	if err != nil {
		fatal(fmt.Errorf("invalid owner address: %w", err))
	}

	_, store, closeDB, err := openStore(*configPath)
	if err != nil {
		fatal(err)
	}
	defer closeDB()

	released, err := store.ClaimMatured(ownerAddr, time.Now().Unix())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("released %s\n", released)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
