package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	flags "github.com/jessevdk/go-flags"

	swapd "github.com/farcasterd/swapd"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/build"
	"github.com/farcasterd/swapd/checkpoint"
	"github.com/farcasterd/swapd/config"
	"github.com/farcasterd/swapd/farcaster"
	"github.com/farcasterd/swapd/rpc"
	"github.com/farcasterd/swapd/wallet"
)

type options struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to farcaster.toml"`
	DataDir    string `short:"d" long:"datadir" description:"Override the configured data directory"`
	Testnet    bool   `long:"testnet" description:"Use testnet chain parameters"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Testnet {
		cfg.Testnet = true
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logWriter := build.NewRotatingLogWriter()
	if err := logWriter.InitLogRotator(
		cfg.LogDir+"/swapd.log", 10, 3,
	); err != nil {
		return fmt.Errorf("initializing log rotator: %w", err)
	}
	swapd.SetupLoggers(logWriter)

	store, err := checkpoint.Open(cfg.DataDir + "/swapd.db")
	if err != nil {
		return fmt.Errorf("opening checkpoint store: %w", err)
	}
	defer store.Close()

	walletSeed, peerdSecretKey, err := loadOrCreateSeeds(store)
	if err != nil {
		return fmt.Errorf("loading node secrets: %w", err)
	}
	secrets, err := wallet.NewNodeSecrets(walletSeed, peerdSecretKey, store)
	if err != nil {
		return fmt.Errorf("initializing node secrets: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := bus.NewRouter()
	fcstCfg := farcaster.Config{
		Testnet:        cfg.Testnet,
		ChainEndpoints: cfg.ChainEndpoints(),
		AddrBookDir:    cfg.DataDir,
	}
	supervisor, err := farcaster.New(ctx, router, secrets, store, fcstCfg)
	if err != nil {
		return fmt.Errorf("starting farcaster: %w", err)
	}

	rpcServer := rpc.NewServer(router)
	metricsHandler := supervisor.Metrics().Handler()
	mux := http.NewServeMux()
	mux.Handle("/", rpcServer)
	mux.Handle("/metrics", metricsHandler)
	httpSrv := &http.Server{Addr: rpc.DefaultAddr, Handler: mux}
	go httpSrv.ListenAndServe()
	defer httpSrv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	supervisor.Run()
	return nil
}

const seedNamespace = "nodeseeds"

// loadOrCreateSeeds returns this node's walletSeed and peerdSecretKey,
// generating and persisting fresh random ones on first run so restarts
// reuse the same long-term identity and key-derivation root.
func loadOrCreateSeeds(store *checkpoint.Store) (walletSeed, peerdSecretKey [32]byte, err error) {
	raw, err := store.Get(seedNamespace, []byte("seeds"))
	if err != nil {
		return walletSeed, peerdSecretKey, err
	}
	if len(raw) == 64 {
		copy(walletSeed[:], raw[:32])
		copy(peerdSecretKey[:], raw[32:])
		return walletSeed, peerdSecretKey, nil
	}

	if _, err := rand.Read(walletSeed[:]); err != nil {
		return walletSeed, peerdSecretKey, err
	}
	if _, err := rand.Read(peerdSecretKey[:]); err != nil {
		return walletSeed, peerdSecretKey, err
	}
	combined := append(append([]byte{}, walletSeed[:]...), peerdSecretKey[:]...)
	if err := store.Put(seedNamespace, []byte("seeds"), combined); err != nil {
		return walletSeed, peerdSecretKey, err
	}
	return walletSeed, peerdSecretKey, nil
}
