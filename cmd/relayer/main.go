package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/soficola/bridge-relay/api"
	"github.com/soficola/bridge-relay/database"
	"github.com/soficola/bridge-relay/ethereum"
	"github.com/soficola/bridge-relay/relay"
	"github.com/soficola/bridge-relay/relayer"
	"github.com/soficola/bridge-relay/scanner"
)

// Version will be set at build time
var Version = "development"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	// create a new logger
	Logger := slog.New(tint.NewHandler(os.Stderr, nil))

	// set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level: slog.LevelDebug,
		}),
	))

	Logger.Info("Starting bridge-relay ("+Version+")",
		"Go Version", runtime.Version(),
		"Operating System", runtime.GOOS,
		"Architecture", runtime.GOARCH)

	scanInterval := envUint("SCAN_INTERVAL", 15)
	maxBlockRange := envUint("MAX_BLOCK_RANGE", 500)
	confirmationBlocks := envUint("CONFIRMATION_BLOCKS", 12)

	if maxBlockRange < 1 {
		log.Fatal("MAX_BLOCK_RANGE must be at least 1")
	}

	var startBlock *uint64
	if v := os.Getenv("START_BLOCK"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			log.Fatalf("failed to parse START_BLOCK: %v", err)
		}
		startBlock = &parsed
	}

	chain, err := ethereum.NewClient(ethereum.ClientOpts{
		Endpoint:              os.Getenv("SOURCE_CHAIN_RPC_URL"),
		BridgeContractAddress: common.HexToAddress(os.Getenv("BRIDGE_CONTRACT_ADDRESS")),
		Logger:                Logger.With("component", "chain-client"),
	})
	if err != nil {
		log.Fatal(err)
	}

	eventScanner, err := scanner.NewScanner(scanner.ScannerOpts{
		Chain:  chain,
		Logger: Logger.With("component", "scanner"),
	})
	if err != nil {
		log.Fatal(err)
	}

	pipeline := relay.NewPipeline(relay.PipelineOpts{
		Endpoint: os.Getenv("DESTINATION_API_ENDPOINT"),
		Logger:   Logger.With("component", "relay"),
	})

	// The database is optional: without it the cursor lives in process
	// memory only and relay outcomes are observable through logs alone.
	var cursor relayer.CursorStore
	var records relayer.RecordStore
	if uri := os.Getenv("DATABASE_URI"); uri != "" {
		db, err := database.NewDatabase(database.DatabaseOpts{
			URI:          uri,
			DatabaseName: os.Getenv("DATABASE_NAME"),
			Logger:       Logger.With("component", "database"),
		})
		if err != nil {
			log.Fatal(err)
		}

		if err := db.CreateIndexes(context.Background()); err != nil {
			log.Fatalf("failed to create database indexes: %v", err)
		}

		cursor = db.Cursor(chain.ChainID().String())
		records = db

		// start api server
		server, err := api.NewServer(api.ServerOpts{
			Logger: Logger.With("component", "api-server"),
			Store:  db,
			Chain:  chain.ChainID().String(),
			Port:   os.Getenv("API_PORT"),
		})
		if err != nil {
			log.Fatalf("failed to create api server: %v", err)
		}

		go server.StartServer()
	}

	r, err := relayer.NewRelayer(relayer.RelayerOpts{
		Chain:         chain,
		Scanner:       eventScanner,
		Relay:         pipeline,
		Cursor:        cursor,
		Records:       records,
		Logger:        Logger.With("component", "relayer"),
		Interval:      time.Duration(scanInterval) * time.Second,
		MaxChunkSize:  maxBlockRange,
		Confirmations: confirmationBlocks,
		StartBlock:    startBlock,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Create context that will be canceled on SIGINT or SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start relayer in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Run(ctx)
	}()

	// Wait for either error or signal
	select {
	case err := <-errChan:
		if err != nil {
			log.Printf("Relayer error: %v", err)
		}
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		fmt.Println("Shutting down gracefully...")
		cancel() // This will trigger shutdown via context

		// Wait for relayer to finish
		if err := <-errChan; err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", key, err)
	}
	return parsed
}
