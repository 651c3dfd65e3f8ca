package relayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soficola/bridge-relay/database/models"
	"github.com/soficola/bridge-relay/types"
)

const (
	defaultInterval     = 15 * time.Second
	defaultCriticalWait = 60 * time.Second
)

// ChainReader is the part of the source chain client the relayer depends on.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetBlockTimestamp(blockNumber uint64) (uint64, error)
}

// EventScanner returns decoded bridge events for a closed block range.
// Collaborator faults surface as an empty result, never as an error.
type EventScanner interface {
	Scan(ctx context.Context, fromBlock uint64, toBlock uint64) []types.BridgeEvent
}

// EventRelayer delivers a single event to the destination sink.
type EventRelayer interface {
	Relay(ctx context.Context, event types.BridgeEvent) types.RelayOutcome
}

// RecordStore persists per-attempt relay outcomes for observability.
type RecordStore interface {
	CreateRelayRecord(ctx context.Context, record models.RelayRecord) error
}

// Relayer owns the scan cursor and drives the scan/relay cycle: it computes
// safe scan windows behind the chain head, carves them into bounded chunks,
// feeds each chunk through the scanner and the relay pipeline, and advances
// the cursor once the chunk has been fully processed.
//
// Cursor advancement is deliberately decoupled from delivery success: a
// failed relay is recorded and logged but never re-scanned. Forward progress
// wins over guaranteed delivery.
type Relayer struct {
	chain   ChainReader
	scanner EventScanner
	relay   EventRelayer
	cursor  CursorStore
	records RecordStore
	logger  *slog.Logger

	interval      time.Duration
	criticalWait  time.Duration
	maxChunkSize  uint64
	confirmations uint64

	lastScanned uint64
}

type RelayerOpts struct {
	Chain   ChainReader
	Scanner EventScanner
	Relay   EventRelayer

	// Cursor persists scan progress across restarts. Defaults to an
	// in-memory cursor when nil.
	Cursor CursorStore

	// Records is optional; when nil relay outcomes are observable only
	// through logs.
	Records RecordStore

	Logger *slog.Logger

	// Interval between scan cycles.
	Interval time.Duration

	// CriticalWait is the extended backoff after an unexpected fault.
	CriticalWait time.Duration

	// MaxChunkSize bounds the number of blocks per scanner query.
	// Must be >= 1; validated at configuration time, not here.
	MaxChunkSize uint64

	// Confirmations is the number of blocks held back from the chain head
	// before a block is considered safe against reorgs.
	Confirmations uint64

	// StartBlock overrides both the persisted cursor and the head-derived
	// default when set.
	StartBlock *uint64
}

func NewRelayer(opts RelayerOpts) (*Relayer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cursor == nil {
		opts.Cursor = NewMemoryCursor()
	}
	if opts.Interval == 0 {
		opts.Interval = defaultInterval
	}
	if opts.CriticalWait == 0 {
		opts.CriticalWait = defaultCriticalWait
	}

	r := &Relayer{
		chain:         opts.Chain,
		scanner:       opts.Scanner,
		relay:         opts.Relay,
		cursor:        opts.Cursor,
		records:       opts.Records,
		logger:        opts.Logger,
		interval:      opts.Interval,
		criticalWait:  opts.CriticalWait,
		maxChunkSize:  opts.MaxChunkSize,
		confirmations: opts.Confirmations,
	}

	if err := r.initCursor(context.Background(), opts.StartBlock); err != nil {
		return nil, err
	}

	opts.Logger.Info("relayer initialized", "startBlock", r.lastScanned)

	return r, nil
}

// initCursor resolves the starting cursor: an explicit start block wins,
// then persisted progress, then the chain head minus the confirmation depth.
// Failure here is fatal; the caller should terminate the process.
func (r *Relayer) initCursor(ctx context.Context, startBlock *uint64) error {
	if startBlock != nil {
		r.lastScanned = *startBlock
		return nil
	}

	persisted, err := r.cursor.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scan cursor: %w", err)
	}
	if persisted > 0 {
		r.lastScanned = persisted
		return nil
	}

	latest, err := r.chain.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block for initial cursor: %w", err)
	}
	if latest > r.confirmations {
		r.lastScanned = latest - r.confirmations
	}
	return nil
}

// LastScannedBlock returns the current cursor position.
func (r *Relayer) LastScannedBlock() uint64 {
	return r.lastScanned
}

// Run executes scan cycles until ctx is cancelled. Unexpected faults are
// logged and followed by an extended wait; only cancellation stops the loop.
func (r *Relayer) Run(ctx context.Context) error {
	r.logger.Info("starting relayer main loop", "startBlock", r.lastScanned, "interval", r.interval)

	for {
		if err := r.runCycle(ctx); err != nil {
			r.logger.Error("critical error in scan cycle", "error", err)
			if !r.sleep(ctx, r.criticalWait) {
				r.logger.Info("shutting down relayer")
				return nil
			}
			continue
		}

		if !r.sleep(ctx, r.interval) {
			r.logger.Info("shutting down relayer")
			return nil
		}
	}
}

// sleep waits for d or until ctx is cancelled. Returns false on cancellation.
func (r *Relayer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runCycle performs one pass: compute the safe window behind the chain head,
// then scan and relay it chunk by chunk, advancing the cursor per chunk.
// Handled collaborator faults return nil (standard sleep follows); a panic
// escaping any step is converted into an error (extended wait follows).
func (r *Relayer) runCycle(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in scan cycle: %v", rec)
		}
	}()

	latest, err := r.chain.BlockNumber(ctx)
	if err != nil {
		r.logger.Error("could not determine latest block, skipping cycle", "error", err)
		return nil
	}

	// Blocks newer than target are still at reorg risk.
	var target uint64
	if latest > r.confirmations {
		target = latest - r.confirmations
	}

	if r.lastScanned >= target {
		r.logger.Info("no new blocks to scan", "chainHead", latest, "lastScanned", r.lastScanned)
		return nil
	}

	for current := r.lastScanned + 1; current <= target; {
		// Cancellation is only observed between chunks, so the cursor
		// never moves past events that were scanned but not yet offered
		// to the relay pipeline.
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		end := min(current+r.maxChunkSize-1, target)

		r.logger.Info("scanning blocks", "fromBlock", current, "toBlock", end, "chainHead", latest)

		events := r.scanner.Scan(ctx, current, end)
		for _, event := range events {
			outcome := r.relay.Relay(ctx, event)
			if outcome.Delivered {
				r.logger.Info("relayed bridge event",
					"txHash", event.SourceTxHash.Hex(),
					"nonce", event.Nonce,
					"ack", outcome.Detail)
			} else {
				r.logger.Error("failed to relay bridge event",
					"txHash", event.SourceTxHash.Hex(),
					"nonce", event.Nonce,
					"reason", outcome.Detail)
			}
			r.record(ctx, event, outcome)
		}

		r.lastScanned = end
		if err := r.cursor.Save(ctx, end); err != nil {
			// The in-memory cursor stays authoritative for this
			// process; persistence catches up on the next chunk.
			r.logger.Error("failed to persist scan cursor", "block", end, "error", err)
		}

		current = end + 1
	}

	return nil
}

// record stores the relay outcome best-effort; it never blocks progress.
func (r *Relayer) record(ctx context.Context, event types.BridgeEvent, outcome types.RelayOutcome) {
	if r.records == nil {
		return
	}

	status := types.Failed
	if outcome.Delivered {
		status = types.Delivered
	}

	blockTime, err := r.chain.GetBlockTimestamp(event.SourceBlockNumber)
	if err != nil {
		r.logger.Warn("could not fetch block timestamp for relay record",
			"blockNumber", event.SourceBlockNumber,
			"error", err)
	}

	record := models.RelayRecord{
		ID:                 uuid.New().String(),
		TxHash:             event.SourceTxHash.Hex(),
		BlockNumber:        event.SourceBlockNumber,
		BlockTime:          blockTime,
		Sender:             event.Sender.Hex(),
		Recipient:          event.Recipient.Hex(),
		Token:              event.Token.Hex(),
		Amount:             event.Amount.String(),
		Nonce:              event.Nonce.Uint64(),
		DestinationChainID: event.DestinationChainID.Uint64(),
		Status:             string(status),
		Detail:             outcome.Detail,
	}

	if err := r.records.CreateRelayRecord(ctx, record); err != nil {
		r.logger.Error("failed to store relay record", "txHash", record.TxHash, "error", err)
	}
}
