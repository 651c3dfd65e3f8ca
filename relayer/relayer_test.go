package relayer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soficola/bridge-relay/database/models"
	"github.com/soficola/bridge-relay/types"
)

type fakeChain struct {
	latest           uint64
	err              error
	blockNumberCalls int
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.blockNumberCalls++
	return f.latest, f.err
}

func (f *fakeChain) GetBlockTimestamp(blockNumber uint64) (uint64, error) {
	return 1700000000, nil
}

type fakeScanner struct {
	windows [][2]uint64
	events  map[uint64][]types.BridgeEvent // keyed by window start
	panics  bool
}

func (f *fakeScanner) Scan(ctx context.Context, fromBlock uint64, toBlock uint64) []types.BridgeEvent {
	if f.panics {
		panic("scanner exploded")
	}
	f.windows = append(f.windows, [2]uint64{fromBlock, toBlock})
	return f.events[fromBlock]
}

type fakeSink struct {
	delivered bool
	detail    string
	relayed   []types.BridgeEvent
}

func (f *fakeSink) Relay(ctx context.Context, event types.BridgeEvent) types.RelayOutcome {
	f.relayed = append(f.relayed, event)
	return types.RelayOutcome{Delivered: f.delivered, Detail: f.detail}
}

type spyCursor struct {
	block   uint64
	saved   []uint64
	loadErr error
	saveErr error
}

func (s *spyCursor) Load(ctx context.Context) (uint64, error) {
	return s.block, s.loadErr
}

func (s *spyCursor) Save(ctx context.Context, block uint64) error {
	s.saved = append(s.saved, block)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.block = block
	return nil
}

type spyRecords struct {
	records []models.RelayRecord
}

func (s *spyRecords) CreateRelayRecord(ctx context.Context, record models.RelayRecord) error {
	s.records = append(s.records, record)
	return nil
}

func uintPtr(v uint64) *uint64 { return &v }

func bridgeEvent(nonce int64, block uint64) types.BridgeEvent {
	return types.BridgeEvent{
		Sender:             common.HexToAddress("0x01"),
		DestinationChainID: big.NewInt(137),
		Recipient:          common.HexToAddress("0x02"),
		Token:              common.HexToAddress("0x03"),
		Amount:             big.NewInt(1e18),
		Nonce:              big.NewInt(nonce),
		SourceTxHash:       common.BigToHash(big.NewInt(nonce)),
		SourceBlockNumber:  block,
	}
}

func TestNewRelayer_ExplicitStartBlockOverridesCursor(t *testing.T) {
	chain := &fakeChain{latest: 1000}
	cursor := &spyCursor{block: 50}

	r, err := NewRelayer(RelayerOpts{
		Chain:        chain,
		Scanner:      &fakeScanner{},
		Relay:        &fakeSink{},
		Cursor:       cursor,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(100),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(100), r.LastScannedBlock())
	assert.Zero(t, chain.blockNumberCalls, "explicit start block needs no head lookup")
}

func TestNewRelayer_PersistedCursorBeatsHeadDerivedDefault(t *testing.T) {
	chain := &fakeChain{latest: 1000}

	r, err := NewRelayer(RelayerOpts{
		Chain:         chain,
		Scanner:       &fakeScanner{},
		Relay:         &fakeSink{},
		Cursor:        &spyCursor{block: 500},
		MaxChunkSize:  500,
		Confirmations: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(500), r.LastScannedBlock())
	assert.Zero(t, chain.blockNumberCalls)
}

func TestNewRelayer_DefaultsToHeadMinusConfirmations(t *testing.T) {
	r, err := NewRelayer(RelayerOpts{
		Chain:         &fakeChain{latest: 1000},
		Scanner:       &fakeScanner{},
		Relay:         &fakeSink{},
		MaxChunkSize:  500,
		Confirmations: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(988), r.LastScannedBlock())
}

func TestNewRelayer_StartCursorClampsToZero(t *testing.T) {
	r, err := NewRelayer(RelayerOpts{
		Chain:         &fakeChain{latest: 5},
		Scanner:       &fakeScanner{},
		Relay:         &fakeSink{},
		MaxChunkSize:  500,
		Confirmations: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), r.LastScannedBlock())
}

func TestNewRelayer_FailsWhenInitialHeadUnavailable(t *testing.T) {
	_, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{err: errors.New("rpc down")},
		Scanner:      &fakeScanner{},
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
	})
	assert.Error(t, err)
}

func TestRunCycle_ChunkingLaw(t *testing.T) {
	scn := &fakeScanner{}
	cursor := &spyCursor{}

	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 1000},
		Scanner:      scn,
		Relay:        &fakeSink{},
		Cursor:       cursor,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))

	assert.Equal(t, [][2]uint64{{1, 500}, {501, 1000}}, scn.windows)
	assert.Equal(t, uint64(1000), r.LastScannedBlock())
	assert.Equal(t, []uint64{500, 1000}, cursor.saved, "cursor persisted once per chunk")
}

func TestRunCycle_WindowHeldBackByConfirmationDepth(t *testing.T) {
	scn := &fakeScanner{}

	r, err := NewRelayer(RelayerOpts{
		Chain:         &fakeChain{latest: 1000},
		Scanner:       scn,
		Relay:         &fakeSink{},
		MaxChunkSize:  1000,
		Confirmations: 12,
		StartBlock:    uintPtr(500),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))

	assert.Equal(t, [][2]uint64{{501, 988}}, scn.windows)
	assert.Equal(t, uint64(988), r.LastScannedBlock())
}

func TestRunCycle_SkipsWhenHeadUnavailable(t *testing.T) {
	chain := &fakeChain{latest: 1000}
	scn := &fakeScanner{}

	r, err := NewRelayer(RelayerOpts{
		Chain:        chain,
		Scanner:      scn,
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
		StartBlock:   uintPtr(500),
	})
	require.NoError(t, err)

	chain.err = errors.New("rpc down")

	require.NoError(t, r.runCycle(context.Background()), "a failed head lookup is a skipped cycle, not a fault")
	assert.Empty(t, scn.windows)
	assert.Equal(t, uint64(500), r.LastScannedBlock())
}

func TestRunCycle_NoNewBlocks(t *testing.T) {
	scn := &fakeScanner{}

	r, err := NewRelayer(RelayerOpts{
		Chain:         &fakeChain{latest: 1000},
		Scanner:       scn,
		Relay:         &fakeSink{},
		MaxChunkSize:  500,
		Confirmations: 12,
		StartBlock:    uintPtr(988),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))
	assert.Empty(t, scn.windows)
}

func TestRunCycle_CursorNeverRegresses(t *testing.T) {
	chain := &fakeChain{latest: 100}
	r, err := NewRelayer(RelayerOpts{
		Chain:        chain,
		Scanner:      &fakeScanner{},
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, uint64(100), r.LastScannedBlock())

	// Head regression (reorg beyond the confirmation depth) must not pull
	// the cursor backwards.
	chain.latest = 90
	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, uint64(100), r.LastScannedBlock())

	chain.latest = 120
	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, uint64(120), r.LastScannedBlock())
}

func TestRunCycle_CursorAdvancesDespiteRelayFailures(t *testing.T) {
	events := []types.BridgeEvent{bridgeEvent(1, 10), bridgeEvent(2, 20)}
	scn := &fakeScanner{events: map[uint64][]types.BridgeEvent{1: events}}
	sink := &fakeSink{delivered: false, detail: "sink returned status 500"}
	records := &spyRecords{}
	chain := &fakeChain{latest: 100}

	r, err := NewRelayer(RelayerOpts{
		Chain:        chain,
		Scanner:      scn,
		Relay:        sink,
		Records:      records,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))

	assert.Equal(t, uint64(100), r.LastScannedBlock(), "total relay failure must not hold the cursor back")
	require.Len(t, records.records, 2)
	for _, record := range records.records {
		assert.Equal(t, string(types.Failed), record.Status)
		assert.Equal(t, "sink returned status 500", record.Detail)
	}

	// The failed events are not re-scanned: the next window starts
	// strictly after the advanced cursor.
	chain.latest = 200
	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, [2]uint64{101, 200}, scn.windows[len(scn.windows)-1])
}

func TestRunCycle_RelaysEventsInScannerOrder(t *testing.T) {
	events := []types.BridgeEvent{bridgeEvent(3, 5), bridgeEvent(1, 7), bridgeEvent(2, 9)}
	scn := &fakeScanner{events: map[uint64][]types.BridgeEvent{1: events}}
	sink := &fakeSink{delivered: true}

	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 10},
		Scanner:      scn,
		Relay:        sink,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))

	require.Len(t, sink.relayed, 3)
	assert.Equal(t, events, sink.relayed)
}

func TestRunCycle_RecordsDeliveredOutcome(t *testing.T) {
	event := bridgeEvent(7, 42)
	event.Amount, _ = new(big.Int).SetString("2500000000000000000", 10)
	scn := &fakeScanner{events: map[uint64][]types.BridgeEvent{1: {event}}}
	records := &spyRecords{}

	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 100},
		Scanner:      scn,
		Relay:        &fakeSink{delivered: true, detail: "101"},
		Records:      records,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))

	require.Len(t, records.records, 1)
	record := records.records[0]
	assert.Equal(t, string(types.Delivered), record.Status)
	assert.Equal(t, "101", record.Detail)
	assert.Equal(t, "2500000000000000000", record.Amount)
	assert.Equal(t, uint64(42), record.BlockNumber)
	assert.Equal(t, uint64(1700000000), record.BlockTime)
	assert.NotEmpty(t, record.ID)
}

func TestRunCycle_PanicBecomesCriticalFault(t *testing.T) {
	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 100},
		Scanner:      &fakeScanner{panics: true},
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	err = r.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in scan cycle")
	assert.Equal(t, uint64(0), r.LastScannedBlock(), "cursor untouched by a faulted cycle")
}

func TestRunCycle_CursorSaveFailureDoesNotHaltProgress(t *testing.T) {
	cursor := &spyCursor{saveErr: errors.New("db down")}

	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 100},
		Scanner:      &fakeScanner{},
		Relay:        &fakeSink{},
		Cursor:       cursor,
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, uint64(100), r.LastScannedBlock(), "in-memory cursor stays authoritative")
}

func TestRun_StopsOnCancellation(t *testing.T) {
	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 100},
		Scanner:      &fakeScanner{},
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
		StartBlock:   uintPtr(100),
		Interval:     time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relayer did not stop on cancellation")
	}
}

func TestRun_RecoversAfterCriticalFault(t *testing.T) {
	scn := &fakeScanner{panics: true}

	r, err := NewRelayer(RelayerOpts{
		Chain:        &fakeChain{latest: 100},
		Scanner:      scn,
		Relay:        &fakeSink{},
		MaxChunkSize: 500,
		StartBlock:   uintPtr(0),
		Interval:     time.Millisecond,
		CriticalWait: time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// First cycle panics; the loop must take the extended wait and keep
	// running until cancellation instead of terminating itself.
	require.NoError(t, r.Run(ctx))
}
