package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/soficola/bridge-relay/types"
)

// TokensLockedABI is the fragment of the bridge contract ABI needed to decode
// the TokensLocked event.
const TokensLockedABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "destinationChainId", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nonce", "type": "uint256"}
    ],
    "name": "TokensLocked",
    "type": "event"
  }
]`

// ChainReader is the part of the source chain client the scanner depends on.
type ChainReader interface {
	FilterTokensLocked(ctx context.Context, fromBlock uint64, toBlock uint64) ([]ethtypes.Log, error)
}

type Scanner struct {
	chain       ChainReader
	contractAbi abi.ABI
	logger      *slog.Logger
}

type ScannerOpts struct {
	Chain  ChainReader
	Logger *slog.Logger
}

func NewScanner(opts ScannerOpts) (*Scanner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	contractAbi, err := abi.JSON(strings.NewReader(TokensLockedABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	return &Scanner{
		chain:       opts.Chain,
		contractAbi: contractAbi,
		logger:      opts.Logger,
	}, nil
}

// Scan fetches and decodes TokensLocked events over the closed block range
// [fromBlock, toBlock]. Collaborator faults are logged and yield an empty
// result; the caller must retry the same window on a later cycle since no
// error is returned. An inverted range is a no-op.
func (s *Scanner) Scan(ctx context.Context, fromBlock uint64, toBlock uint64) []types.BridgeEvent {
	if fromBlock > toBlock {
		s.logger.Warn("fromBlock cannot be greater than toBlock, no scan performed",
			"fromBlock", fromBlock,
			"toBlock", toBlock)
		return nil
	}

	logs, err := s.chain.FilterTokensLocked(ctx, fromBlock, toBlock)
	if err != nil {
		s.logger.Error("failed to filter TokensLocked logs",
			"fromBlock", fromBlock,
			"toBlock", toBlock,
			"error", err)
		return nil
	}

	events := make([]types.BridgeEvent, 0, len(logs))
	for _, log := range logs {
		event, err := s.decode(log)
		if err != nil {
			s.logger.Error("failed to decode TokensLocked log",
				"txHash", log.TxHash.Hex(),
				"blockNumber", log.BlockNumber,
				"error", err)
			continue
		}
		events = append(events, *event)
	}

	if len(events) > 0 {
		s.logger.Info("found TokensLocked events",
			"count", len(events),
			"fromBlock", fromBlock,
			"toBlock", toBlock)
	}

	return events
}

func (s *Scanner) decode(log ethtypes.Log) (*types.BridgeEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("unexpected topic count %d", len(log.Topics))
	}

	var data struct {
		Recipient common.Address
		Token     common.Address
		Amount    *big.Int
		Nonce     *big.Int
	}

	if err := s.contractAbi.UnpackIntoInterface(&data, "TokensLocked", log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack TokensLocked: %w", err)
	}

	return &types.BridgeEvent{
		Sender:             common.BytesToAddress(log.Topics[1].Bytes()),
		DestinationChainID: log.Topics[2].Big(),
		Recipient:          data.Recipient,
		Token:              data.Token,
		Amount:             data.Amount,
		Nonce:              data.Nonce,
		SourceTxHash:       log.TxHash,
		SourceBlockNumber:  log.BlockNumber,
	}, nil
}
