package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RelayStatus represents the different states a relay attempt can be in
type RelayStatus string

const (
	// Delivered - the destination sink acknowledged the payload
	Delivered RelayStatus = "DELIVERED"

	// Failed - the sink rejected the payload or the request timed out
	Failed RelayStatus = "FAILED"
)

// BridgeEvent is a decoded TokensLocked occurrence on the source chain.
type BridgeEvent struct {
	Sender             common.Address
	DestinationChainID *big.Int
	Recipient          common.Address
	Token              common.Address
	Amount             *big.Int
	Nonce              *big.Int
	SourceTxHash       common.Hash
	SourceBlockNumber  uint64
}

// RelayPayload is the JSON body posted to the destination sink.
// Field names are fixed for compatibility with the destination system.
type RelayPayload struct {
	SourceTransactionHash string `json:"sourceTransactionHash"`
	SourceBlockNumber     uint64 `json:"sourceBlockNumber"`
	BridgeNonce           uint64 `json:"bridgeNonce"`
	SourceSender          string `json:"sourceSender"`
	DestinationRecipient  string `json:"destinationRecipient"`
	DestinationChainID    uint64 `json:"destinationChainId"`
	TokenAddress          string `json:"tokenAddress"`

	// Amount is rendered as a decimal string to avoid JSON precision loss.
	Amount string `json:"amount"`
}

// RelayOutcome is the per-event result of a single delivery attempt.
type RelayOutcome struct {
	Delivered bool
	Detail    string
}
