package models

import "time"

// RelayRecord is a single delivery attempt for a bridge event. Every attempt
// is recorded, delivered or not, so failed relays are visible beyond logs.
type RelayRecord struct {
	ID                 string    `json:"id" bson:"id"`
	TxHash             string    `json:"tx_hash" bson:"tx_hash"`
	BlockNumber        uint64    `json:"block_number" bson:"block_number"`
	BlockTime          uint64    `json:"block_time,omitempty" bson:"block_time,omitempty"`
	Sender             string    `json:"sender" bson:"sender"`
	Recipient          string    `json:"recipient" bson:"recipient"`
	Token              string    `json:"token" bson:"token"`
	Amount             string    `json:"amount" bson:"amount"`
	Nonce              uint64    `json:"nonce" bson:"nonce"`
	DestinationChainID uint64    `json:"destination_chain_id" bson:"destination_chain_id"`
	Status             string    `json:"status" bson:"status"`
	Detail             string    `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}
