package models

// LastScannedBlock tracks the last fully scanned block for a given chain so
// the relayer resumes where it left off instead of re-deriving its cursor
// from the chain head after a restart.
type LastScannedBlock struct {
	Chain       string `json:"chain" bson:"chain"`
	BlockNumber uint64 `json:"block_number" bson:"block_number"`
}
