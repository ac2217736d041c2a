package model

// Snapshot is the full persisted state of an engine. AppliedOps counts the
// replay input lines already reflected in the state.
type Snapshot struct {
	Clock      uint64              `json:"clock"`
	NextSeq    uint64              `json:"next_seq"`
	AppliedOps uint64              `json:"applied_ops"`
	Pools      []Pool              `json:"pools"`
	Positions  []LiquidityPosition `json:"positions"`
	UpdatedAt  string              `json:"updated_at"`
}
