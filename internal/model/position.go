package model

// LiquidityPosition is a provider's share balance in one pool. Snapshots
// only carry positions with shares outstanding.
type LiquidityPosition struct {
	PoolID   PoolID `json:"pool_id"`
	Provider string `json:"provider"`
	Shares   uint64 `json:"shares,string"`
}
