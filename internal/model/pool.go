package model

import "fmt"

// PoolID identifies a pool. IDs are assigned sequentially from zero.
type PoolID uint64

// Pool is a snapshot of one constant-product pool.
type Pool struct {
	ID          PoolID    `json:"id"`
	AssetX      string    `json:"asset_x"`
	AssetY      string    `json:"asset_y"`
	FeeBps      uint32    `json:"fee_bps"`
	ReserveX    uint64    `json:"reserve_x,string"`
	ReserveY    uint64    `json:"reserve_y,string"`
	TotalShares uint64    `json:"total_shares,string"`
	Stats       PoolStats `json:"stats"`
}

// Key returns the canonical registry key of the pool.
func (p Pool) Key() PoolKey {
	return NewPoolKey(p.AssetX, p.AssetY, p.FeeBps)
}

// PoolStats accumulates swap activity. Volumes and fees are decimal strings
// since cumulative sums can exceed uint64.
type PoolStats struct {
	SwapCount uint64 `json:"swap_count"`
	VolumeX   string `json:"volume_x"`
	VolumeY   string `json:"volume_y"`
	FeesX     string `json:"fees_x"`
	FeesY     string `json:"fees_y"`
}

// PoolKey is the uniqueness key of a pool: a canonically ordered asset pair
// plus a fee tier.
type PoolKey struct {
	AssetX string
	AssetY string
	FeeBps uint32
}

// NewPoolKey orders the pair lexicographically so (a,b) and (b,a) collide.
func NewPoolKey(assetA, assetB string, feeBps uint32) PoolKey {
	x, y := CanonicalPair(assetA, assetB)
	return PoolKey{AssetX: x, AssetY: y, FeeBps: feeBps}
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s/%s:%d", k.AssetX, k.AssetY, k.FeeBps)
}

// CanonicalPair returns the two assets in lexicographic order.
func CanonicalPair(assetA, assetB string) (string, string) {
	if assetB < assetA {
		return assetB, assetA
	}
	return assetA, assetB
}
