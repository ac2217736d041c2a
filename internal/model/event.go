package model

import "encoding/json"

// Event kinds.
const (
	EventPoolCreated      = "pool_created"
	EventLiquidityAdded   = "liquidity_added"
	EventLiquidityRemoved = "liquidity_removed"
	EventSwap             = "swap"
)

// Event is a committed pool mutation with the pool state after the commit.
type Event struct {
	Seq       uint64      `json:"seq"`
	Kind      string      `json:"kind"`
	PoolID    PoolID      `json:"pool_id"`
	Clock     uint64      `json:"clock"`
	Timestamp uint64      `json:"timestamp"`
	Pool      PoolState   `json:"pool"`
	Data      interface{} `json:"data"`
}

// EventRecord is the JSON form of Event used when reading a journal back.
type EventRecord struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	PoolID    PoolID          `json:"pool_id"`
	Clock     uint64          `json:"clock"`
	Timestamp uint64          `json:"timestamp"`
	Pool      PoolState       `json:"pool"`
	Data      json.RawMessage `json:"data"`
}

// PoolState is the pool as seen by an event.
type PoolState struct {
	AssetX      string `json:"asset_x"`
	AssetY      string `json:"asset_y"`
	FeeBps      uint32 `json:"fee_bps"`
	ReserveX    uint64 `json:"reserve_x,string"`
	ReserveY    uint64 `json:"reserve_y,string"`
	TotalShares uint64 `json:"total_shares,string"`
}

// PoolCreatedData is the payload of a pool_created event.
type PoolCreatedData struct {
	AssetX string `json:"asset_x"`
	AssetY string `json:"asset_y"`
	FeeBps uint32 `json:"fee_bps"`
}

// LiquidityData is the payload of liquidity_added and liquidity_removed.
type LiquidityData struct {
	Provider string `json:"provider"`
	AmountX  uint64 `json:"amount_x,string"`
	AmountY  uint64 `json:"amount_y,string"`
	Shares   uint64 `json:"shares,string"`
}

// SwapData is the payload of a swap event.
type SwapData struct {
	AssetIn   string `json:"asset_in"`
	AssetOut  string `json:"asset_out"`
	AmountIn  uint64 `json:"amount_in,string"`
	AmountOut uint64 `json:"amount_out,string"`
	Fee       uint64 `json:"fee,string"`
}
