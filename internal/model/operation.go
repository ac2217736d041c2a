package model

// Operation names accepted by the replay runner.
const (
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwapExactIn     = "swap_exact_in"
	OpSwapExactOut    = "swap_exact_out"
)

// Operation is one line of a replay input file. Only the fields relevant to
// Op are read. Clock, when non-zero, moves the logical clock forward before
// the operation runs.
type Operation struct {
	Op    string `json:"op"`
	Clock uint64 `json:"clock,omitempty"`

	AssetX string `json:"asset_x,omitempty"`
	AssetY string `json:"asset_y,omitempty"`
	FeeBps uint32 `json:"fee_bps,omitempty"`

	PoolID   PoolID `json:"pool_id"`
	Provider string `json:"provider,omitempty"`
	Deadline uint64 `json:"deadline"`

	AmountXDesired uint64 `json:"amount_x_desired,string,omitempty"`
	AmountYDesired uint64 `json:"amount_y_desired,string,omitempty"`
	AmountXMin     uint64 `json:"amount_x_min,string,omitempty"`
	AmountYMin     uint64 `json:"amount_y_min,string,omitempty"`
	Shares         uint64 `json:"shares,string,omitempty"`

	AssetIn      string `json:"asset_in,omitempty"`
	AmountIn     uint64 `json:"amount_in,string,omitempty"`
	AmountOut    uint64 `json:"amount_out,string,omitempty"`
	AmountOutMin uint64 `json:"amount_out_min,string,omitempty"`
	AmountInMax  uint64 `json:"amount_in_max,string,omitempty"`
}

// OpResult records a successfully applied operation.
type OpResult struct {
	Line      uint64 `json:"line"`
	Op        string `json:"op"`
	PoolID    PoolID `json:"pool_id"`
	AmountX   uint64 `json:"amount_x,string,omitempty"`
	AmountY   uint64 `json:"amount_y,string,omitempty"`
	Shares    uint64 `json:"shares,string,omitempty"`
	AmountIn  uint64 `json:"amount_in,string,omitempty"`
	AmountOut uint64 `json:"amount_out,string,omitempty"`
}

// OpError records a rejected operation.
type OpError struct {
	Line   uint64 `json:"line"`
	Op     string `json:"op"`
	PoolID PoolID `json:"pool_id"`
	Code   int    `json:"code"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}
