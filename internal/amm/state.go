package amm

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"ammEngine/internal/model"
)

// poolState is the mutable record behind one pool. Writers hold mu for the
// whole read-compute-validate-write sequence; readers take it shared.
type poolState struct {
	mu sync.RWMutex

	id     model.PoolID
	assetX string
	assetY string
	feeBps uint32

	reserveX    uint64
	reserveY    uint64
	totalShares uint64
	positions   map[string]uint64
	stats       swapStats
}

type swapStats struct {
	count   uint64
	volumeX *big.Int
	volumeY *big.Int
	feesX   *big.Int
	feesY   *big.Int
}

func newSwapStats() swapStats {
	return swapStats{
		volumeX: new(big.Int),
		volumeY: new(big.Int),
		feesX:   new(big.Int),
		feesY:   new(big.Int),
	}
}

func newPoolState(id model.PoolID, key model.PoolKey) *poolState {
	return &poolState{
		id:        id,
		assetX:    key.AssetX,
		assetY:    key.AssetY,
		feeBps:    key.FeeBps,
		positions: make(map[string]uint64),
		stats:     newSwapStats(),
	}
}

// direction resolves the reserves for a swap paying assetIn.
func (s *poolState) direction(assetIn string) (reserveIn, reserveOut uint64, xToY bool, err error) {
	switch assetIn {
	case s.assetX:
		return s.reserveX, s.reserveY, true, nil
	case s.assetY:
		return s.reserveY, s.reserveX, false, nil
	default:
		return 0, 0, false, fmt.Errorf("%w: %q not in %s/%s", ErrInvalidAsset, assetIn, s.assetX, s.assetY)
	}
}

func (s *poolState) snapshotLocked() model.Pool {
	return model.Pool{
		ID:          s.id,
		AssetX:      s.assetX,
		AssetY:      s.assetY,
		FeeBps:      s.feeBps,
		ReserveX:    s.reserveX,
		ReserveY:    s.reserveY,
		TotalShares: s.totalShares,
		Stats: model.PoolStats{
			SwapCount: s.stats.count,
			VolumeX:   s.stats.volumeX.String(),
			VolumeY:   s.stats.volumeY.String(),
			FeesX:     s.stats.feesX.String(),
			FeesY:     s.stats.feesY.String(),
		},
	}
}

func (s *poolState) eventStateLocked() model.PoolState {
	return model.PoolState{
		AssetX:      s.assetX,
		AssetY:      s.assetY,
		FeeBps:      s.feeBps,
		ReserveX:    s.reserveX,
		ReserveY:    s.reserveY,
		TotalShares: s.totalShares,
	}
}

func (s *poolState) positionsLocked() []model.LiquidityPosition {
	out := make([]model.LiquidityPosition, 0, len(s.positions))
	for provider, shares := range s.positions {
		out = append(out, model.LiquidityPosition{PoolID: s.id, Provider: provider, Shares: shares})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// recordSwap folds a committed swap into the pool statistics.
func (s *poolState) recordSwap(xToY bool, amountIn, amountOut, fee uint64) {
	s.stats.count++
	in := new(big.Int).SetUint64(amountIn)
	out := new(big.Int).SetUint64(amountOut)
	if xToY {
		s.stats.volumeX.Add(s.stats.volumeX, in)
		s.stats.volumeY.Add(s.stats.volumeY, out)
		s.stats.feesX.Add(s.stats.feesX, new(big.Int).SetUint64(fee))
		return
	}
	s.stats.volumeY.Add(s.stats.volumeY, in)
	s.stats.volumeX.Add(s.stats.volumeX, out)
	s.stats.feesY.Add(s.stats.feesY, new(big.Int).SetUint64(fee))
}

func parseStats(stats model.PoolStats) (swapStats, error) {
	out := newSwapStats()
	out.count = stats.SwapCount
	fields := []struct {
		name   string
		value  string
		target *big.Int
	}{
		{"volume_x", stats.VolumeX, out.volumeX},
		{"volume_y", stats.VolumeY, out.volumeY},
		{"fees_x", stats.FeesX, out.feesX},
		{"fees_y", stats.FeesY, out.feesY},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, ok := f.target.SetString(f.value, 10); !ok || f.target.Sign() < 0 {
			return swapStats{}, fmt.Errorf("invalid %s: %q", f.name, f.value)
		}
	}
	return out, nil
}
