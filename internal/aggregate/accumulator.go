package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"ammEngine/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID      model.PoolID
	AssetX      string
	AssetY      string
	FeeBps      uint32
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	VolumeX     *big.Int
	VolumeY     *big.Int
	FeeX        *big.Int
	FeeY        *big.Int
	ReserveX    uint64
	ReserveY    uint64
	FirstSeq    uint64
	LastSeq     uint64
}

func NewAccumulator(record model.EventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      record.PoolID,
		AssetX:      record.Pool.AssetX,
		AssetY:      record.Pool.AssetY,
		FeeBps:      record.Pool.FeeBps,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
		ReserveX:    record.Pool.ReserveX,
		ReserveY:    record.Pool.ReserveY,
		FirstSeq:    record.Seq,
		LastSeq:     record.Seq,
	}
}

// AddEvent folds an event into the window. Every event moves the closing
// reserves; only swaps add volume and fees.
func (a *Accumulator) AddEvent(record model.EventRecord) error {
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.ReserveX = record.Pool.ReserveX
		a.ReserveY = record.Pool.ReserveY
	}
	if record.Seq < a.FirstSeq {
		a.FirstSeq = record.Seq
	}

	switch record.Kind {
	case model.EventSwap:
		var swap model.SwapData
		if err := json.Unmarshal(record.Data, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapData) error {
	in := new(big.Int).SetUint64(swap.AmountIn)
	out := new(big.Int).SetUint64(swap.AmountOut)
	fee := new(big.Int).SetUint64(swap.Fee)

	switch swap.AssetIn {
	case a.AssetX:
		a.VolumeX.Add(a.VolumeX, in)
		a.VolumeY.Add(a.VolumeY, out)
		a.FeeX.Add(a.FeeX, fee)
	case a.AssetY:
		a.VolumeY.Add(a.VolumeY, in)
		a.VolumeX.Add(a.VolumeX, out)
		a.FeeY.Add(a.FeeY, fee)
	default:
		return fmt.Errorf("swap asset %q not in pool %d", swap.AssetIn, a.PoolID)
	}

	a.SwapCount++
	return nil
}
