package replay

import (
	"context"
	"errors"
	"fmt"

	"ammEngine/internal/amm"
	"ammEngine/internal/model"
)

// ErrUnknownOp reports an operation name the runner does not handle.
var ErrUnknownOp = errors.New("unknown operation")

// Apply runs one operation against the engine.
func Apply(ctx context.Context, e *amm.Engine, line uint64, op model.Operation) (model.OpResult, error) {
	res := model.OpResult{Line: line, Op: op.Op, PoolID: op.PoolID}

	switch op.Op {
	case model.OpCreatePool:
		id, err := e.CreatePool(ctx, op.AssetX, op.AssetY, op.FeeBps)
		if err != nil {
			return res, err
		}
		res.PoolID = id

	case model.OpAddLiquidity:
		out, err := e.AddLiquidity(ctx, amm.AddLiquidityRequest{
			PoolID:         op.PoolID,
			Provider:       op.Provider,
			AmountXDesired: op.AmountXDesired,
			AmountYDesired: op.AmountYDesired,
			AmountXMin:     op.AmountXMin,
			AmountYMin:     op.AmountYMin,
			Deadline:       op.Deadline,
		})
		if err != nil {
			return res, err
		}
		res.AmountX, res.AmountY, res.Shares = out.AmountX, out.AmountY, out.Shares

	case model.OpRemoveLiquidity:
		out, err := e.RemoveLiquidity(ctx, amm.RemoveLiquidityRequest{
			PoolID:     op.PoolID,
			Provider:   op.Provider,
			Shares:     op.Shares,
			AmountXMin: op.AmountXMin,
			AmountYMin: op.AmountYMin,
			Deadline:   op.Deadline,
		})
		if err != nil {
			return res, err
		}
		res.AmountX, res.AmountY, res.Shares = out.AmountX, out.AmountY, op.Shares

	case model.OpSwapExactIn:
		out, err := e.SwapExactIn(ctx, amm.SwapExactInRequest{
			PoolID:       op.PoolID,
			AssetIn:      op.AssetIn,
			AmountIn:     op.AmountIn,
			AmountOutMin: op.AmountOutMin,
			Deadline:     op.Deadline,
		})
		if err != nil {
			return res, err
		}
		res.AmountIn, res.AmountOut = op.AmountIn, out

	case model.OpSwapExactOut:
		in, err := e.SwapExactOut(ctx, amm.SwapExactOutRequest{
			PoolID:      op.PoolID,
			AssetIn:     op.AssetIn,
			AmountOut:   op.AmountOut,
			AmountInMax: op.AmountInMax,
			Deadline:    op.Deadline,
		})
		if err != nil {
			return res, err
		}
		res.AmountIn, res.AmountOut = in, op.AmountOut

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}

	return res, nil
}

// opError converts a failure into its journal record.
func opError(line uint64, op model.Operation, err error) model.OpError {
	rec := model.OpError{Line: line, Op: op.Op, PoolID: op.PoolID, Error: err.Error()}
	var engineErr *amm.Error
	if errors.As(err, &engineErr) {
		rec.Code = engineErr.Code
		rec.Name = engineErr.Name
	}
	return rec
}
