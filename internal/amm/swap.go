package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ammEngine/internal/fixedpoint"
	"ammEngine/internal/model"
)

// SwapExactInRequest sells exactly AmountIn of AssetIn.
type SwapExactInRequest struct {
	PoolID       model.PoolID
	AssetIn      string
	AmountIn     uint64
	AmountOutMin uint64
	Deadline     uint64
}

// SwapExactOutRequest buys exactly AmountOut of the asset opposite AssetIn.
type SwapExactOutRequest struct {
	PoolID      model.PoolID
	AssetIn     string
	AmountOut   uint64
	AmountInMax uint64
	Deadline    uint64
}

// SwapExactIn sells req.AmountIn and returns the amount bought.
func (e *Engine) SwapExactIn(ctx context.Context, req SwapExactInRequest) (uint64, error) {
	now, err := e.checkDeadline(ctx, req.Deadline)
	if err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}
	st, err := e.reg.get(req.PoolID)
	if err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	reserveIn, reserveOut, xToY, err := st.direction(req.AssetIn)
	if err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}
	amountOut, err := GetAmountOut(req.AmountIn, reserveIn, reserveOut, st.feeBps)
	if err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}
	if amountOut >= reserveOut {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID,
			fmt.Errorf("%w: amount out %d against reserve %d", ErrInsufficientLiquidity, amountOut, reserveOut))
	}
	if err := checkMin("amount_out", amountOut, req.AmountOutMin); err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}
	if amountOut == 0 {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID,
			fmt.Errorf("%w: amount in %d buys nothing", ErrZeroAmount, req.AmountIn))
	}

	if err := e.commitSwap(st, now, xToY, req.AmountIn, amountOut); err != nil {
		return 0, e.reject(model.OpSwapExactIn, req.PoolID, err)
	}
	return amountOut, nil
}

// SwapExactOut buys req.AmountOut and returns the amount sold.
func (e *Engine) SwapExactOut(ctx context.Context, req SwapExactOutRequest) (uint64, error) {
	now, err := e.checkDeadline(ctx, req.Deadline)
	if err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}
	st, err := e.reg.get(req.PoolID)
	if err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	reserveIn, reserveOut, xToY, err := st.direction(req.AssetIn)
	if err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}
	amountIn, err := GetAmountIn(req.AmountOut, reserveIn, reserveOut, st.feeBps)
	if err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}
	if err := checkMax("amount_in", amountIn, req.AmountInMax); err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}

	if err := e.commitSwap(st, now, xToY, amountIn, req.AmountOut); err != nil {
		return 0, e.reject(model.OpSwapExactOut, req.PoolID, err)
	}
	return amountIn, nil
}

// commitSwap writes a validated swap. Callers hold st.mu exclusively.
func (e *Engine) commitSwap(st *poolState, now uint64, xToY bool, amountIn, amountOut uint64) error {
	reserveIn, reserveOut := st.reserveX, st.reserveY
	assetIn, assetOut := st.assetX, st.assetY
	if !xToY {
		reserveIn, reserveOut = st.reserveY, st.reserveX
		assetIn, assetOut = st.assetY, st.assetX
	}

	newIn, err := fixedpoint.Add(reserveIn, amountIn)
	if err != nil {
		return arith(err, "reserve in")
	}
	newOut, err := fixedpoint.Sub(reserveOut, amountOut)
	if err != nil {
		return fmt.Errorf("%w: amount out %d against reserve %d", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	if xToY {
		st.reserveX, st.reserveY = newIn, newOut
	} else {
		st.reserveY, st.reserveX = newIn, newOut
	}
	fee := SwapFee(amountIn, st.feeBps)
	st.recordSwap(xToY, amountIn, amountOut, fee)

	e.emit(model.EventSwap, st, now, model.SwapData{
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Fee:       fee,
	})
	e.logger.Debug("swap",
		zap.Uint64("pool_id", uint64(st.id)),
		zap.String("asset_in", assetIn),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", amountOut),
		zap.Uint64("fee", fee),
	)
	return nil
}
