package amm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ammEngine/internal/fixedpoint"
	"ammEngine/internal/model"
)

// AddLiquidityRequest deposits a pair of amounts into a pool.
type AddLiquidityRequest struct {
	PoolID         model.PoolID
	Provider       string
	AmountXDesired uint64
	AmountYDesired uint64
	AmountXMin     uint64
	AmountYMin     uint64
	Deadline       uint64
}

// AddLiquidityResult reports the amounts actually taken and shares minted.
type AddLiquidityResult struct {
	AmountX uint64
	AmountY uint64
	Shares  uint64
}

// RemoveLiquidityRequest burns shares for a pro-rata withdrawal.
type RemoveLiquidityRequest struct {
	PoolID     model.PoolID
	Provider   string
	Shares     uint64
	AmountXMin uint64
	AmountYMin uint64
	Deadline   uint64
}

// RemoveLiquidityResult reports the amounts withdrawn.
type RemoveLiquidityResult struct {
	AmountX uint64
	AmountY uint64
}

// depositAmounts picks the amounts a deposit takes. An empty pool accepts
// the desired amounts as the initial price. Otherwise the desired X is
// paired with its quote in Y; if that exceeds the desired Y, the desired Y
// is paired with its quote in X instead.
func depositAmounts(reserveX, reserveY, xDesired, yDesired, xMin, yMin uint64) (uint64, uint64, error) {
	if reserveX == 0 && reserveY == 0 {
		return xDesired, yDesired, nil
	}

	yOptimal, err := QuoteAmount(xDesired, reserveX, reserveY)
	if err != nil {
		return 0, 0, err
	}
	if yOptimal <= yDesired {
		if err := checkMin("amount_y", yOptimal, yMin); err != nil {
			return 0, 0, err
		}
		return xDesired, yOptimal, nil
	}

	xOptimal, err := QuoteAmount(yDesired, reserveY, reserveX)
	if err != nil {
		return 0, 0, err
	}
	if xOptimal > xDesired {
		// Unreachable when both reserves are positive; kept as a hard stop.
		return 0, 0, fmt.Errorf("%w: x optimal %d above desired %d", ErrInsufficientLiquidity, xOptimal, xDesired)
	}
	if err := checkMin("amount_x", xOptimal, xMin); err != nil {
		return 0, 0, err
	}
	return xOptimal, yDesired, nil
}

// mintShares returns the shares a deposit of (amountX, amountY) earns.
func mintShares(reserveX, reserveY, totalShares, amountX, amountY uint64) (uint64, error) {
	if totalShares == 0 {
		shares := fixedpoint.SqrtProduct(amountX, amountY)
		if shares == 0 {
			return 0, fmt.Errorf("%w: sqrt(%d*%d) is zero", ErrInsufficientInitialLiquidity, amountX, amountY)
		}
		return shares, nil
	}

	sharesX, err := fixedpoint.MulDiv(amountX, totalShares, reserveX)
	if err != nil {
		return 0, arith(err, "shares for x")
	}
	sharesY, err := fixedpoint.MulDiv(amountY, totalShares, reserveY)
	if err != nil {
		return 0, arith(err, "shares for y")
	}
	shares := sharesX
	if sharesY < shares {
		shares = sharesY
	}
	if shares == 0 {
		return 0, fmt.Errorf("%w: deposit mints no shares", ErrInsufficientLiquidity)
	}
	return shares, nil
}

// AddLiquidity deposits into a pool and credits the provider with shares.
func (e *Engine) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (AddLiquidityResult, error) {
	now, err := e.checkDeadline(ctx, req.Deadline)
	if err != nil {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, err)
	}
	if req.Provider == "" {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, ErrInvalidProvider)
	}
	st, err := e.reg.get(req.PoolID)
	if err != nil {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// An empty pool reports dust as insufficient initial liquidity instead.
	if st.totalShares > 0 && (req.AmountXDesired == 0 || req.AmountYDesired == 0) {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID,
			fmt.Errorf("%w: desired %d/%d", ErrZeroAmount, req.AmountXDesired, req.AmountYDesired))
	}

	amountX, amountY, err := depositAmounts(st.reserveX, st.reserveY,
		req.AmountXDesired, req.AmountYDesired, req.AmountXMin, req.AmountYMin)
	if err != nil {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, err)
	}
	shares, err := mintShares(st.reserveX, st.reserveY, st.totalShares, amountX, amountY)
	if err != nil {
		return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, err)
	}

	reserveX, errX := fixedpoint.Add(st.reserveX, amountX)
	reserveY, errY := fixedpoint.Add(st.reserveY, amountY)
	totalShares, errT := fixedpoint.Add(st.totalShares, shares)
	position, errP := fixedpoint.Add(st.positions[req.Provider], shares)
	for _, err := range []error{errX, errY, errT, errP} {
		if err != nil {
			return AddLiquidityResult{}, e.reject(model.OpAddLiquidity, req.PoolID, arith(err, "deposit"))
		}
	}

	st.reserveX = reserveX
	st.reserveY = reserveY
	st.totalShares = totalShares
	st.positions[req.Provider] = position

	e.emit(model.EventLiquidityAdded, st, now, model.LiquidityData{
		Provider: req.Provider,
		AmountX:  amountX,
		AmountY:  amountY,
		Shares:   shares,
	})
	e.logger.Debug("liquidity added",
		zap.Uint64("pool_id", uint64(st.id)),
		zap.String("provider", req.Provider),
		zap.Uint64("amount_x", amountX),
		zap.Uint64("amount_y", amountY),
		zap.Uint64("shares", shares),
	)
	return AddLiquidityResult{AmountX: amountX, AmountY: amountY, Shares: shares}, nil
}

// RemoveLiquidity burns the provider's shares and returns the pro-rata
// reserves. Burning every outstanding share drains both reserves to zero.
func (e *Engine) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (RemoveLiquidityResult, error) {
	now, err := e.checkDeadline(ctx, req.Deadline)
	if err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, err)
	}
	if req.Provider == "" {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, ErrInvalidProvider)
	}
	if req.Shares == 0 {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID,
			fmt.Errorf("%w: shares", ErrZeroAmount))
	}

	st, err := e.reg.get(req.PoolID)
	if err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	balance := st.positions[req.Provider]
	if req.Shares > balance {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID,
			fmt.Errorf("%w: burn %d, balance %d", ErrInsufficientShares, req.Shares, balance))
	}

	amountX, err := fixedpoint.MulDiv(req.Shares, st.reserveX, st.totalShares)
	if err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, arith(err, "withdraw x"))
	}
	amountY, err := fixedpoint.MulDiv(req.Shares, st.reserveY, st.totalShares)
	if err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, arith(err, "withdraw y"))
	}
	if amountX == 0 || amountY == 0 {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID,
			fmt.Errorf("%w: burn %d returns %d/%d", ErrInsufficientLiquidity, req.Shares, amountX, amountY))
	}
	if err := checkMin("amount_x", amountX, req.AmountXMin); err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, err)
	}
	if err := checkMin("amount_y", amountY, req.AmountYMin); err != nil {
		return RemoveLiquidityResult{}, e.reject(model.OpRemoveLiquidity, req.PoolID, err)
	}

	st.reserveX -= amountX
	st.reserveY -= amountY
	st.totalShares -= req.Shares
	if balance == req.Shares {
		delete(st.positions, req.Provider)
	} else {
		st.positions[req.Provider] = balance - req.Shares
	}

	e.emit(model.EventLiquidityRemoved, st, now, model.LiquidityData{
		Provider: req.Provider,
		AmountX:  amountX,
		AmountY:  amountY,
		Shares:   req.Shares,
	})
	e.logger.Debug("liquidity removed",
		zap.Uint64("pool_id", uint64(st.id)),
		zap.String("provider", req.Provider),
		zap.Uint64("amount_x", amountX),
		zap.Uint64("amount_y", amountY),
		zap.Uint64("shares", req.Shares),
	)
	return RemoveLiquidityResult{AmountX: amountX, AmountY: amountY}, nil
}
