package amm

import (
	"fmt"

	"ammEngine/internal/fixedpoint"
)

// BpsDenominator is the number of basis points in one whole.
const BpsDenominator = 10_000

// QuoteAmount returns the amount of B worth amountA of A at the reserve
// ratio, floor(amountA*reserveB/reserveA). No fee is applied.
func QuoteAmount(amountA, reserveA, reserveB uint64) (uint64, error) {
	if reserveA == 0 {
		return 0, fmt.Errorf("%w: quote against empty reserve", ErrDivisionByZero)
	}
	out, err := fixedpoint.MulDiv(amountA, reserveB, reserveA)
	if err != nil {
		return 0, arith(err, "quote amount")
	}
	return out, nil
}

// GetAmountOut returns the output of an exact-input swap:
//
//	amountInWithFee = amountIn * (10000 - feeBps)
//	amountOut       = floor(amountInWithFee*reserveOut / (reserveIn*10000 + amountInWithFee))
//
// Flooring leaves the remainder in the pool, so reserveIn*reserveOut never
// shrinks.
func GetAmountOut(amountIn, reserveIn, reserveOut uint64, feeBps uint32) (uint64, error) {
	if amountIn == 0 {
		return 0, fmt.Errorf("%w: amount in", ErrZeroAmount)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("%w: empty reserve", ErrInsufficientLiquidity)
	}
	if err := validateFee(feeBps); err != nil {
		return 0, err
	}

	inWithFee := fixedpoint.Mul(amountIn, uint64(BpsDenominator-feeBps))
	num, err := fixedpoint.MulWide(inWithFee, fixedpoint.New(reserveOut))
	if err != nil {
		return 0, arith(err, "amount out numerator")
	}
	den, err := fixedpoint.AddWide(fixedpoint.Mul(reserveIn, BpsDenominator), inWithFee)
	if err != nil {
		return 0, arith(err, "amount out denominator")
	}
	q, err := fixedpoint.DivWide(num, den)
	if err != nil {
		return 0, arith(err, "amount out")
	}
	out, err := fixedpoint.ToUint64(q)
	if err != nil {
		return 0, arith(err, "amount out")
	}
	return out, nil
}

// GetAmountIn returns the input required for an exact-output swap:
//
//	amountIn = floor(reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-feeBps))) + 1
//
// The trailing +1 rounds the requirement up in the pool's favour.
func GetAmountIn(amountOut, reserveIn, reserveOut uint64, feeBps uint32) (uint64, error) {
	if amountOut == 0 {
		return 0, fmt.Errorf("%w: amount out", ErrZeroAmount)
	}
	if reserveIn == 0 || amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: amount out %d against reserve %d", ErrInsufficientLiquidity, amountOut, reserveOut)
	}
	if err := validateFee(feeBps); err != nil {
		return 0, err
	}

	num, err := fixedpoint.MulWide(fixedpoint.Mul(reserveIn, amountOut), fixedpoint.New(BpsDenominator))
	if err != nil {
		return 0, arith(err, "amount in numerator")
	}
	den := fixedpoint.Mul(reserveOut-amountOut, uint64(BpsDenominator-feeBps))
	q, err := fixedpoint.DivWide(num, den)
	if err != nil {
		return 0, arith(err, "amount in")
	}
	in, err := fixedpoint.ToUint64(q)
	if err != nil {
		return 0, arith(err, "amount in")
	}
	in, err = fixedpoint.Add(in, 1)
	if err != nil {
		return 0, arith(err, "amount in")
	}
	return in, nil
}

// SwapFee is the part of amountIn retained as fee, floor(amountIn*feeBps/10000).
func SwapFee(amountIn uint64, feeBps uint32) uint64 {
	fee, err := fixedpoint.MulDiv(amountIn, uint64(feeBps), BpsDenominator)
	if err != nil {
		return 0
	}
	return fee
}

func validateFee(feeBps uint32) error {
	if feeBps >= BpsDenominator {
		return fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	return nil
}
