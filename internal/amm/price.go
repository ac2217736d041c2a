package amm

import (
	"math/big"

	"ammEngine/internal/model"
)

// PricePrecision is the number of decimals in spot price strings.
const PricePrecision = 18

// SpotPrice returns the marginal prices of the pool, units of Y per X and
// units of X per Y, as decimal strings. An empty side yields "0".
func SpotPrice(pool model.Pool) (yPerX, xPerY string) {
	return ratio(pool.ReserveY, pool.ReserveX), ratio(pool.ReserveX, pool.ReserveY)
}

func ratio(num, den uint64) string {
	if den == 0 || num == 0 {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).SetUint64(num), new(big.Int).SetUint64(den))
	return r.FloatString(PricePrecision)
}

// SwapPreview describes an exact-input swap without executing it.
// ExecutionPrice is input units paid per output unit; PriceImpact is the
// share of the output reserve the swap removes.
type SwapPreview struct {
	AmountIn       uint64 `json:"amount_in,string"`
	AmountOut      uint64 `json:"amount_out,string"`
	Fee            uint64 `json:"fee,string"`
	ExecutionPrice string `json:"execution_price"`
	PriceImpact    string `json:"price_impact"`
}

// Preview prices an exact-input swap against the given reserves.
func Preview(amountIn, reserveIn, reserveOut uint64, feeBps uint32) (SwapPreview, error) {
	out, err := GetAmountOut(amountIn, reserveIn, reserveOut, feeBps)
	if err != nil {
		return SwapPreview{}, err
	}
	return SwapPreview{
		AmountIn:       amountIn,
		AmountOut:      out,
		Fee:            SwapFee(amountIn, feeBps),
		ExecutionPrice: ratio(amountIn, out),
		PriceImpact:    ratio(out, reserveOut),
	}, nil
}
