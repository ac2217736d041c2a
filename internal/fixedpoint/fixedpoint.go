// Package fixedpoint implements the integer arithmetic shared by the pool
// engine. Amounts are uint64; every product of two amounts is formed in a
// 256-bit intermediate so reserve-scale multiplications cannot wrap.
//
// Rounding is part of the contract: MulDiv floors, MulDivUp rounds up.
// Callers pick the direction that favours the pool.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow reports a result that does not fit the destination width.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrDivisionByZero reports a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// New lifts a uint64 into a 256-bit value.
func New(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ToUint64 narrows a 256-bit value, failing if it does not fit.
func ToUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// Mul returns x*y as a 256-bit value. Two uint64 factors never overflow.
func Mul(x, y uint64) *uint256.Int {
	return new(uint256.Int).Mul(New(x), New(y))
}

// MulWide returns x*y, failing on 256-bit overflow.
func MulWide(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// AddWide returns x+y, failing on 256-bit overflow.
func AddWide(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// DivWide returns floor(x/d).
func DivWide(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(x, d), nil
}

// MulDiv returns floor(x*y/d).
func MulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	z := new(uint256.Int).Div(Mul(x, y), New(d))
	return ToUint64(z)
}

// MulDivUp returns ceil(x*y/d).
func MulDivUp(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	num := Mul(x, y)
	den := New(d)
	q := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		q.AddUint64(q, 1)
	}
	return ToUint64(q)
}

// Add returns x+y, failing on uint64 overflow.
func Add(x, y uint64) (uint64, error) {
	z := x + y
	if z < x {
		return 0, ErrOverflow
	}
	return z, nil
}

// Sub returns x-y, failing if y > x.
func Sub(x, y uint64) (uint64, error) {
	if y > x {
		return 0, ErrOverflow
	}
	return x - y, nil
}

// SqrtProduct returns floor(sqrt(x*y)). The result always fits in uint64.
func SqrtProduct(x, y uint64) uint64 {
	return new(uint256.Int).Sqrt(Mul(x, y)).Uint64()
}
