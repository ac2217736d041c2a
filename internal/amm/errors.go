package amm

import (
	"errors"
	"fmt"

	"ammEngine/internal/fixedpoint"
)

// Category groups engine errors by the point at which they are raised.
type Category int

const (
	// CategoryValidation errors reject malformed input before state is read.
	CategoryValidation Category = iota + 1
	// CategoryState errors reject a call after reading state, before writing.
	CategoryState
	// CategoryContract errors reject a computed result that violates a
	// caller-supplied bound.
	CategoryContract
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryState:
		return "state"
	case CategoryContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Error is a typed engine failure with a stable numeric code.
type Error struct {
	Code     int
	Name     string
	Category Category
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Name, e.Code)
}

var (
	ErrPoolAlreadyExists            = &Error{Code: 101, Name: "pool already exists", Category: CategoryState}
	ErrPoolNotFound                 = &Error{Code: 102, Name: "pool not found", Category: CategoryState}
	ErrInsufficientLiquidity        = &Error{Code: 103, Name: "insufficient liquidity", Category: CategoryState}
	ErrZeroAmount                   = &Error{Code: 104, Name: "zero amount", Category: CategoryValidation}
	ErrSlippageExceeded             = &Error{Code: 105, Name: "slippage exceeded", Category: CategoryContract}
	ErrDeadlineExpired              = &Error{Code: 106, Name: "deadline expired", Category: CategoryContract}
	ErrInvalidFee                   = &Error{Code: 107, Name: "invalid fee", Category: CategoryValidation}
	ErrInvalidAssetPair             = &Error{Code: 108, Name: "invalid asset pair", Category: CategoryValidation}
	ErrInsufficientShares           = &Error{Code: 109, Name: "insufficient shares", Category: CategoryState}
	ErrDivisionByZero               = &Error{Code: 110, Name: "division by zero", Category: CategoryValidation}
	ErrInsufficientInitialLiquidity = &Error{Code: 111, Name: "insufficient initial liquidity", Category: CategoryValidation}
	ErrOverflow                     = &Error{Code: 112, Name: "arithmetic overflow", Category: CategoryValidation}
	ErrInvalidAsset                 = &Error{Code: 113, Name: "asset not in pool", Category: CategoryValidation}
	ErrInvalidProvider              = &Error{Code: 114, Name: "provider required", Category: CategoryValidation}
	ErrClockUnavailable             = &Error{Code: 115, Name: "clock unavailable", Category: CategoryState}
)

// CodeOf returns the engine code carried by err, or 0 for foreign errors.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// SlippageError reports a computed amount outside the caller's bound. It
// matches ErrSlippageExceeded under errors.Is.
type SlippageError struct {
	Field    string
	Computed uint64
	Limit    uint64
	// Maximum is set when Limit is an upper bound.
	Maximum bool
}

func (e *SlippageError) Error() string {
	if e.Maximum {
		return fmt.Sprintf("%s: %s %d above maximum %d", ErrSlippageExceeded, e.Field, e.Computed, e.Limit)
	}
	return fmt.Sprintf("%s: %s %d below minimum %d", ErrSlippageExceeded, e.Field, e.Computed, e.Limit)
}

func (e *SlippageError) Unwrap() error { return ErrSlippageExceeded }

// DeadlineError reports a call submitted after its deadline. It matches
// ErrDeadlineExpired under errors.Is.
type DeadlineError struct {
	Deadline uint64
	Clock    uint64
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("%s: deadline %d before clock %d", ErrDeadlineExpired, e.Deadline, e.Clock)
}

func (e *DeadlineError) Unwrap() error { return ErrDeadlineExpired }

// arith maps fixed-point failures onto engine errors.
func arith(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fixedpoint.ErrDivisionByZero):
		return fmt.Errorf("%w: %s", ErrDivisionByZero, what)
	case errors.Is(err, fixedpoint.ErrOverflow):
		return fmt.Errorf("%w: %s", ErrOverflow, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
