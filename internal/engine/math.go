package engine

import (
	"math/bits"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// checkedAdd returns a+b or domain.ErrArithmetic on 64-bit overflow.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmetic
	}
	return sum, nil
}

// checkedSub returns a-b or domain.ErrArithmetic on underflow.
func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrArithmetic
	}
	return diff, nil
}

// mulDiv returns floor(a*b/d) computed with a 128-bit intermediate so the
// product never wraps. It returns domain.ErrArithmetic when d is zero or the
// quotient does not fit in 64 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, domain.ErrArithmetic
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		// bits.Div64 would panic; the quotient needs more than 64 bits.
		return 0, domain.ErrArithmetic
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
