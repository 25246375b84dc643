// Package fpmath is the fixed-point arithmetic kernel for the pool math.
//
// All values are non-negative integers; fractional quantities are scaled by
// 1e18 (Precision). Every operation is checked: results above 2^256-1 fail
// with ErrOverflow, subtractions that would go negative fail with
// ErrOverflow, and zero divisors fail with ErrDivisionByZero. Nothing wraps
// or truncates unless the caller asks for a truncating (RoundDown) division.
package fpmath

import (
	"errors"
	"math/big"
)

// Rounding selects the direction a division truncates toward.
type Rounding uint8

const (
	RoundDown Rounding = 0
	RoundUp   Rounding = 1
)

var (
	ErrOverflow       = errors.New("fpmath: value out of range")
	ErrDivisionByZero = errors.New("fpmath: division by zero")
)

// Precision is the fixed-point scale: 1.0 == 1e18.
var Precision = big.NewInt(1_000_000_000_000_000_000)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)

	// maxValue caps every result at 2^256-1.
	maxValue = new(big.Int).Sub(new(big.Int).Lsh(one, 256), one)
)

func checked(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 || v.Cmp(maxValue) > 0 {
		return nil, ErrOverflow
	}
	return v, nil
}

func Add(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Add(a, b))
}

func Sub(a, b *big.Int) (*big.Int, error) {
	if b.Cmp(a) > 0 {
		return nil, ErrOverflow
	}
	return new(big.Int).Sub(a, b), nil
}

func Mul(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Mul(a, b))
}

// Div divides a by b truncating toward the requested direction.
func Div(a, b *big.Int, rounding Rounding) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if rounding == RoundUp && r.Sign() != 0 {
		q.Add(q, one)
	}
	return q, nil
}

// MulDiv computes x*y/denominator in a single step so the intermediate
// product is not subject to the range cap.
func MulDiv(x, y, denominator *big.Int, rounding Rounding) (*big.Int, error) {
	if denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	prod := new(big.Int).Mul(x, y)
	q, r := prod.QuoRem(prod, denominator, new(big.Int))
	if rounding == RoundUp && r.Sign() != 0 {
		q.Add(q, one)
	}
	return checked(q)
}

// Pow raises base to a small non-negative integer exponent.
func Pow(base *big.Int, exp uint64) (*big.Int, error) {
	result := big.NewInt(1)
	cur := new(big.Int).Set(base)
	for e := exp; e > 0; e >>= 1 {
		if e&1 == 1 {
			result.Mul(result, cur)
			if _, err := checked(result); err != nil {
				return nil, err
			}
		}
		if e > 1 {
			cur.Mul(cur, cur)
			if _, err := checked(cur); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}
