// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package arith provides the overflow-safe scaled multiply/divide
// primitives used by the reward settlement computations.
//
// All intermediate values are held in 256-bit integers, four times the
// width of a coin amount, so that a scaled multiplication of two 64-bit
// operands can never wrap. Narrowing back to a coin amount is always
// checked: a narrowing that would lose significant bits indicates a
// width-configuration defect and surfaces as ErrOverflow rather than a
// wrong result.
package arith

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
)

// ErrOverflow is returned when a wide multiply or a narrowing step does
// not fit its target width. It is fatal to the enclosing settlement.
var ErrOverflow = errors.New("arithmetic overflow")

// maxPow10 is the largest power of ten that fits a uint256
// (10^77 < 2^256 < 10^78).
const maxPow10 = 77

var pow10 [maxPow10 + 1]*uint256.Int

func init() {
	ten := uint256.NewInt(10)
	pow10[0] = uint256.NewInt(1)
	for i := 1; i <= maxPow10; i++ {
		pow10[i] = new(uint256.Int).Mul(pow10[i-1], ten)
	}
}

// FromCoin widens a coin amount.
func FromCoin(c chain.Coin) *uint256.Int {
	return uint256.NewInt(uint64(c))
}

// ToCoin narrows x back to a coin amount. ErrOverflow if significant
// bits would be lost.
func ToCoin(x *uint256.Int) (chain.Coin, error) {
	if !x.IsUint64() {
		return 0, errors.WithMessage(ErrOverflow, "narrowing to coin")
	}
	return chain.Coin(x.Uint64()), nil
}

// Upscale returns v*10^pow.
func Upscale(v chain.Coin, pow uint) *uint256.Int {
	x := FromCoin(v)
	if _, overflow := x.MulOverflow(x, pow10[pow]); overflow {
		// v is 64 bits and pow is a fixed scale constant well below
		// maxPow10, so this cannot be reached through the public API.
		panic("arith: upscale overflow")
	}
	return x
}

// Downscale returns floor(x / 10^pow).
func Downscale(x *uint256.Int, pow uint) *uint256.Int {
	return new(uint256.Int).Div(x, pow10[pow])
}

// DownscaleToCoin returns floor(x / 10^pow) narrowed to a coin amount.
func DownscaleToCoin(x *uint256.Int, pow uint) (chain.Coin, error) {
	return ToCoin(Downscale(x, pow))
}

// ScaledRatio returns floor(x*num / den). The multiplication happens at
// the full 256-bit width before the division; the result stays wide so
// callers can keep it at scale. den must be non-zero.
func ScaledRatio(x *uint256.Int, num, den uint64) (*uint256.Int, error) {
	r := new(uint256.Int)
	if _, overflow := r.MulOverflow(x, uint256.NewInt(num)); overflow {
		return nil, errors.WithMessage(ErrOverflow, "scaled ratio multiply")
	}
	return r.Div(r, uint256.NewInt(den)), nil
}

// Mul returns x*y, failing on wrap.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	r := new(uint256.Int)
	if _, overflow := r.MulOverflow(x, y); overflow {
		return nil, errors.WithMessage(ErrOverflow, "wide multiply")
	}
	return r, nil
}

// DivMod returns (quotient, remainder) such that n = quotient*d +
// remainder. Every integer division in the settlement goes through
// DivMod so remainders are never discarded implicitly. d must be
// non-zero.
func DivMod(n, d *uint256.Int) (*uint256.Int, *uint256.Int) {
	q, r := new(uint256.Int), new(uint256.Int)
	return q.DivMod(n, d, r)
}
