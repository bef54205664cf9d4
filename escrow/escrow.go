// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package escrow computes the per-epoch deduction from the
// genesis-funded reward escrow.
//
// The escrow balance is set once at genesis and only ever decreases, by
// the amount the configured decay curve yields for the epoch being
// settled. Two curves exist: a linear ramp-down and a halving-style
// exponential reduction. Both carry their ratio as an exact
// numerator/denominator pair; no floating point is involved anywhere so
// every node computes bit-identical deductions.
package escrow

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/arith"
	"github.com/sjmackenzie/chain-libs/chain"
)

// Kind selects the decay curve. It is a closed choice fixed at genesis.
type Kind byte

const (
	// Linear decays the initial amount by ratio coins per step:
	// calc = f - floor(steps*num/den), saturating at zero.
	Linear Kind = iota
	// Halving multiplies the initial amount by ratio once per step:
	// calc = f * (num/den)^steps, floored at every step, saturating at
	// zero.
	Halving
)

// String implements stringer.
func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Halving:
		return "halving"
	default:
		return "unknown"
	}
}

// Params are the genesis-supplied decay curve parameters.
type Params struct {
	Kind Kind
	// Initial is f, the amount the curve starts from.
	Initial chain.Coin
	// RatioNum/RatioDen carry rratio exactly; 0 < num <= den.
	RatioNum uint64
	RatioDen uint64
	// EpochRate is erate, the number of epochs per decay step.
	EpochRate uint32
}

// Validate checks the parameter ranges.
func (p *Params) Validate() error {
	if p.Kind != Linear && p.Kind != Halving {
		return errors.New("escrow: unknown decay kind")
	}
	if p.RatioDen == 0 {
		return errors.New("escrow: ratio denominator must not be zero")
	}
	if p.RatioNum == 0 || p.RatioNum > p.RatioDen {
		return errors.New("escrow: ratio must be in (0, 1]")
	}
	if p.EpochRate == 0 {
		return errors.New("escrow: epoch rate must not be zero")
	}
	return nil
}

// cacheSize bounds the per-step calc cache. Settlement touches one step
// per epoch so a handful of entries covers restarts and reorgs.
const cacheSize = 16

// Calculator evaluates the decay curve. Results are cached per decay
// step, since every epoch inside a step yields the same amount.
type Calculator struct {
	params Params
	cache  *lru.Cache // step (uint64) -> chain.Coin
}

// NewCalculator creates a calculator for the given parameters.
func NewCalculator(params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Calculator{params: params, cache: cache}, nil
}

// Params returns the curve parameters.
func (c *Calculator) Params() Params {
	return c.params
}

// CalcDecay returns the curve value for the given epoch, before
// clamping against the actual escrow balance.
func (c *Calculator) CalcDecay(epoch chain.Epoch) (chain.Coin, error) {
	step := uint64(epoch) / uint64(c.params.EpochRate)
	if cached, ok := c.cache.Get(step); ok {
		return cached.(chain.Coin), nil
	}

	var (
		calc chain.Coin
		err  error
	)
	switch c.params.Kind {
	case Linear:
		calc, err = c.calcLinear(step)
	case Halving:
		calc, err = c.calcHalving(step)
	default:
		err = errors.New("escrow: unknown decay kind")
	}
	if err != nil {
		return 0, err
	}
	c.cache.Add(step, calc)
	return calc, nil
}

// Deduction returns the amount to move out of the escrow for the epoch
// and the escrow balance left afterwards. The deduction never exceeds
// the current balance.
func (c *Calculator) Deduction(current chain.Coin, epoch chain.Epoch) (deduction, remaining chain.Coin, err error) {
	calc, err := c.CalcDecay(epoch)
	if err != nil {
		return 0, 0, err
	}
	deduction = calc
	if deduction > current {
		deduction = current
	}
	remaining, _ = current.Sub(deduction)
	return deduction, remaining, nil
}

func (c *Calculator) calcLinear(step uint64) (chain.Coin, error) {
	// floor(steps*num/den) in wide width, then saturating subtract.
	scaled, err := arith.ScaledRatio(uint256.NewInt(step), c.params.RatioNum, c.params.RatioDen)
	if err != nil {
		return 0, err
	}
	if !scaled.IsUint64() {
		return 0, nil
	}
	calc, ok := c.params.Initial.Sub(chain.Coin(scaled.Uint64()))
	if !ok {
		return 0, nil
	}
	return calc, nil
}

func (c *Calculator) calcHalving(step uint64) (chain.Coin, error) {
	// Ratio 1 never decays.
	if c.params.RatioNum == c.params.RatioDen {
		return c.params.Initial, nil
	}
	// Repeated exact-rational reduction with a floor at every step.
	// The value strictly decreases for num < den, so the loop is
	// bounded regardless of the step count.
	value := arith.FromCoin(c.params.Initial)
	for i := uint64(0); i < step; i++ {
		var err error
		if value, err = arith.ScaledRatio(value, c.params.RatioNum, c.params.RatioDen); err != nil {
			return 0, err
		}
		if value.IsZero() {
			break
		}
	}
	return arith.ToCoin(value)
}
