// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/arith"
	"github.com/sjmackenzie/chain-libs/chain"
)

// ContributionPolicy decides how much of an amount is taken as a
// contribution: the treasury's cut of the pot, or the owners' cut of a
// pool's account. The contract is result <= input for every input; the
// engine verifies it and fails the settlement with ErrPolicyViolation
// when a policy breaks it.
type ContributionPolicy interface {
	Contribution(n chain.Coin) chain.Coin
}

// RatioPolicy takes floor(n*num/den), optionally capped at a fixed
// amount. It is the standard capped-percentage policy; num <= den keeps
// the contract by construction.
type RatioPolicy struct {
	Num, Den uint64
	// Cap bounds the contribution when non-zero.
	Cap chain.Coin
}

var _ ContributionPolicy = (*RatioPolicy)(nil)

// Validate checks the ratio ranges.
func (p *RatioPolicy) Validate() error {
	if p.Den == 0 {
		return errors.New("reward: policy denominator must not be zero")
	}
	if p.Num > p.Den {
		return errors.New("reward: policy ratio must not exceed 1")
	}
	return nil
}

// Contribution implements ContributionPolicy.
func (p *RatioPolicy) Contribution(n chain.Coin) chain.Coin {
	scaled, err := arith.ScaledRatio(arith.FromCoin(n), p.Num, p.Den)
	if err != nil {
		// n*num fits 192 bits for any pair of 64-bit operands.
		panic(err)
	}
	// num <= den guarantees the quotient fits a coin again.
	r := chain.Coin(scaled.Uint64())
	if p.Cap != 0 && r > p.Cap {
		r = p.Cap
	}
	return r
}

// LeftoverRule names the destination of truncation leftovers: the
// amounts no division stage could distribute. The destination is an
// explicit genesis choice rather than a hardcoded behavior.
type LeftoverRule byte

const (
	// LeftoverToTreasury sweeps leftovers into the treasury within the
	// same settlement.
	LeftoverToTreasury LeftoverRule = iota
	// LeftoverCarryForward returns leftovers as the bootstrap
	// contribution of the next epoch's pot.
	LeftoverCarryForward
)

// String implements stringer.
func (r LeftoverRule) String() string {
	switch r {
	case LeftoverToTreasury:
		return "treasury"
	case LeftoverCarryForward:
		return "carry-forward"
	default:
		return "unknown"
	}
}
