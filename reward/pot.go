// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
)

// FeePot accumulates the fees collected during the current epoch. At
// the epoch boundary it combines with the escrow deduction to form the
// reward pot and resets for the next epoch.
type FeePot struct {
	fees chain.Coin
}

// NewFeePot creates an empty pot, optionally seeded with a carried-over
// leftover from the previous settlement.
func NewFeePot(seed chain.Coin) *FeePot {
	return &FeePot{fees: seed}
}

// Amount returns the fees accumulated so far.
func (p *FeePot) Amount() chain.Coin {
	return p.fees
}

// RecordFee adds one applied block's collected fees. Overflow of the
// running total is fatal; it cannot happen while the circulating supply
// fits a coin.
func (p *FeePot) RecordFee(amount chain.Coin) error {
	sum, ok := p.fees.Add(amount)
	if !ok {
		return errors.WithMessage(ErrArithmeticOverflow, "fee pot")
	}
	p.fees = sum
	return nil
}

// Settle combines the accumulated fees with the escrow deduction into
// the reward pot and resets the accumulator to zero.
func (p *FeePot) Settle(deduction chain.Coin) (chain.Coin, error) {
	pot, ok := p.fees.Add(deduction)
	if !ok {
		return 0, errors.WithMessage(ErrArithmeticOverflow, "reward pot")
	}
	p.fees = 0
	return pot, nil
}

// Seed sets the starting amount for the next epoch, used by the
// carry-forward leftover rule.
func (p *FeePot) Seed(amount chain.Coin) {
	p.fees = amount
}
