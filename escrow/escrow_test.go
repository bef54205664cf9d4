// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sjmackenzie/chain-libs/chain"
)

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		params Params
		valid  bool
	}{
		{Params{Linear, 1_000_000, 1, 2, 100}, true},
		{Params{Halving, 1_000_000, 1, 1, 1}, true},
		{Params{Kind(9), 1, 1, 2, 1}, false},
		{Params{Linear, 1, 1, 0, 1}, false},
		{Params{Linear, 1, 0, 2, 1}, false},
		{Params{Linear, 1, 3, 2, 1}, false},
		{Params{Linear, 1, 1, 2, 0}, false},
	}
	for _, tt := range tests {
		err := tt.params.Validate()
		if tt.valid {
			assert.Nil(t, err, "%+v", tt.params)
		} else {
			assert.Error(t, err, "%+v", tt.params)
		}
	}
}

// Linear decay at epoch 0 deducts the full initial amount:
// calc = 1,000,000 - (1/2)*0 = 1,000,000.
func TestLinearEpochZero(t *testing.T) {
	calc, err := NewCalculator(Params{Linear, 1_000_000, 1, 2, 100})
	assert.Nil(t, err)

	deduction, remaining, err := calc.Deduction(1_000_000, 0)
	assert.Nil(t, err)
	assert.Equal(t, chain.Coin(1_000_000), deduction)
	assert.Equal(t, chain.Coin(0), remaining)
}

func TestLinearSteps(t *testing.T) {
	calc, err := NewCalculator(Params{Linear, 1_000_000, 1, 2, 100})
	assert.Nil(t, err)

	tests := []struct {
		epoch    chain.Epoch
		expected chain.Coin
	}{
		{0, 1_000_000},
		{99, 1_000_000},  // still step 0
		{100, 1_000_000}, // floor(1*1/2) = 0
		{200, 999_999},   // floor(2*1/2) = 1
		{300, 999_999},   // floor(3*1/2) = 1
		{400, 999_998},
		// steps = 4e9/100 = 4e7, floor(4e7/2) = 2e7 > f: saturates
		{chain.Epoch(4_000_000_000), 0},
	}
	for _, tt := range tests {
		got, err := calc.CalcDecay(tt.epoch)
		assert.Nil(t, err)
		assert.Equal(t, tt.expected, got, "epoch %d", tt.epoch)
	}
}

// Halving decay: f=1,000,000, ratio 1/2, erate=100 -> at epoch 100 the
// exponent is 1 and calc = 500,000.
func TestHalvingSchedule(t *testing.T) {
	calc, err := NewCalculator(Params{Halving, 1_000_000, 1, 2, 100})
	assert.Nil(t, err)

	tests := []struct {
		epoch    chain.Epoch
		expected chain.Coin
	}{
		{0, 1_000_000},
		{99, 1_000_000},
		{100, 500_000},
		{199, 500_000},
		{200, 250_000},
		{1100, 488}, // eleven halvings with per-step floor
		{2000, 0},   // twenty halvings exhaust 1e6
		{chain.Epoch(4_000_000_000), 0}, // early-exits at zero
	}
	for _, tt := range tests {
		got, err := calc.CalcDecay(tt.epoch)
		assert.Nil(t, err)
		assert.Equal(t, tt.expected, got, "epoch %d", tt.epoch)
	}
}

func TestHalvingRatioOne(t *testing.T) {
	calc, err := NewCalculator(Params{Halving, 777, 5, 5, 1})
	assert.Nil(t, err)
	got, err := calc.CalcDecay(1_000_000)
	assert.Nil(t, err)
	assert.Equal(t, chain.Coin(777), got)
}

// The deduction is clamped by the available escrow, and the pair always
// satisfies deduction + remaining == current.
func TestDeductionClamp(t *testing.T) {
	calc, err := NewCalculator(Params{Linear, 1_000_000, 1, 2, 100})
	assert.Nil(t, err)

	deduction, remaining, err := calc.Deduction(300, 0)
	assert.Nil(t, err)
	assert.Equal(t, chain.Coin(300), deduction)
	assert.Equal(t, chain.Coin(0), remaining)

	deduction, remaining, err = calc.Deduction(2_000_000, 0)
	assert.Nil(t, err)
	assert.Equal(t, chain.Coin(1_000_000), deduction)
	assert.Equal(t, chain.Coin(1_000_000), remaining)
}

// Cached and uncached evaluations agree.
func TestCacheConsistency(t *testing.T) {
	params := Params{Halving, 1 << 40, 3, 4, 7}
	cached, err := NewCalculator(params)
	assert.Nil(t, err)

	for _, epoch := range []chain.Epoch{0, 7, 14, 7, 700, 14, 0} {
		fresh, err := NewCalculator(params)
		assert.Nil(t, err)
		want, err := fresh.CalcDecay(epoch)
		assert.Nil(t, err)
		got, err := cached.CalcDecay(epoch)
		assert.Nil(t, err)
		assert.Equal(t, want, got, "epoch %d", epoch)
	}
}
