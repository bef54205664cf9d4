// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjmackenzie/chain-libs/chain"
)

func TestFeePot(t *testing.T) {
	pot := NewFeePot(0)
	assert.Equal(t, chain.Coin(0), pot.Amount())

	require.NoError(t, pot.RecordFee(100))
	require.NoError(t, pot.RecordFee(50))
	assert.Equal(t, chain.Coin(150), pot.Amount())

	total, err := pot.Settle(1000)
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(1150), total)
	assert.Equal(t, chain.Coin(0), pot.Amount(), "settle resets the pot")

	pot.Seed(7)
	assert.Equal(t, chain.Coin(7), pot.Amount())
}

func TestFeePotOverflow(t *testing.T) {
	pot := NewFeePot(chain.Coin(math.MaxUint64))

	err := pot.RecordFee(1)
	assert.True(t, errors.Is(err, ErrArithmeticOverflow))
	assert.Equal(t, chain.Coin(math.MaxUint64), pot.Amount(), "failed record leaves the pot untouched")

	_, err = pot.Settle(1)
	assert.True(t, errors.Is(err, ErrArithmeticOverflow))
}

func TestRatioPolicy(t *testing.T) {
	p := &RatioPolicy{Num: 1, Den: 10}
	require.NoError(t, p.Validate())
	assert.Equal(t, chain.Coin(100), p.Contribution(1000))
	assert.Equal(t, chain.Coin(0), p.Contribution(9), "floors toward zero")

	capped := &RatioPolicy{Num: 1, Den: 2, Cap: 40}
	assert.Equal(t, chain.Coin(40), capped.Contribution(1000))
	assert.Equal(t, chain.Coin(10), capped.Contribution(20))

	// the full range never exceeds its input
	full := &RatioPolicy{Num: 1, Den: 1}
	assert.Equal(t, chain.Coin(math.MaxUint64), full.Contribution(chain.Coin(math.MaxUint64)))

	assert.Error(t, (&RatioPolicy{Num: 2, Den: 1}).Validate())
	assert.Error(t, (&RatioPolicy{Num: 1, Den: 0}).Validate())
}
