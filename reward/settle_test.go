// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/escrow"
	"github.com/sjmackenzie/chain-libs/stake"
)

func testID(b byte) chain.Identifier {
	var id [32]byte
	id[0] = 0x10
	id[31] = b
	return chain.BytesToIdentifier(id[:])
}

// noDecay keeps the escrow out of the picture so the pot equals the fees.
var noDecay = escrow.Params{
	Kind:      escrow.Linear,
	Initial:   0,
	RatioNum:  1,
	RatioDen:  1,
	EpochRate: 1,
}

func testParams(rule LeftoverRule) *Params {
	return &Params{
		Decay:          noDecay,
		TreasuryPolicy: &RatioPolicy{Num: 1, Den: 10},
		OwnerPolicy:    &RatioPolicy{Num: 1, Den: 10},
		Leftover:       rule,
	}
}

func sumDeltas(m map[chain.Identifier]chain.Coin) chain.Coin {
	var total chain.Coin
	for _, v := range m {
		total += v
	}
	return total
}

// assertConserved checks the settlement-wide exactness invariant: every
// coin of the pot reaches a named destination.
func assertConserved(t *testing.T, res *Result) {
	t.Helper()
	distributed := res.TreasuryCut + sumDeltas(res.OwnerDeltas) + sumDeltas(res.DelegatorDeltas)
	assert.Equal(t, res.Pot, distributed+res.Leftover, "pot not conserved")
}

func TestSettleFullScenario(t *testing.T) {
	owner1, owner2, owner3, owner4 := testID(1), testID(2), testID(3), testID(4)
	del1, del2 := testID(11), testID(12)
	poolA, poolB, poolC := testID(101), testID(102), testID(103)

	snap := &stake.Snapshot{
		Pools: []stake.PoolSnapshot{
			{
				ID:            poolA,
				BlocksCreated: 2,
				StakeTotal:    3,
				Owners:        []chain.Identifier{owner1},
				Delegations: []stake.Delegation{
					{Delegator: del1, Stake: 1},
					{Delegator: del2, Stake: 2},
				},
			},
			{
				ID:            poolB,
				BlocksCreated: 1,
				StakeTotal:    0,
				Owners:        []chain.Identifier{owner2, owner3},
			},
			{
				ID:            poolC,
				BlocksCreated: 0,
				StakeTotal:    0,
				Owners:        []chain.Identifier{owner4},
			},
		},
	}

	res, err := Settle(testParams(LeftoverToTreasury), &Input{
		Treasury:    5000,
		Fees:        1000,
		TotalBlocks: 3,
		Snapshot:    snap,
	})
	require.NoError(t, err)

	assert.Equal(t, chain.Coin(1000), res.Pot)
	assert.Equal(t, chain.Coin(100), res.TreasuryCut)
	assert.Equal(t, chain.Coin(900), res.PoolContribution)

	// 900 over 3 blocks: 300 per block.
	assert.Equal(t, chain.Coin(600), res.PoolShares[poolA])
	assert.Equal(t, chain.Coin(300), res.PoolShares[poolB])
	assert.Equal(t, chain.Coin(0), res.PoolShares[poolC])

	// pool A: 10% owner cut = 60, stake track 540 split 1:2.
	assert.Equal(t, chain.Coin(60), res.OwnerDeltas[owner1])
	assert.Equal(t, chain.Coin(180), res.DelegatorDeltas[del1])
	assert.Equal(t, chain.Coin(360), res.DelegatorDeltas[del2])

	// pool B has no stake: the whole account folds into the owner track.
	assert.Equal(t, chain.Coin(150), res.OwnerDeltas[owner2])
	assert.Equal(t, chain.Coin(150), res.OwnerDeltas[owner3])

	// pool C created no blocks and receives nothing.
	assert.NotContains(t, res.OwnerDeltas, owner4)

	assert.Equal(t, chain.Coin(0), res.Leftover)
	assert.Equal(t, chain.Coin(5100), res.NewTreasury)
	assert.Equal(t, chain.Coin(0), res.NewEscrow)
	assertConserved(t, res)
}

func TestSettleEmptyPot(t *testing.T) {
	res, err := Settle(testParams(LeftoverToTreasury), &Input{
		Treasury: 42,
		Snapshot: &stake.Snapshot{},
	})
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(0), res.Pot)
	assert.Equal(t, chain.Coin(42), res.NewTreasury)
	assert.Empty(t, res.OwnerDeltas)
	assert.Empty(t, res.DelegatorDeltas)
}

func TestPoolShareShortfall(t *testing.T) {
	// 100 coins over 3 equal pools: 33 each, 1 coin of shortfall.
	params := &Params{
		Decay:          noDecay,
		TreasuryPolicy: &RatioPolicy{Num: 0, Den: 1},
		OwnerPolicy:    &RatioPolicy{Num: 1, Den: 1},
		Leftover:       LeftoverToTreasury,
	}
	snap := func() *stake.Snapshot {
		return &stake.Snapshot{Pools: []stake.PoolSnapshot{
			{ID: testID(1), BlocksCreated: 1, Owners: []chain.Identifier{testID(21)}},
			{ID: testID(2), BlocksCreated: 1, Owners: []chain.Identifier{testID(22)}},
			{ID: testID(3), BlocksCreated: 1, Owners: []chain.Identifier{testID(23)}},
		}}
	}

	res, err := Settle(params, &Input{Fees: 100, TotalBlocks: 3, Snapshot: snap()})
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(33), res.PoolShares[testID(1)])
	assert.Equal(t, chain.Coin(1), res.Leftover)
	assert.Equal(t, chain.Coin(1), res.NewTreasury)
	assert.Equal(t, chain.Coin(0), res.CarryForward)
	assertConserved(t, res)

	params.Leftover = LeftoverCarryForward
	res, err = Settle(params, &Input{Fees: 100, TotalBlocks: 3, Snapshot: snap()})
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(1), res.Leftover)
	assert.Equal(t, chain.Coin(1), res.CarryForward)
	assert.Equal(t, chain.Coin(0), res.NewTreasury)
	assertConserved(t, res)
}

func TestOwnerRemainderRotation(t *testing.T) {
	// 100 coins to 3 owners: 33 each plus 1 to the rotating owner.
	owners := []chain.Identifier{testID(1), testID(2), testID(3)}
	params := &Params{
		Decay:          noDecay,
		TreasuryPolicy: &RatioPolicy{Num: 0, Den: 1},
		OwnerPolicy:    &RatioPolicy{Num: 1, Den: 1},
		Leftover:       LeftoverToTreasury,
	}

	for index := uint64(0); index < 6; index++ {
		snap := &stake.Snapshot{Pools: []stake.PoolSnapshot{
			{ID: testID(100), BlocksCreated: 1, Owners: owners},
		}}
		res, err := Settle(params, &Input{
			Fees:            100,
			SettlementIndex: index,
			TotalBlocks:     1,
			Snapshot:        snap,
		})
		require.NoError(t, err)

		for i, owner := range owners {
			want := chain.Coin(33)
			if uint64(i) == index%3 {
				want = 34
			}
			assert.Equal(t, want, res.OwnerDeltas[owner], "index %d owner %d", index, i)
		}
		// The owner track is exact: no leftover from this stage.
		assert.Equal(t, chain.Coin(0), res.Leftover)
		assertConserved(t, res)
	}
}

func TestStakeTrackDust(t *testing.T) {
	// 100 coins over 3 equal stakes: 33 each, 1 coin of dust.
	params := &Params{
		Decay:          noDecay,
		TreasuryPolicy: &RatioPolicy{Num: 0, Den: 1},
		OwnerPolicy:    &RatioPolicy{Num: 0, Den: 1},
		Leftover:       LeftoverCarryForward,
	}
	snap := &stake.Snapshot{Pools: []stake.PoolSnapshot{{
		ID:            testID(100),
		BlocksCreated: 1,
		StakeTotal:    3,
		Owners:        []chain.Identifier{testID(1)},
		Delegations: []stake.Delegation{
			{Delegator: testID(11), Stake: 1},
			{Delegator: testID(12), Stake: 1},
			{Delegator: testID(13), Stake: 1},
		},
	}}}

	res, err := Settle(params, &Input{Fees: 100, TotalBlocks: 1, Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(33), res.DelegatorDeltas[testID(11)])
	assert.Equal(t, chain.Coin(33), res.DelegatorDeltas[testID(12)])
	assert.Equal(t, chain.Coin(33), res.DelegatorDeltas[testID(13)])
	assert.Equal(t, chain.Coin(1), res.Leftover)
	assert.Equal(t, chain.Coin(1), res.CarryForward)
	assertConserved(t, res)
}

func TestZeroTotalBlocks(t *testing.T) {
	snap := &stake.Snapshot{Pools: []stake.PoolSnapshot{
		{ID: testID(1), Owners: []chain.Identifier{testID(21)}},
	}}
	res, err := Settle(testParams(LeftoverCarryForward), &Input{
		Fees:     1000,
		Snapshot: snap,
	})
	require.NoError(t, err)
	assert.Equal(t, chain.Coin(100), res.TreasuryCut)
	assert.Equal(t, chain.Coin(0), res.PoolShares[testID(1)])
	assert.Equal(t, chain.Coin(900), res.Leftover)
	assert.Equal(t, chain.Coin(900), res.CarryForward)
	assert.Empty(t, res.OwnerDeltas)
	assertConserved(t, res)
}

type greedyPolicy struct{}

func (greedyPolicy) Contribution(n chain.Coin) chain.Coin { return n + 1 }

func TestPolicyViolation(t *testing.T) {
	snap := func() *stake.Snapshot {
		return &stake.Snapshot{Pools: []stake.PoolSnapshot{
			{ID: testID(1), BlocksCreated: 1, Owners: []chain.Identifier{testID(21)}},
		}}
	}

	_, err := Settle(&Params{
		Decay:          noDecay,
		TreasuryPolicy: greedyPolicy{},
		OwnerPolicy:    &RatioPolicy{Num: 1, Den: 1},
		Leftover:       LeftoverToTreasury,
	}, &Input{Fees: 100, TotalBlocks: 1, Snapshot: snap()})
	assert.True(t, errors.Is(err, ErrPolicyViolation))
	assert.True(t, IsFatal(err))

	_, err = Settle(&Params{
		Decay:          noDecay,
		TreasuryPolicy: &RatioPolicy{Num: 0, Den: 1},
		OwnerPolicy:    greedyPolicy{},
		Leftover:       LeftoverToTreasury,
	}, &Input{Fees: 100, TotalBlocks: 1, Snapshot: snap()})
	assert.True(t, errors.Is(err, ErrPolicyViolation))
}

func TestInconsistentInput(t *testing.T) {
	// epoch block total disagreeing with the per-pool counts
	_, err := Settle(testParams(LeftoverToTreasury), &Input{
		Fees:        100,
		TotalBlocks: 5,
		Snapshot: &stake.Snapshot{Pools: []stake.PoolSnapshot{
			{ID: testID(1), BlocksCreated: 1, Owners: []chain.Identifier{testID(21)}},
		}},
	})
	assert.True(t, errors.Is(err, ErrInconsistentInput))

	// stake total disagreeing with the delegation list
	_, err = Settle(testParams(LeftoverToTreasury), &Input{
		Fees:        100,
		TotalBlocks: 1,
		Snapshot: &stake.Snapshot{Pools: []stake.PoolSnapshot{{
			ID:            testID(1),
			BlocksCreated: 1,
			StakeTotal:    10,
			Owners:        []chain.Identifier{testID(21)},
			Delegations:   []stake.Delegation{{Delegator: testID(11), Stake: 3}},
		}}},
	})
	assert.True(t, errors.Is(err, ErrInconsistentInput))
}

func TestSettleDeterminism(t *testing.T) {
	build := func(reversed bool) *stake.Snapshot {
		pools := []stake.PoolSnapshot{
			{
				ID:            testID(1),
				BlocksCreated: 3,
				StakeTotal:    10,
				Owners:        []chain.Identifier{testID(21), testID(22)},
				Delegations: []stake.Delegation{
					{Delegator: testID(11), Stake: 7},
					{Delegator: testID(12), Stake: 3},
				},
			},
			{
				ID:            testID(2),
				BlocksCreated: 4,
				Owners:        []chain.Identifier{testID(23)},
			},
		}
		if reversed {
			pools[0], pools[1] = pools[1], pools[0]
			dels := pools[1].Delegations
			dels[0], dels[1] = dels[1], dels[0]
		}
		return &stake.Snapshot{Pools: pools}
	}

	input := func(reversed bool) *Input {
		return &Input{
			Treasury:        1000,
			Fees:            999_999,
			SettlementIndex: 5,
			TotalBlocks:     7,
			Snapshot:        build(reversed),
		}
	}

	first, err := Settle(testParams(LeftoverCarryForward), input(false))
	require.NoError(t, err)
	second, err := Settle(testParams(LeftoverCarryForward), input(true))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assertConserved(t, first)
}

func TestConservationProperty(t *testing.T) {
	f := fuzz.NewWithSeed(0x5eed)
	params := testParams(LeftoverCarryForward)

	for round := 0; round < 200; round++ {
		var poolCount, fees, escrowSeed uint16
		f.Fuzz(&poolCount)
		f.Fuzz(&fees)
		f.Fuzz(&escrowSeed)

		snap := &stake.Snapshot{}
		var totalBlocks uint64
		for p := 0; p < int(poolCount%5); p++ {
			var blocks uint8
			var ownerCount, delCount uint8
			f.Fuzz(&blocks)
			f.Fuzz(&ownerCount)
			f.Fuzz(&delCount)

			pool := stake.PoolSnapshot{
				ID:            testID(byte(100 + p)),
				BlocksCreated: uint32(blocks),
			}
			for o := 0; o <= int(ownerCount%4); o++ {
				pool.Owners = append(pool.Owners, testID(byte(1+10*p+o)))
			}
			for d := 0; d < int(delCount%4); d++ {
				var s uint16
				f.Fuzz(&s)
				del := stake.Delegation{
					Delegator: testID(byte(50 + 10*p + d)),
					Stake:     chain.Coin(s) + 1,
				}
				pool.Delegations = append(pool.Delegations, del)
				pool.StakeTotal += del.Stake
			}
			totalBlocks += uint64(pool.BlocksCreated)
			snap.Pools = append(snap.Pools, pool)
		}

		res, err := Settle(params, &Input{
			Fees:            chain.Coin(fees),
			SettlementIndex: uint64(round),
			TotalBlocks:     totalBlocks,
			Snapshot:        snap,
		})
		require.NoError(t, err, "round %d", round)
		assertConserved(t, res)
	}
}
