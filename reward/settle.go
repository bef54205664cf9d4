// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reward implements epoch reward settlement: the deterministic
// computation, at each epoch boundary, of how many coins flow from the
// decaying escrow plus collected fees into the treasury, the stake-pool
// owners and their delegators.
//
// Settlement is a single synchronous pass over a frozen snapshot. Every
// division goes through the wide-arithmetic primitives so remainders
// are tracked, and every truncation leftover ends up at a named
// destination: the rotating owner, the treasury, or the next epoch's
// pot. Identical inputs yield bit-identical results on every node.
package reward

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/arith"
	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/escrow"
	"github.com/sjmackenzie/chain-libs/stake"
)

const (
	// blockScale is the precision of the per-block unit when splitting
	// the pool contribution across pools.
	blockScale = 9
	// ownerScale is the precision of the per-owner unit.
	ownerScale = 9
	// stakeScale is the precision of the per-stake-unit amount. Stakes
	// are typically much larger than block counts and need the finer
	// scale.
	stakeScale = 18
)

// Params is the genesis-configured settlement behavior.
type Params struct {
	Decay          escrow.Params
	TreasuryPolicy ContributionPolicy
	OwnerPolicy    ContributionPolicy
	Leftover       LeftoverRule
}

// Validate checks the parameter set.
func (p *Params) Validate() error {
	if err := p.Decay.Validate(); err != nil {
		return err
	}
	if p.TreasuryPolicy == nil {
		return errors.New("reward: treasury policy must be set")
	}
	if p.OwnerPolicy == nil {
		return errors.New("reward: owner policy must be set")
	}
	if p.Leftover != LeftoverToTreasury && p.Leftover != LeftoverCarryForward {
		return errors.New("reward: unknown leftover rule")
	}
	return nil
}

// Input is the frozen state a settlement consumes. The surrounding
// ledger gathers it before settlement begins.
type Input struct {
	Escrow   chain.Coin
	Treasury chain.Coin
	// Fees is the epoch's collected fee total.
	Fees  chain.Coin
	Epoch chain.Epoch
	// SettlementIndex is the monotonic rotation key deciding which
	// owner absorbs each pool's owner-track remainder.
	SettlementIndex uint64
	// TotalBlocks is the epoch's block count as tracked by the ledger;
	// it must equal the sum of the snapshot's per-pool counts.
	TotalBlocks uint64
	Snapshot    *stake.Snapshot
}

// Result is the outcome of a settlement: the two updated protocol
// balances and the additive per-account deltas. Delta maps only hold
// non-zero amounts; PoolShares holds every pool, zero shares included.
type Result struct {
	NewEscrow   chain.Coin
	NewTreasury chain.Coin

	Deduction        chain.Coin
	Pot              chain.Coin
	TreasuryCut      chain.Coin
	PoolContribution chain.Coin

	PoolShares      map[chain.Identifier]chain.Coin
	OwnerDeltas     map[chain.Identifier]chain.Coin
	DelegatorDeltas map[chain.Identifier]chain.Coin

	// Leftover is the total truncation loss of this settlement;
	// CarryForward is the part of it handed to the next epoch's pot
	// (zero under the treasury rule).
	Leftover     chain.Coin
	CarryForward chain.Coin
}

// Settle runs one epoch settlement as a pure function of its inputs.
// The snapshot is canonicalized in place; its semantics are unchanged.
func Settle(params *Params, in *Input) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	calc, err := escrow.NewCalculator(params.Decay)
	if err != nil {
		return nil, err
	}
	return settle(params, calc, in)
}

func settle(params *Params, calc *escrow.Calculator, in *Input) (*Result, error) {
	snap := in.Snapshot
	if snap == nil {
		snap = &stake.Snapshot{}
	}
	if err := snap.Validate(); err != nil {
		return nil, errors.WithMessage(ErrInconsistentInput, err.Error())
	}
	if got := snap.TotalBlocks(); got != in.TotalBlocks {
		return nil, errors.WithMessagef(ErrInconsistentInput,
			"per-pool block counts sum to %d, epoch total is %d", got, in.TotalBlocks)
	}
	snap.Canonicalize()

	// Stage 1: escrow deduction and pot formation.
	deduction, newEscrow, err := calc.Deduction(in.Escrow, in.Epoch)
	if err != nil {
		return nil, err
	}
	pot, ok := in.Fees.Add(deduction)
	if !ok {
		return nil, errors.WithMessage(ErrArithmeticOverflow, "reward pot")
	}

	// Stage 2: treasury cut.
	treasuryCut := params.TreasuryPolicy.Contribution(pot)
	if treasuryCut > pot {
		return nil, errors.WithMessagef(ErrPolicyViolation,
			"treasury contribution %v exceeds pot %v", treasuryCut, pot)
	}
	poolContribution, _ := pot.Sub(treasuryCut)
	newTreasury, ok := in.Treasury.Add(treasuryCut)
	if !ok {
		return nil, errors.WithMessage(ErrArithmeticOverflow, "treasury balance")
	}

	res := &Result{
		NewEscrow:        newEscrow,
		Deduction:        deduction,
		Pot:              pot,
		TreasuryCut:      treasuryCut,
		PoolContribution: poolContribution,
		PoolShares:       make(map[chain.Identifier]chain.Coin, len(snap.Pools)),
		OwnerDeltas:      make(map[chain.Identifier]chain.Coin),
		DelegatorDeltas:  make(map[chain.Identifier]chain.Coin),
	}

	// Stage 3: split across pools proportional to blocks created.
	leftover, err := distributePools(res, poolContribution, in.TotalBlocks, snap)
	if err != nil {
		return nil, err
	}

	// Stage 4: per-pool owner/delegator split.
	for i := range snap.Pools {
		dust, err := splitPool(res, &snap.Pools[i], params.OwnerPolicy, in.SettlementIndex)
		if err != nil {
			return nil, err
		}
		if leftover, ok = leftover.Add(dust); !ok {
			return nil, errors.WithMessage(ErrArithmeticOverflow, "leftover total")
		}
	}

	// Stage 5: route the leftover to its configured destination.
	res.Leftover = leftover
	switch params.Leftover {
	case LeftoverToTreasury:
		if newTreasury, ok = newTreasury.Add(leftover); !ok {
			return nil, errors.WithMessage(ErrArithmeticOverflow, "treasury balance")
		}
	case LeftoverCarryForward:
		res.CarryForward = leftover
	}
	res.NewTreasury = newTreasury
	return res, nil
}

// distributePools assigns every pool its block-proportional share of
// the pool contribution and returns the truncation shortfall. With zero
// total blocks nothing is distributed and the whole contribution is the
// shortfall; no division happens on that path.
func distributePools(res *Result, poolContribution chain.Coin, totalBlocks uint64, snap *stake.Snapshot) (chain.Coin, error) {
	for i := range snap.Pools {
		res.PoolShares[snap.Pools[i].ID] = 0
	}
	if totalBlocks == 0 {
		return poolContribution, nil
	}

	// unit = floor(contribution*10^9 / totalBlocks), kept at scale.
	unit, _ := arith.DivMod(arith.Upscale(poolContribution, blockScale), uint256.NewInt(totalBlocks))

	var distributed chain.Coin
	for i := range snap.Pools {
		pool := &snap.Pools[i]
		if pool.BlocksCreated == 0 {
			continue
		}
		scaled, err := arith.Mul(unit, uint256.NewInt(uint64(pool.BlocksCreated)))
		if err != nil {
			return 0, err
		}
		share, err := arith.DownscaleToCoin(scaled, blockScale)
		if err != nil {
			return 0, err
		}
		res.PoolShares[pool.ID] = share

		var ok bool
		if distributed, ok = distributed.Add(share); !ok {
			return 0, errors.WithMessage(ErrArithmeticOverflow, "distributed total")
		}
	}

	shortfall, ok := poolContribution.Sub(distributed)
	if !ok {
		return 0, errors.WithMessagef(ErrArithmeticOverflow,
			"pool shares %v exceed contribution %v", distributed, poolContribution)
	}
	return shortfall, nil
}

// splitPool distributes one pool's account between its owner track and
// its stake-proportional delegator track, and returns the stake-track
// dust. The owner track is exact: the rotation owner absorbs the whole
// per-pool owner remainder.
func splitPool(res *Result, pool *stake.PoolSnapshot, ownerPolicy ContributionPolicy, settlementIndex uint64) (chain.Coin, error) {
	account := res.PoolShares[pool.ID]
	if account == 0 {
		return 0, nil
	}

	ownersContribution := ownerPolicy.Contribution(account)
	if ownersContribution > account {
		return 0, errors.WithMessagef(ErrPolicyViolation,
			"owner contribution %v exceeds pool account %v", ownersContribution, account)
	}
	stakeContribution, _ := account.Sub(ownersContribution)

	// A pool without stake folds the stake track into the owner track
	// rather than dividing by zero or dropping value.
	if pool.StakeTotal == 0 {
		ownersContribution = account
		stakeContribution = 0
	}

	var dust chain.Coin
	if stakeContribution > 0 {
		paid, err := distributeStake(res, pool, stakeContribution)
		if err != nil {
			return 0, err
		}
		dust, _ = stakeContribution.Sub(paid)
	}

	if err := distributeOwners(res, pool, ownersContribution, settlementIndex); err != nil {
		return 0, err
	}
	return dust, nil
}

func distributeStake(res *Result, pool *stake.PoolSnapshot, stakeContribution chain.Coin) (chain.Coin, error) {
	// stakeUnit = floor(contribution*10^18 / stakeTotal), kept at scale.
	stakeUnit, _ := arith.DivMod(arith.Upscale(stakeContribution, stakeScale), arith.FromCoin(pool.StakeTotal))

	var paid chain.Coin
	for _, del := range pool.Delegations {
		if del.Stake == 0 {
			continue
		}
		scaled, err := arith.Mul(stakeUnit, arith.FromCoin(del.Stake))
		if err != nil {
			return 0, err
		}
		amount, err := arith.DownscaleToCoin(scaled, stakeScale)
		if err != nil {
			return 0, err
		}
		if amount == 0 {
			continue
		}
		if err := addDelta(res.DelegatorDeltas, del.Delegator, amount); err != nil {
			return 0, err
		}
		var ok bool
		if paid, ok = paid.Add(amount); !ok {
			return 0, errors.WithMessage(ErrArithmeticOverflow, "stake track total")
		}
	}
	return paid, nil
}

func distributeOwners(res *Result, pool *stake.PoolSnapshot, ownersContribution chain.Coin, settlementIndex uint64) error {
	ownerCount := uint64(len(pool.Owners))
	ownerUnit, _ := arith.DivMod(arith.Upscale(ownersContribution, ownerScale), uint256.NewInt(ownerCount))
	share, err := arith.DownscaleToCoin(ownerUnit, ownerScale)
	if err != nil {
		return err
	}

	if share > 0 {
		for _, owner := range pool.Owners {
			if err := addDelta(res.OwnerDeltas, owner, share); err != nil {
				return err
			}
		}
	}

	// The rotation owner absorbs the whole truncation remainder so the
	// owner track sums exactly to the owners' contribution.
	paid := share * chain.Coin(ownerCount)
	remainder, ok := ownersContribution.Sub(paid)
	if !ok {
		return errors.WithMessage(ErrArithmeticOverflow, "owner track total")
	}
	if remainder > 0 {
		rotated := pool.Owners[settlementIndex%ownerCount]
		if err := addDelta(res.OwnerDeltas, rotated, remainder); err != nil {
			return err
		}
	}
	return nil
}

func addDelta(deltas map[chain.Identifier]chain.Coin, id chain.Identifier, amount chain.Coin) error {
	sum, ok := deltas[id].Add(amount)
	if !ok {
		return errors.WithMessagef(ErrArithmeticOverflow, "account %v delta", id)
	}
	deltas[id] = sum
	return nil
}
