// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stake defines the frozen per-epoch stake snapshot consumed by
// reward settlement.
//
// The snapshot is gathered by the surrounding ledger before settlement
// begins and is immutable from the engine's point of view. Iteration
// order over pools and delegations is canonicalized (sorted by
// identifier) so no map or insertion order can leak into remainder
// placement; owner order is the registration order and is preserved,
// since the rotating remainder recipient is defined against it.
package stake

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
)

// maxOwners bounds the owner list of a single pool.
const maxOwners = 255

// Delegation is one delegator's stake in a pool.
type Delegation struct {
	Delegator chain.Identifier
	Stake     chain.Coin
}

// PoolSnapshot is the per-epoch view of one stake pool.
type PoolSnapshot struct {
	ID            chain.Identifier
	BlocksCreated uint32
	StakeTotal    chain.Coin
	Owners        []chain.Identifier
	Delegations   []Delegation
}

// Snapshot is the full settlement input: every pool that existed during
// the epoch, whether or not it created blocks.
type Snapshot struct {
	Pools []PoolSnapshot
}

// PoolID derives the canonical identity of a pool from its registration
// serial and its ordered owner list.
func PoolID(serial uint64, owners []chain.Identifier) chain.Identifier {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], serial)
	data := make([][]byte, 0, len(owners)+1)
	data = append(data, buf[:])
	for i := range owners {
		data = append(data, owners[i].Bytes())
	}
	return chain.Blake2b(data...)
}

// Canonicalize sorts pools by identifier and each pool's delegations by
// delegator identifier, in place.
func (s *Snapshot) Canonicalize() {
	sort.Slice(s.Pools, func(i, j int) bool {
		return s.Pools[i].ID.Compare(s.Pools[j].ID) < 0
	})
	for i := range s.Pools {
		dels := s.Pools[i].Delegations
		sort.Slice(dels, func(a, b int) bool {
			return dels[a].Delegator.Compare(dels[b].Delegator) < 0
		})
	}
}

// TotalBlocks sums the blocks created by all pools during the epoch.
func (s *Snapshot) TotalBlocks() uint64 {
	var total uint64
	for i := range s.Pools {
		total += uint64(s.Pools[i].BlocksCreated)
	}
	return total
}

// Validate checks the snapshot against the upstream contract: unique
// pool, owner and delegator identities, at least one owner per pool,
// and a stake total that matches the delegation list exactly. A failure
// here signals a defect in the snapshot producer, not in the engine.
func (s *Snapshot) Validate() error {
	seenPools := make(map[chain.Identifier]struct{}, len(s.Pools))
	for i := range s.Pools {
		pool := &s.Pools[i]
		if pool.ID.IsZero() {
			return errors.New("stake: pool with zero identifier")
		}
		if _, ok := seenPools[pool.ID]; ok {
			return errors.Errorf("stake: duplicate pool %v", pool.ID)
		}
		seenPools[pool.ID] = struct{}{}

		if len(pool.Owners) == 0 {
			return errors.Errorf("stake: pool %v has no owners", pool.ID)
		}
		if len(pool.Owners) > maxOwners {
			return errors.Errorf("stake: pool %v has more than %d owners", pool.ID, maxOwners)
		}
		seenOwners := make(map[chain.Identifier]struct{}, len(pool.Owners))
		for _, owner := range pool.Owners {
			if owner.IsZero() {
				return errors.Errorf("stake: pool %v has a zero owner", pool.ID)
			}
			if _, ok := seenOwners[owner]; ok {
				return errors.Errorf("stake: pool %v lists owner %v twice", pool.ID, owner)
			}
			seenOwners[owner] = struct{}{}
		}

		var stakeSum chain.Coin
		seenDelegators := make(map[chain.Identifier]struct{}, len(pool.Delegations))
		for _, del := range pool.Delegations {
			if del.Delegator.IsZero() {
				return errors.Errorf("stake: pool %v has a zero delegator", pool.ID)
			}
			if _, ok := seenDelegators[del.Delegator]; ok {
				return errors.Errorf("stake: pool %v lists delegator %v twice", pool.ID, del.Delegator)
			}
			seenDelegators[del.Delegator] = struct{}{}

			var ok bool
			if stakeSum, ok = stakeSum.Add(del.Stake); !ok {
				return errors.Errorf("stake: pool %v stake sum overflows", pool.ID)
			}
		}
		if stakeSum != pool.StakeTotal {
			return errors.Errorf("stake: pool %v stake total %v does not match delegations sum %v",
				pool.ID, pool.StakeTotal, stakeSum)
		}
	}
	return nil
}
