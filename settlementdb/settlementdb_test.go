// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlementdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/reward"
	"github.com/sjmackenzie/chain-libs/settlementdb"
)

func newRecord(epoch chain.Epoch) *settlementdb.Record {
	return &settlementdb.Record{
		Epoch:            epoch,
		SettlementIndex:  uint64(epoch) - 1,
		Fees:             100,
		Deduction:        1000,
		Pot:              1100,
		TreasuryCut:      110,
		PoolContribution: 990,
		Leftover:         1,
		LeftoverRule:     reward.LeftoverCarryForward,
		SettledAt:        time.Unix(1700000000, 0).Unix(),
	}
}

func TestSettlementDB(t *testing.T) {
	db, err := settlementdb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	got, err := db.Epoch(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "unsettled epoch has no record")

	want := newRecord(1)
	require.NoError(t, db.Insert(ctx, want))

	got, err = db.Epoch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// an epoch settles exactly once
	assert.Error(t, db.Insert(ctx, newRecord(1)))
}

func TestSettlementDBRange(t *testing.T) {
	db, err := settlementdb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, epoch := range []chain.Epoch{3, 1, 2, 5} {
		require.NoError(t, db.Insert(ctx, newRecord(epoch)))
	}

	recs, err := db.Range(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, chain.Epoch(2), recs[0].Epoch)
	assert.Equal(t, chain.Epoch(3), recs[1].Epoch)

	recs, err = db.Range(ctx, 10, 20)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
