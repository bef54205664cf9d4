// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger persists the settlement state: the escrow and treasury
// balances, per-account reward balances, the fee accumulator and the
// settlement cursor. A settlement commits all of its effects in one
// atomic batch; a failed settlement writes nothing.
package ledger

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/kv"
	"github.com/sjmackenzie/chain-libs/log"
	"github.com/sjmackenzie/chain-libs/metrics"
	"github.com/sjmackenzie/chain-libs/reward"
	"github.com/sjmackenzie/chain-libs/stake"
)

var logger = log.WithContext("pkg", "ledger")

var (
	metricEscrow   = metrics.LazyLoadGauge("ledger_escrow_balance")
	metricTreasury = metrics.LazyLoadGauge("ledger_treasury_balance")
)

var (
	genesisKey  = []byte("genesis")
	escrowKey   = []byte("escrow")
	treasuryKey = []byte("treasury")
	feesKey     = []byte("fees")
	cursorKey   = []byte("cursor")

	accountBucket = kv.Bucket("a/")
)

// cursor is the settlement progress marker.
type cursor struct {
	Epoch chain.Epoch
	Index uint64
}

// Store is the persistent settlement state over a kv store. It is not
// safe for concurrent use; settlement is part of the strictly ordered
// state transition.
type Store struct {
	db     kv.GetPutCloser
	engine *reward.Engine
}

// New opens the settlement state and restores the fee accumulator from
// it. The store must have been initialized first.
func New(db kv.GetPutCloser, params *reward.Params) (*Store, error) {
	has, err := db.Has(genesisKey)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errors.New("ledger: store not initialized")
	}

	engine, err := reward.NewEngine(params)
	if err != nil {
		return nil, err
	}
	fees, err := loadCoin(db, feesKey)
	if err != nil {
		return nil, err
	}
	engine.SeedPot(fees)

	return &Store{db: db, engine: engine}, nil
}

// Initialize seeds a fresh store with the genesis state. Initializing
// twice with the same genesis id is a no-op; a different id is refused.
func Initialize(db kv.GetPutCloser, id chain.Identifier, escrow, treasury chain.Coin, alloc map[chain.Identifier]chain.Coin) error {
	data, err := db.Get(genesisKey)
	if err != nil && !db.IsNotFound(err) {
		return err
	}
	if err == nil {
		existing := chain.BytesToIdentifier(data)
		if existing != id {
			return errors.Errorf("ledger: store initialized with different genesis %v", existing)
		}
		return nil
	}

	batch := db.NewBatch()
	if err := batch.Put(genesisKey, id.Bytes()); err != nil {
		return err
	}
	if err := saveCoin(batch, escrowKey, escrow); err != nil {
		return err
	}
	if err := saveCoin(batch, treasuryKey, treasury); err != nil {
		return err
	}
	accounts := accountBucket.ProxyPutter(batch)
	for account, balance := range alloc {
		if err := saveCoin(accounts, account.Bytes(), balance); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	logger.Info("store initialized", "genesis", id, "escrow", escrow, "treasury", treasury, "accounts", len(alloc))
	return nil
}

// GenesisID returns the genesis id the store was initialized with.
func (s *Store) GenesisID() (chain.Identifier, error) {
	data, err := s.db.Get(genesisKey)
	if err != nil {
		return chain.Identifier{}, err
	}
	return chain.BytesToIdentifier(data), nil
}

// Escrow returns the current escrow balance.
func (s *Store) Escrow() (chain.Coin, error) {
	return loadCoin(s.db, escrowKey)
}

// Treasury returns the current treasury balance.
func (s *Store) Treasury() (chain.Coin, error) {
	return loadCoin(s.db, treasuryKey)
}

// Balance returns an account's accumulated reward balance.
func (s *Store) Balance(account chain.Identifier) (chain.Coin, error) {
	return loadCoin(accountBucket.ProxyGetter(s.db), account.Bytes())
}

// Fees returns the fees accumulated toward the next settlement.
func (s *Store) Fees() chain.Coin {
	return s.engine.Fees()
}

// Cursor returns the last settled epoch and the next settlement index.
// ok is false before the first settlement.
func (s *Store) Cursor() (epoch chain.Epoch, index uint64, ok bool, err error) {
	data, err := s.db.Get(cursorKey)
	if err != nil {
		if s.db.IsNotFound(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	var c cursor
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return 0, 0, false, err
	}
	return c.Epoch, c.Index, true, nil
}

// RecordFee adds one applied block's collected fees, durably.
func (s *Store) RecordFee(amount chain.Coin) error {
	if err := s.engine.RecordFee(amount); err != nil {
		return err
	}
	return saveCoin(s.db, feesKey, s.engine.Fees())
}

// SettleEpoch runs the epoch-boundary settlement against the stored
// state and commits every effect in one batch: balances, account
// deltas, the cursor and the fee reset. On any error nothing is
// written and the fee accumulator is left as it was.
func (s *Store) SettleEpoch(epoch chain.Epoch, totalBlocks uint64, snap *stake.Snapshot) (*reward.Result, error) {
	lastEpoch, index, settled, err := s.Cursor()
	if err != nil {
		return nil, err
	}
	if settled {
		if epoch <= lastEpoch {
			return nil, errors.Errorf("ledger: epoch %v already settled (last %v)", epoch, lastEpoch)
		}
		index++
	}

	escrowBal, err := s.Escrow()
	if err != nil {
		return nil, err
	}
	treasuryBal, err := s.Treasury()
	if err != nil {
		return nil, err
	}

	feesBefore := s.engine.Fees()
	res, err := s.engine.SettleEpoch(escrowBal, treasuryBal, epoch, index, totalBlocks, snap)
	if err != nil {
		return nil, err
	}

	if err := s.commit(epoch, index, res); err != nil {
		// the settlement computed but did not land; undo the pot reset
		s.engine.SeedPot(feesBefore)
		return nil, err
	}

	metricEscrow().Set(int64(res.NewEscrow))
	metricTreasury().Set(int64(res.NewTreasury))
	return res, nil
}

func (s *Store) commit(epoch chain.Epoch, index uint64, res *reward.Result) error {
	batch := s.db.NewBatch()

	if err := saveCoin(batch, escrowKey, res.NewEscrow); err != nil {
		return err
	}
	if err := saveCoin(batch, treasuryKey, res.NewTreasury); err != nil {
		return err
	}
	if err := saveCoin(batch, feesKey, res.CarryForward); err != nil {
		return err
	}

	// An account can earn on both tracks; merge before applying so the
	// read-modify-write sees each account once.
	merged := make(map[chain.Identifier]chain.Coin, len(res.OwnerDeltas)+len(res.DelegatorDeltas))
	for account, delta := range res.OwnerDeltas {
		merged[account] = delta
	}
	for account, delta := range res.DelegatorDeltas {
		sum, ok := merged[account].Add(delta)
		if !ok {
			return errors.WithMessagef(reward.ErrArithmeticOverflow, "account %v delta", account)
		}
		merged[account] = sum
	}

	accounts := accountBucket.ProxyGetPutter(&struct {
		kv.Getter
		kv.Putter
	}{s.db, batch})
	if err := applyDeltas(accounts, merged); err != nil {
		return err
	}

	data, err := rlp.EncodeToBytes(&cursor{Epoch: epoch, Index: index})
	if err != nil {
		return err
	}
	if err := batch.Put(cursorKey, data); err != nil {
		return err
	}
	return batch.Write()
}

func applyDeltas(accounts kv.GetPutter, deltas map[chain.Identifier]chain.Coin) error {
	for account, delta := range deltas {
		balance, err := loadCoin(accounts, account.Bytes())
		if err != nil {
			return err
		}
		sum, ok := balance.Add(delta)
		if !ok {
			return errors.WithMessagef(reward.ErrArithmeticOverflow, "account %v balance", account)
		}
		if err := saveCoin(accounts, account.Bytes(), sum); err != nil {
			return err
		}
	}
	return nil
}

// saveCoin stores an rlp-encoded coin; zero is stored as absence.
func saveCoin(p kv.Putter, key []byte, v chain.Coin) error {
	if v == 0 {
		return p.Delete(key)
	}
	data, err := rlp.EncodeToBytes(uint64(v))
	if err != nil {
		return err
	}
	return p.Put(key, data)
}

func loadCoin(g kv.Getter, key []byte) (chain.Coin, error) {
	data, err := g.Get(key)
	if err != nil {
		if g.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	var v uint64
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return 0, err
	}
	return chain.Coin(v), nil
}
