// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package settlementdb keeps the queryable history of epoch
// settlements. It is derived data: the ledger store is authoritative
// and the history can be rebuilt from it, so it lives in its own
// sqlite database off the consensus path.
package settlementdb

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/reward"
)

const settlementTableSchema = `CREATE TABLE IF NOT EXISTS settlement (
	epoch INTEGER PRIMARY KEY,
	settlementIndex INTEGER NOT NULL,
	fees INTEGER NOT NULL,
	deduction INTEGER NOT NULL,
	pot INTEGER NOT NULL,
	treasuryCut INTEGER NOT NULL,
	poolContribution INTEGER NOT NULL,
	leftover INTEGER NOT NULL,
	leftoverRule TEXT NOT NULL,
	settledAt INTEGER NOT NULL
);`

// Record is one settled epoch.
type Record struct {
	Epoch            chain.Epoch
	SettlementIndex  uint64
	Fees             chain.Coin
	Deduction        chain.Coin
	Pot              chain.Coin
	TreasuryCut      chain.Coin
	PoolContribution chain.Coin
	Leftover         chain.Coin
	LeftoverRule     reward.LeftoverRule
	// SettledAt is the wall-clock unix timestamp of the local
	// settlement; it is informational and not consensus data.
	SettledAt int64
}

// SettlementDB is the settlement history database.
type SettlementDB struct {
	path string
	db   *sql.DB
}

// New creates or opens the settlement db at the given path.
func New(path string) (sdb *SettlementDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if sdb == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(settlementTableSchema); err != nil {
		return nil, err
	}
	return &SettlementDB{path, db}, nil
}

// NewMem creates a settlement db in ram.
func NewMem() (*SettlementDB, error) {
	return New(":memory:")
}

// Close closes the settlement db.
func (s *SettlementDB) Close() {
	s.db.Close()
}

// Path returns the db file path.
func (s *SettlementDB) Path() string {
	return s.path
}

// Insert stores one settled epoch. Settling an epoch twice is a ledger
// defect, so a duplicate epoch is an error here too.
func (s *SettlementDB) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlement(epoch, settlementIndex, fees, deduction, pot,
			treasuryCut, poolContribution, leftover, leftoverRule, settledAt)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		uint64(rec.Epoch),
		rec.SettlementIndex,
		int64(rec.Fees),
		int64(rec.Deduction),
		int64(rec.Pot),
		int64(rec.TreasuryCut),
		int64(rec.PoolContribution),
		int64(rec.Leftover),
		rec.LeftoverRule.String(),
		rec.SettledAt,
	)
	return err
}

// Epoch returns the record of the given epoch, or nil if the epoch has
// not been settled.
func (s *SettlementDB) Epoch(ctx context.Context, epoch chain.Epoch) (*Record, error) {
	recs, err := s.query(ctx,
		"SELECT * FROM settlement WHERE epoch = ?", uint64(epoch))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Range returns the records of epochs in [from, to], ascending.
func (s *SettlementDB) Range(ctx context.Context, from, to chain.Epoch) ([]*Record, error) {
	return s.query(ctx,
		"SELECT * FROM settlement WHERE epoch >= ? AND epoch <= ? ORDER BY epoch ASC",
		uint64(from), uint64(to))
}

func (s *SettlementDB) query(ctx context.Context, stmt string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var epoch, index uint64
		var fees, deduction, pot, cut, contribution, leftover int64
		var rule string
		var settledAt int64
		if err := rows.Scan(&epoch, &index, &fees, &deduction, &pot,
			&cut, &contribution, &leftover, &rule, &settledAt); err != nil {
			return nil, err
		}
		leftoverRule, err := parseLeftoverRule(rule)
		if err != nil {
			return nil, err
		}
		recs = append(recs, &Record{
			Epoch:            chain.Epoch(epoch),
			SettlementIndex:  index,
			Fees:             chain.Coin(fees),
			Deduction:        chain.Coin(deduction),
			Pot:              chain.Coin(pot),
			TreasuryCut:      chain.Coin(cut),
			PoolContribution: chain.Coin(contribution),
			Leftover:         chain.Coin(leftover),
			LeftoverRule:     leftoverRule,
			SettledAt:        settledAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseLeftoverRule(s string) (reward.LeftoverRule, error) {
	switch s {
	case reward.LeftoverToTreasury.String():
		return reward.LeftoverToTreasury, nil
	case reward.LeftoverCarryForward.String():
		return reward.LeftoverCarryForward, nil
	default:
		return 0, errors.Errorf("settlementdb: unknown leftover rule %q", s)
	}
}
