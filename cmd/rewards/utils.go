// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/genesis"
	"github.com/sjmackenzie/chain-libs/log"
	"github.com/sjmackenzie/chain-libs/lvldb"
	"github.com/sjmackenzie/chain-libs/stake"
)

func initLogger(ctx *cli.Context) {
	level := log.FromVerbosity(ctx.Int(verbosityFlag.Name))
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, level, useColor)))
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".chain-libs-rewards")
	}
	return ""
}

func loadGenesis(ctx *cli.Context) (*genesis.Genesis, error) {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return nil, errors.New("genesis file must be set (--genesis)")
	}
	return genesis.Load(path)
}

func openLedgerDB(ctx *cli.Context) (*lvldb.LevelDB, error) {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		return nil, errors.New("data dir must be set (--data-dir)")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return lvldb.New(filepath.Join(dir, "ledger.db"), lvldb.Options{})
}

// epochSnapshot is the yaml layout of one epoch's stake snapshot.
type epochSnapshot struct {
	Epoch chain.Epoch `yaml:"epoch"`
	// Fees collected during the epoch, recorded before settling.
	Fees chain.Coin `yaml:"fees"`
	// TotalBlocks cross-checks the per-pool counts when non-zero.
	TotalBlocks uint64         `yaml:"totalBlocks"`
	Pools       []poolSnapshot `yaml:"pools"`
}

type poolSnapshot struct {
	ID            chain.Identifier   `yaml:"id"`
	BlocksCreated uint32             `yaml:"blocksCreated"`
	StakeTotal    chain.Coin         `yaml:"stakeTotal"`
	Owners        []chain.Identifier `yaml:"owners"`
	Delegations   []delegation       `yaml:"delegations"`
}

type delegation struct {
	Delegator chain.Identifier `yaml:"delegator"`
	Stake     chain.Coin       `yaml:"stake"`
}

func loadSnapshot(path string) (chain.Epoch, chain.Coin, uint64, *stake.Snapshot, error) {
	if path == "" {
		return 0, 0, 0, nil, errors.New("snapshot file must be set (--snapshot)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "read snapshot file")
	}
	var es epochSnapshot
	if err := yaml.Unmarshal(data, &es); err != nil {
		return 0, 0, 0, nil, errors.Wrap(err, "parse snapshot file")
	}

	snap := &stake.Snapshot{Pools: make([]stake.PoolSnapshot, 0, len(es.Pools))}
	for _, pool := range es.Pools {
		p := stake.PoolSnapshot{
			ID:            pool.ID,
			BlocksCreated: pool.BlocksCreated,
			StakeTotal:    pool.StakeTotal,
			Owners:        pool.Owners,
		}
		for _, del := range pool.Delegations {
			p.Delegations = append(p.Delegations, stake.Delegation{
				Delegator: del.Delegator,
				Stake:     del.Stake,
			})
		}
		snap.Pools = append(snap.Pools, p)
	}

	totalBlocks := es.TotalBlocks
	if totalBlocks == 0 {
		totalBlocks = snap.TotalBlocks()
	}
	return es.Epoch, es.Fees, totalBlocks, snap, nil
}
