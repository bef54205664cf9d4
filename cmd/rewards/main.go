// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/sjmackenzie/chain-libs/ledger"
	"github.com/sjmackenzie/chain-libs/log"
	"github.com/sjmackenzie/chain-libs/metrics"
	"github.com/sjmackenzie/chain-libs/settlementdb"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

var logger = log.WithContext("pkg", "main")

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "rewards",
		Usage:     "epoch reward settlement for stake-based ledgers",
		Copyright: "2019 chain-libs developers",
		Commands: []cli.Command{
			{
				Name:  "init",
				Usage: "initialize a settlement store from a genesis file",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					verbosityFlag,
				},
				Action: initAction,
			},
			{
				Name:  "settle",
				Usage: "settle one epoch against a stake snapshot",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					snapshotFlag,
					settlementsDBFlag,
					metricsAddrFlag,
					verbosityFlag,
				},
				Action: settleAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initAction(ctx *cli.Context) error {
	initLogger(ctx)

	gen, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	db, err := openLedgerDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ledger.Initialize(db, gen.ID(), gen.Escrow, gen.Treasury, gen.Alloc()); err != nil {
		return err
	}
	fmt.Printf("initialized %q (genesis %v)\n", gen.Name, gen.ID().AbbrevString())
	return nil
}

func settleAction(ctx *cli.Context) error {
	initLogger(ctx)

	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		metrics.InitializePrometheusMetrics()
		go func() {
			if err := http.ListenAndServe(addr, metrics.HTTPHandler()); err != nil {
				logger.Warn("metrics server stopped", "err", err)
			}
		}()
		logger.Info("metrics served", "addr", addr)
	}

	gen, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	params, err := gen.RewardParams()
	if err != nil {
		return err
	}

	db, err := openLedgerDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := ledger.New(db, params)
	if err != nil {
		return err
	}

	epoch, fees, totalBlocks, snap, err := loadSnapshot(ctx.String(snapshotFlag.Name))
	if err != nil {
		return err
	}
	if fees > 0 {
		if err := store.RecordFee(fees); err != nil {
			return err
		}
	}

	res, err := store.SettleEpoch(epoch, totalBlocks, snap)
	if err != nil {
		return err
	}

	if path := ctx.String(settlementsDBFlag.Name); path != "" {
		sdb, err := settlementdb.New(path)
		if err != nil {
			return err
		}
		defer sdb.Close()

		_, index, _, err := store.Cursor()
		if err != nil {
			return err
		}
		if err := sdb.Insert(context.Background(), &settlementdb.Record{
			Epoch:            epoch,
			SettlementIndex:  index,
			Fees:             fees,
			Deduction:        res.Deduction,
			Pot:              res.Pot,
			TreasuryCut:      res.TreasuryCut,
			PoolContribution: res.PoolContribution,
			Leftover:         res.Leftover,
			LeftoverRule:     params.Leftover,
			SettledAt:        time.Now().Unix(),
		}); err != nil {
			return err
		}
	}

	fmt.Printf("epoch %v settled: pot=%v treasury+%v pools=%v leftover=%v (%v)\n",
		epoch, res.Pot, res.TreasuryCut, res.PoolContribution, res.Leftover, params.Leftover)
	return nil
}
