// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "path to the genesis file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the settlement databases",
	}
	snapshotFlag = cli.StringFlag{
		Name:  "snapshot",
		Usage: "path to the epoch stake snapshot (yaml)",
	}
	settlementsDBFlag = cli.StringFlag{
		Name:  "settlements-db",
		Usage: "path to the settlement history database; history is kept when set",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "prometheus metrics listening address; metrics are disabled when empty",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5: crit, error, warn, info, debug, trace)",
	}
)
