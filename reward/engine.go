// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/escrow"
	"github.com/sjmackenzie/chain-libs/log"
	"github.com/sjmackenzie/chain-libs/metrics"
	"github.com/sjmackenzie/chain-libs/stake"
)

var logger = log.WithContext("pkg", "reward")

var (
	metricSettlements  = metrics.LazyLoadCounter("reward_settlements_count")
	metricFatal        = metrics.LazyLoadCounterVec("reward_settlement_failures_count", []string{"class"})
	metricLeftover     = metrics.LazyLoadCounter("reward_leftover_total")
	metricDistribution = metrics.LazyLoadGaugeVec("reward_last_settlement", []string{"track"})
)

// State of the engine across an epoch.
type State byte

const (
	// Accumulating: fees are being recorded block by block.
	Accumulating State = iota
	// Settling: the epoch-boundary settlement is executing.
	Settling
)

// String implements stringer.
func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// Engine drives the accumulating/settling cycle for the ledger. It owns
// the epoch fee pot and the decay calculator; balances stay with the
// caller. The engine is not safe for concurrent use: settlement is part
// of the strictly ordered ledger state transition.
type Engine struct {
	params *Params
	calc   *escrow.Calculator
	pot    *FeePot
	state  State
}

// NewEngine creates an engine with an empty fee pot.
func NewEngine(params *Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	calc, err := escrow.NewCalculator(params.Decay)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params: params,
		calc:   calc,
		pot:    NewFeePot(0),
	}, nil
}

// Params returns the settlement parameters.
func (e *Engine) Params() *Params {
	return e.params
}

// State returns the current engine state.
func (e *Engine) State() State {
	return e.state
}

// Fees returns the fees accumulated so far in the current epoch.
func (e *Engine) Fees() chain.Coin {
	return e.pot.Amount()
}

// SeedPot primes the fee pot, used when restoring a carried-forward
// leftover from persistent state.
func (e *Engine) SeedPot(amount chain.Coin) {
	e.pot.Seed(amount)
}

// RecordFee adds one applied block's collected fees to the epoch pot.
func (e *Engine) RecordFee(amount chain.Coin) error {
	if e.state != Accumulating {
		return errors.Errorf("reward: cannot record fees while %v", e.state)
	}
	return e.pot.RecordFee(amount)
}

// SettleEpoch runs the epoch-boundary settlement against the given
// balances and snapshot. On success the fee pot is reset (seeded with
// any carry-forward); on failure the pot and all inputs are left
// untouched, so a halted settlement applies no partial state.
func (e *Engine) SettleEpoch(
	escrowBal, treasuryBal chain.Coin,
	epoch chain.Epoch,
	settlementIndex uint64,
	totalBlocks uint64,
	snap *stake.Snapshot,
) (*Result, error) {
	if e.state != Accumulating {
		return nil, errors.Errorf("reward: cannot settle while %v", e.state)
	}
	e.state = Settling
	defer func() { e.state = Accumulating }()

	res, err := settle(e.params, e.calc, &Input{
		Escrow:          escrowBal,
		Treasury:        treasuryBal,
		Fees:            e.pot.Amount(),
		Epoch:           epoch,
		SettlementIndex: settlementIndex,
		TotalBlocks:     totalBlocks,
		Snapshot:        snap,
	})
	if err != nil {
		metricFatal().AddWithLabel(1, map[string]string{"class": failureClass(err)})
		logger.Error("settlement failed", "epoch", epoch, "err", err)
		return nil, err
	}

	e.pot.Seed(res.CarryForward)

	metricSettlements().Add(1)
	metricLeftover().Add(int64(res.Leftover))
	metricDistribution().SetWithLabel(int64(res.TreasuryCut), map[string]string{"track": "treasury"})
	metricDistribution().SetWithLabel(int64(res.PoolContribution), map[string]string{"track": "pools"})
	logger.Info("epoch settled",
		"epoch", epoch,
		"pot", res.Pot,
		"deduction", res.Deduction,
		"treasury", res.TreasuryCut,
		"pools", res.PoolContribution,
		"leftover", res.Leftover,
		"rule", e.params.Leftover)
	return res, nil
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic-overflow"
	case errors.Is(err, ErrInconsistentInput):
		return "inconsistent-input"
	case errors.Is(err, ErrPolicyViolation):
		return "policy-violation"
	default:
		return "other"
	}
}
