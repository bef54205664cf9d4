// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis defines the user-supplied configuration a settlement
// ledger starts from: the decay curve, the contribution policies, the
// leftover rule and the initial balances.
package genesis

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/chain"
	"github.com/sjmackenzie/chain-libs/escrow"
	"github.com/sjmackenzie/chain-libs/reward"
)

// Genesis is the user customized genesis.
type Genesis struct {
	Name           string     `json:"name"`
	Decay          Decay      `json:"decay"`
	TreasuryPolicy Policy     `json:"treasuryPolicy"`
	OwnerPolicy    Policy     `json:"ownerPolicy"`
	LeftoverRule   string     `json:"leftoverRule"`
	Escrow         chain.Coin `json:"escrow"`
	Treasury       chain.Coin `json:"treasury"`
	Accounts       []Account  `json:"accounts"`
}

// Decay is the escrow decay curve configuration.
type Decay struct {
	Kind      string     `json:"kind"`
	Initial   chain.Coin `json:"initial"`
	Ratio     Ratio      `json:"ratio"`
	EpochRate uint32     `json:"epochRate"`
}

// Ratio is an exact rational in (0, 1].
type Ratio struct {
	Num uint64 `json:"num"`
	Den uint64 `json:"den"`
}

// Policy is a capped-percentage contribution policy.
type Policy struct {
	Ratio
	// Cap bounds the contribution when non-zero.
	Cap chain.Coin `json:"cap,omitempty"`
}

// Account is one initial reward-balance allocation.
type Account struct {
	ID      chain.Identifier `json:"id"`
	Balance chain.Coin       `json:"balance"`
}

// Load reads and validates a genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis file")
	}
	var gen Genesis
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, errors.Wrap(err, "parse genesis file")
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return &gen, nil
}

// Validate checks the configuration as a whole. Everything a settlement
// would reject later is rejected here, so a node fails at startup
// rather than at its first epoch boundary.
func (g *Genesis) Validate() error {
	if _, err := g.decayParams(); err != nil {
		return err
	}
	if _, err := g.leftoverRule(); err != nil {
		return err
	}
	if err := g.TreasuryPolicy.toReward().Validate(); err != nil {
		return errors.WithMessage(err, "genesis: treasury policy")
	}
	if err := g.OwnerPolicy.toReward().Validate(); err != nil {
		return errors.WithMessage(err, "genesis: owner policy")
	}

	seen := make(map[chain.Identifier]struct{}, len(g.Accounts))
	for _, account := range g.Accounts {
		if account.ID.IsZero() {
			return errors.New("genesis: account with zero identifier")
		}
		if _, ok := seen[account.ID]; ok {
			return errors.Errorf("genesis: duplicate account %v", account.ID)
		}
		seen[account.ID] = struct{}{}
	}
	return nil
}

// ID derives the genesis identity from its canonical encoding. Two
// stores initialized from byte-different files with identical content
// agree on the id.
func (g *Genesis) ID() chain.Identifier {
	data, err := json.Marshal(g)
	if err != nil {
		// the struct is plain data, marshaling cannot fail
		panic(err)
	}
	return chain.Blake2b(data)
}

// RewardParams converts the genesis into settlement parameters.
func (g *Genesis) RewardParams() (*reward.Params, error) {
	decay, err := g.decayParams()
	if err != nil {
		return nil, err
	}
	rule, err := g.leftoverRule()
	if err != nil {
		return nil, err
	}
	params := &reward.Params{
		Decay:          decay,
		TreasuryPolicy: g.TreasuryPolicy.toReward(),
		OwnerPolicy:    g.OwnerPolicy.toReward(),
		Leftover:       rule,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Alloc returns the initial account balances.
func (g *Genesis) Alloc() map[chain.Identifier]chain.Coin {
	alloc := make(map[chain.Identifier]chain.Coin, len(g.Accounts))
	for _, account := range g.Accounts {
		alloc[account.ID] = account.Balance
	}
	return alloc
}

func (g *Genesis) decayParams() (escrow.Params, error) {
	var kind escrow.Kind
	switch g.Decay.Kind {
	case escrow.Linear.String():
		kind = escrow.Linear
	case escrow.Halving.String():
		kind = escrow.Halving
	default:
		return escrow.Params{}, errors.Errorf("genesis: unknown decay kind %q", g.Decay.Kind)
	}
	params := escrow.Params{
		Kind:      kind,
		Initial:   g.Decay.Initial,
		RatioNum:  g.Decay.Ratio.Num,
		RatioDen:  g.Decay.Ratio.Den,
		EpochRate: g.Decay.EpochRate,
	}
	if err := params.Validate(); err != nil {
		return escrow.Params{}, err
	}
	return params, nil
}

func (g *Genesis) leftoverRule() (reward.LeftoverRule, error) {
	switch g.LeftoverRule {
	case reward.LeftoverToTreasury.String():
		return reward.LeftoverToTreasury, nil
	case reward.LeftoverCarryForward.String():
		return reward.LeftoverCarryForward, nil
	default:
		return 0, errors.Errorf("genesis: unknown leftover rule %q", g.LeftoverRule)
	}
}

func (p *Policy) toReward() *reward.RatioPolicy {
	return &reward.RatioPolicy{Num: p.Num, Den: p.Den, Cap: p.Cap}
}
