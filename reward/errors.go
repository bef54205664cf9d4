// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"github.com/pkg/errors"

	"github.com/sjmackenzie/chain-libs/arith"
)

// The three fatal settlement failure classes. Any of them aborts the
// whole settlement; no balance delta is applied on failure.
var (
	// ErrArithmeticOverflow: a wide multiply/divide/downscale step did
	// not fit its target width. Signals a width-configuration defect.
	ErrArithmeticOverflow = arith.ErrOverflow

	// ErrInconsistentInput: the frozen snapshot contradicts itself,
	// e.g. a stake total not matching its delegation list. Signals an
	// upstream snapshot defect.
	ErrInconsistentInput = errors.New("inconsistent input")

	// ErrPolicyViolation: a contribution policy returned more than its
	// input. Signals a genesis-configuration defect.
	ErrPolicyViolation = errors.New("policy violation")
)

// IsFatal reports whether err belongs to one of the fatal settlement
// classes. Zero total blocks and zero pool stake are not errors at all:
// those are explicitly defined zero-distribution / fold-to-owner
// branches.
func IsFatal(err error) bool {
	return errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, ErrInconsistentInput) ||
		errors.Is(err, ErrPolicyViolation)
}
