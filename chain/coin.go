// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Coin is an amount of currency counted in the smallest indivisible unit.
//
// Coin arithmetic never wraps silently. Add and Sub report whether the
// operation stayed within range, and it is up to the caller to decide
// whether a failure is fatal.
type Coin uint64

var (
	_ json.Marshaler   = (*Coin)(nil)
	_ json.Unmarshaler = (*Coin)(nil)
)

// Add returns c + other and whether the sum fit without wrapping.
func (c Coin) Add(other Coin) (Coin, bool) {
	sum := c + other
	return sum, sum >= c
}

// Sub returns c - other and whether the difference is non-negative.
func (c Coin) Sub(other Coin) (Coin, bool) {
	if other > c {
		return 0, false
	}
	return c - other, true
}

// String implements stringer.
func (c Coin) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// MarshalJSON implements json.Marshaler. Amounts are emitted as decimal
// strings so that JSON consumers never round them through float64.
func (c *Coin) MarshalJSON() ([]byte, error) {
	if c == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler. Both bare numbers and
// decimal strings are accepted.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var n uint64
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.WithMessage(err, "invalid coin amount")
		}
		*c = Coin(n)
		return nil
	}
	n, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return errors.WithMessage(err, "invalid coin amount")
	}
	*c = Coin(n)
	return nil
}

// SumCoins sums the given amounts, reporting whether the total fit.
func SumCoins(amounts ...Coin) (Coin, bool) {
	var total Coin
	for _, a := range amounts {
		var ok bool
		if total, ok = total.Add(a); !ok {
			return 0, false
		}
	}
	return total, true
}
