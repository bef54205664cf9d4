// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import "strconv"

// Epoch is the index of a fixed window of block production after which
// rewards settle.
type Epoch uint32

// Next returns the following epoch.
func (e Epoch) Next() Epoch {
	return e + 1
}

// String implements stringer.
func (e Epoch) String() string {
	return strconv.FormatUint(uint64(e), 10)
}
