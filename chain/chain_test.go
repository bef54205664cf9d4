// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoinArith(t *testing.T) {
	tests := []struct {
		ret      interface{}
		expected interface{}
	}{
		{func() interface{} { v, ok := Coin(1).Add(2); return []interface{}{v, ok} }(), []interface{}{Coin(3), true}},
		{func() interface{} { v, ok := Coin(math.MaxUint64).Add(1); return []interface{}{v, ok} }(), []interface{}{Coin(0), false}},
		{func() interface{} { v, ok := Coin(3).Sub(2); return []interface{}{v, ok} }(), []interface{}{Coin(1), true}},
		{func() interface{} { v, ok := Coin(2).Sub(3); return []interface{}{v, ok} }(), []interface{}{Coin(0), false}},
		{func() interface{} { v, ok := SumCoins(1, 2, 3); return []interface{}{v, ok} }(), []interface{}{Coin(6), true}},
		{func() interface{} { v, ok := SumCoins(math.MaxUint64, 1); return []interface{}{v, ok} }(), []interface{}{Coin(0), false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}
}

func TestCoinJSON(t *testing.T) {
	c := Coin(18446744073709551615)
	data, err := json.Marshal(&c)
	assert.Nil(t, err)
	assert.Equal(t, `"18446744073709551615"`, string(data))

	var decoded Coin
	assert.Nil(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)

	// bare numbers accepted too
	assert.Nil(t, json.Unmarshal([]byte(`42`), &decoded))
	assert.Equal(t, Coin(42), decoded)
}

func TestIdentifier(t *testing.T) {
	id := Blake2b([]byte("pool"), []byte("one"))
	assert.False(t, id.IsZero())
	assert.Equal(t, id, Blake2b([]byte("pool"), []byte("one")))
	assert.NotEqual(t, id, Blake2b([]byte("pool"), []byte("two")))

	parsed, err := ParseIdentifier(id.String())
	assert.Nil(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseIdentifier("0x1234")
	assert.Error(t, err)

	data, err := json.Marshal(&id)
	assert.Nil(t, err)
	var decoded Identifier
	assert.Nil(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	assert.Equal(t, 0, id.Compare(id))
	assert.Equal(t, BytesToIdentifier([]byte{1}).Compare(BytesToIdentifier([]byte{2})), -1)
}
