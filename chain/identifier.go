// Copyright (c) 2019 The chain-libs developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Identifier is the 32-byte identity of an on-chain entity: a stake
// pool, a pool owner or a delegator account.
type Identifier [32]byte

var (
	_ json.Marshaler   = (*Identifier)(nil)
	_ json.Unmarshaler = (*Identifier)(nil)
)

// Blake2b computes the blake2b-256 checksum of the concatenation of the
// given slices.
func Blake2b(data ...[]byte) Identifier {
	hash, err := blake2b.New256(nil)
	if err != nil {
		// New256 without a key never fails.
		panic(err)
	}
	for _, d := range data {
		hash.Write(d)
	}
	var id Identifier
	hash.Sum(id[:0])
	return id
}

// BytesToIdentifier converts a byte slice to an Identifier, truncating
// or left-padding with zeros as needed.
func BytesToIdentifier(b []byte) Identifier {
	var id Identifier
	if len(b) > len(id) {
		b = b[len(b)-len(id):]
	}
	copy(id[len(id)-len(b):], b)
	return id
}

// ParseIdentifier converts a hex string, with optional 0x prefix, to an
// Identifier.
func ParseIdentifier(s string) (Identifier, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	var id Identifier
	if len(s) != len(id)*2 {
		return Identifier{}, errors.New("identifier: invalid length")
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return Identifier{}, errors.WithMessage(err, "identifier")
	}
	return id, nil
}

// MustParseIdentifier is like ParseIdentifier but panics on error.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String implements stringer.
func (id Identifier) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// AbbrevString returns abbrev string presentation.
func (id Identifier) AbbrevString() string {
	return fmt.Sprintf("0x%x…%x", id[:4], id[28:])
}

// Bytes returns the byte slice form of the identifier.
func (id Identifier) Bytes() []byte {
	return id[:]
}

// IsZero returns if the identifier has all zero bytes.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Compare orders identifiers by their byte representation.
func (id Identifier) Compare(other Identifier) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalJSON implements json.Marshaler.
func (id *Identifier) MarshalJSON() ([]byte, error) {
	if id == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(str)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentifier(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalYAML emits the hex string form.
func (id Identifier) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

// UnmarshalYAML parses the hex string form.
func (id *Identifier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(str)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
