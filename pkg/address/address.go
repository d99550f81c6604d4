package address

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Size is the width of a canonical address in bytes
const Size = 20

// ErrInvalidAddress is returned when a human address cannot be canonicalized
var ErrInvalidAddress = errors.New("invalid address")

// Canonical is the fixed-width binary form of an address. It is the form
// used as a storage key component.
type Canonical [Size]byte

// Parse canonicalizes a human address. Base58 strings decoding to exactly
// Size bytes and 0x-prefixed hex strings are accepted.
func Parse(human string) (Canonical, error) {
	var c Canonical

	human = strings.TrimSpace(human)
	if human == "" {
		return c, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	var raw []byte
	var err error
	if strings.HasPrefix(human, "0x") || strings.HasPrefix(human, "0X") {
		raw, err = hex.DecodeString(human[2:])
	} else {
		raw, err = base58.Decode(human)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, human, err)
	}
	if c, err = FromBytes(raw); err != nil {
		return c, fmt.Errorf("decoding %s: %w", human, err)
	}
	return c, nil
}

// MustParse is like Parse but panics on error
func MustParse(human string) Canonical {
	c, err := Parse(human)
	if err != nil {
		panic(err)
	}
	return c
}

// FromBytes converts a raw key component back into a Canonical address
func FromBytes(b []byte) (Canonical, error) {
	var c Canonical
	if len(b) != Size {
		return c, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidAddress, len(b), Size)
	}
	copy(c[:], b)
	return c, nil
}

// Random returns a new address filled from crypto/rand
func Random() (Canonical, error) {
	var c Canonical
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("failed to generate address: %w", err)
	}
	return c, nil
}

// Bytes returns a copy of the address bytes
func (c Canonical) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, c[:])
	return b
}

// IsZero reports whether c is the all-zero address
func (c Canonical) IsZero() bool {
	return c == Canonical{}
}

// String renders the human (base58) form
func (c Canonical) String() string {
	return base58.Encode(c[:])
}

// Hex renders the 0x-prefixed hex form
func (c Canonical) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// MarshalText implements encoding.TextMarshaler
func (c Canonical) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Canonical) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
