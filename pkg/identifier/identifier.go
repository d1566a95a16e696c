// Package identifier provides the participant address value type used
// throughout the access point.
//
// A participant address is a scheme-qualified identifier of a network
// member, serialized as "<scheme>:<identifier>" (e.g. "0208:0123456789"
// for a Belgian enterprise number). The scheme is an ISO 6523 ICD code.
package identifier

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned when an address string cannot be parsed.
var ErrInvalidAddress = errors.New("invalid participant address format")

// Address identifies a participant on the network. It is an immutable
// value type; equality is case-sensitive exact match on both fields.
type Address struct {
	// Scheme is the ISO 6523 ICD code (e.g. "0208", "0088")
	Scheme string
	// Value is the party-specific identifier within the scheme
	Value string
}

// Parse parses a "<scheme>:<identifier>" string into an Address.
func Parse(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{Scheme: parts[0], Value: parts[1]}, nil
}

// MustParse is like Parse but panics on error. Intended for constants
// and tests.
func MustParse(s string) Address {
	addr, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the canonical "<scheme>:<identifier>" form.
func (a Address) String() string {
	return a.Scheme + ":" + a.Value
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a.Scheme == "" && a.Value == ""
}

// Equal reports whether two addresses are exactly equal.
// Comparison is case-sensitive.
func (a Address) Equal(b Address) bool {
	return a.Scheme == b.Scheme && a.Value == b.Value
}

// MarshalText implements encoding.TextMarshaler so the address
// round-trips through JSON and BSON as its canonical string form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// HashQueryName builds the DNS name consulted during publisher discovery:
// the BASE32-encoded SHA-256 hash of the canonical address (padding
// stripped) prefixed to the network zone.
//
// Example: HashQueryName(addr, "edelivery.tech.ec.europa.eu") returns
// "<HASH>.iso6523-actorid-upis.edelivery.tech.ec.europa.eu".
func HashQueryName(a Address, zone string) string {
	hash := sha256.Sum256([]byte(a.String()))
	encoded := base32.StdEncoding.EncodeToString(hash[:])
	encoded = strings.TrimRight(encoded, "=")
	return fmt.Sprintf("%s.%s.%s", encoded, "iso6523-actorid-upis", zone)
}
