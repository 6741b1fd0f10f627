// Package domain holds the identifier primitives shared across modules.
//
// Identifiers are parsed once at trust boundaries (HTTP, CLI, registry import)
// and passed around as typed values afterwards. Direct conversion from string
// bypasses validation and is reserved for tests and trusted storage reads.
package domain

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	dErrors "secutoken/pkg/domain-errors"
)

const (
	addressHexLen    = 40
	maxInvestorIDLen = 128
)

// Address identifies a wallet. Stored lower-cased with a 0x prefix.
type Address string

// ZeroAddress is the empty address; it never holds a balance.
const ZeroAddress Address = ""

// ParseAddress validates a 20-byte hex wallet address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	raw, ok := strings.CutPrefix(strings.ToLower(s), "0x")
	if !ok {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	if len(raw) != addressHexLen {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes")
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "address must be hex encoded")
	}
	if raw == strings.Repeat("0", addressHexLen) {
		return ZeroAddress, dErrors.New(dErrors.CodeInvalidInput, "zero address is not allowed")
	}
	return Address("0x" + raw), nil
}

func (a Address) String() string { return string(a) }

// IsNil reports whether the address is empty.
func (a Address) IsNil() bool { return a == ZeroAddress }

// InvestorID is the registry's opaque, stable investor identifier.
type InvestorID string

// ParseInvestorID validates an investor identifier from external input.
func ParseInvestorID(s string) (InvestorID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "investor id is required")
	}
	if len(s) > maxInvestorIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "investor id too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "investor id must be valid UTF-8")
	}
	for _, r := range s {
		if r < 0x21 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "investor id contains control or space characters")
		}
	}
	return InvestorID(s), nil
}

func (id InvestorID) String() string { return string(id) }

// IsNil reports whether the identifier is empty.
func (id InvestorID) IsNil() bool { return id == "" }
