package bridge

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Notice payloads use a versionless delimited text format that downstream
// consumers parse by tag and position. The tag strings and field order are
// frozen; changing either breaks every deployed observer.
const (
	TagBorrow    = "borrow"
	TagRepay     = "repay"
	TagLiquidate = "liquidate"

	payloadSeparator = "|"
)

// BorrowPayload encodes a borrow notice: "borrow|<owner>|<amount>".
func BorrowPayload(owner string, amount *big.Int) []byte {
	value := "0"
	if amount != nil {
		value = amount.String()
	}
	return []byte(TagBorrow + payloadSeparator + owner + payloadSeparator + value)
}

// RepayPayload encodes a full-settlement notice: "repay|<owner>".
func RepayPayload(owner string) []byte {
	return []byte(TagRepay + payloadSeparator + owner)
}

// LiquidatePayload encodes a forced-closure notice: "liquidate|<vault_id>".
// The vault identifier, not the owner address, is carried on the wire.
func LiquidatePayload(vaultID [32]byte) []byte {
	return []byte(TagLiquidate + payloadSeparator + "0x" + hex.EncodeToString(vaultID[:]))
}

// Notice is the decoded form of a payload, used by relayer tooling and tests.
type Notice struct {
	Tag    string
	Fields []string
}

// DecodePayload splits a raw payload into its tag and positional fields.
func DecodePayload(payload []byte) (Notice, error) {
	parts := strings.Split(string(payload), payloadSeparator)
	if len(parts) < 2 {
		return Notice{}, fmt.Errorf("bridge: malformed payload %q", payload)
	}
	switch parts[0] {
	case TagBorrow:
		if len(parts) != 3 {
			return Notice{}, fmt.Errorf("bridge: borrow payload expects 2 fields, got %d", len(parts)-1)
		}
	case TagRepay, TagLiquidate:
		if len(parts) != 2 {
			return Notice{}, fmt.Errorf("bridge: %s payload expects 1 field, got %d", parts[0], len(parts)-1)
		}
	default:
		return Notice{}, fmt.Errorf("bridge: unknown payload tag %q", parts[0])
	}
	return Notice{Tag: parts[0], Fields: parts[1:]}, nil
}
