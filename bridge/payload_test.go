package bridge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadWireFormat(t *testing.T) {
	require.Equal(t, "borrow|slv1alice|100", string(BorrowPayload("slv1alice", big.NewInt(100))))
	require.Equal(t, "repay|slv1alice", string(RepayPayload("slv1alice")))

	var id [32]byte
	id[31] = 0x2a
	require.Equal(t,
		"liquidate|0x000000000000000000000000000000000000000000000000000000000000002a",
		string(LiquidatePayload(id)))
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	notice, err := DecodePayload(BorrowPayload("slv1alice", big.NewInt(7)))
	require.NoError(t, err)
	require.Equal(t, TagBorrow, notice.Tag)
	require.Equal(t, []string{"slv1alice", "7"}, notice.Fields)

	notice, err = DecodePayload(RepayPayload("slv1bob"))
	require.NoError(t, err)
	require.Equal(t, TagRepay, notice.Tag)
	require.Equal(t, []string{"slv1bob"}, notice.Fields)
}

func TestDecodePayloadRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"borrow",
		"borrow|alice",
		"borrow|alice|1|extra",
		"repay|alice|extra",
		"unknown|field",
	}
	for _, raw := range cases {
		_, err := DecodePayload([]byte(raw))
		require.Error(t, err, "payload %q", raw)
	}
}
