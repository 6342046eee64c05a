package events

import (
	"encoding/hex"
	"math/big"

	"soliver/core/types"
)

const (
	// TypeLoanBorrowed is emitted every time a borrow call completes,
	// whether the vault was freshly created or reopened.
	TypeLoanBorrowed = "vault.loan_borrowed"
	// TypeLoanRepaid is emitted only when a repayment settles the loan in
	// full. Partial repayments stay silent so cross-chain observers only see
	// terminal transitions.
	TypeLoanRepaid = "vault.loan_repaid"
	// TypeLoanLiquidated is emitted when the liquidator authority force-closes
	// an active loan.
	TypeLoanLiquidated = "vault.loan_liquidated"
)

// LoanBorrowed describes a vault entering (or re-entering) the active state.
type LoanBorrowed struct {
	Owner    string
	Amount   *big.Int
	Sequence uint64
}

// EventType satisfies the events.Event interface.
func (LoanBorrowed) EventType() string { return TypeLoanBorrowed }

// Event converts the structured payload into a wire-friendly representation
// for RPC subscribers.
func (e LoanBorrowed) Event() *types.Event {
	attrs := map[string]string{
		"owner":    e.Owner,
		"sequence": formatSequence(e.Sequence),
	}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return &types.Event{Type: TypeLoanBorrowed, Attributes: attrs}
}

// LoanRepaid describes a loan that was settled in full.
type LoanRepaid struct {
	Owner    string
	Sequence uint64
}

// EventType satisfies the events.Event interface.
func (LoanRepaid) EventType() string { return TypeLoanRepaid }

// Event converts the structured payload into a wire-friendly representation
// for RPC subscribers.
func (e LoanRepaid) Event() *types.Event {
	return &types.Event{Type: TypeLoanRepaid, Attributes: map[string]string{
		"owner":    e.Owner,
		"sequence": formatSequence(e.Sequence),
	}}
}

// LoanLiquidated describes a forced closure of an active loan. The vault
// identifier rather than the owner address is carried to match the outbound
// notice payload.
type LoanLiquidated struct {
	VaultID  [32]byte
	Owner    string
	Sequence uint64
}

// EventType satisfies the events.Event interface.
func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

// Event converts the structured payload into a wire-friendly representation
// for RPC subscribers.
func (e LoanLiquidated) Event() *types.Event {
	return &types.Event{Type: TypeLoanLiquidated, Attributes: map[string]string{
		"vaultId":  "0x" + hex.EncodeToString(e.VaultID[:]),
		"owner":    e.Owner,
		"sequence": formatSequence(e.Sequence),
	}}
}

func formatSequence(seq uint64) string {
	return new(big.Int).SetUint64(seq).String()
}
