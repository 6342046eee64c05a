package events

import (
	"math/big"
	"testing"
)

func TestLoanBorrowedEvent(t *testing.T) {
	evt := LoanBorrowed{Owner: "slv1alice", Amount: big.NewInt(100), Sequence: 7}.Event()
	if evt.Type != TypeLoanBorrowed {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attributes["owner"] != "slv1alice" {
		t.Fatalf("unexpected owner %q", evt.Attributes["owner"])
	}
	if evt.Attributes["amount"] != "100" {
		t.Fatalf("unexpected amount %q", evt.Attributes["amount"])
	}
	if evt.Attributes["sequence"] != "7" {
		t.Fatalf("unexpected sequence %q", evt.Attributes["sequence"])
	}
}

func TestLoanBorrowedOmitsNilAmount(t *testing.T) {
	evt := LoanBorrowed{Owner: "slv1alice"}.Event()
	if _, ok := evt.Attributes["amount"]; ok {
		t.Fatalf("expected amount attribute to be omitted")
	}
}

func TestLoanLiquidatedCarriesVaultID(t *testing.T) {
	var id [32]byte
	id[0] = 0xAB
	evt := LoanLiquidated{VaultID: id, Owner: "slv1bob", Sequence: 3}.Event()
	if evt.Type != TypeLoanLiquidated {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	want := "0xab00000000000000000000000000000000000000000000000000000000000000"
	if evt.Attributes["vaultId"] != want {
		t.Fatalf("unexpected vaultId %q", evt.Attributes["vaultId"])
	}
}
