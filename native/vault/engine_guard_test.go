package vault

import (
	"errors"
	"math/big"
	"testing"

	"soliver/bridge"
)

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func TestGuardBlocksMutation(t *testing.T) {
	alice := makeAddress(0xAA)
	liquidator := makeAddress(0xAB)

	state := newMockEngineState()
	state.vaults[state.key(alice)] = &Vault{Owner: alice, LoanAmount: big.NewInt(30), Active: true}

	recorder := bridge.NewRecorder()
	engine := newTestEngine(state, recorder)
	engine.SetLiquidator(liquidator)
	engine.SetPauses(stubPauseView{modules: map[string]bool{"vault": true}})

	if _, err := engine.Borrow(alice, big.NewInt(100)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on borrow, got %v", err)
	}
	if _, err := engine.Repay(alice, big.NewInt(10)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on repay, got %v", err)
	}
	if _, err := engine.Liquidate(liquidator, alice); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused on liquidate, got %v", err)
	}

	stored := state.vaults[state.key(alice)]
	if stored.LoanAmount.Cmp(big.NewInt(30)) != 0 || !stored.Active {
		t.Fatalf("expected vault untouched, got amount=%s active=%v", stored.LoanAmount, stored.Active)
	}
	if len(recorder.Messages()) != 0 {
		t.Fatalf("expected no notices while paused")
	}
}
