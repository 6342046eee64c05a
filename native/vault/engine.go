package vault

import (
	"errors"
	"math/big"

	"soliver/bridge"
	"soliver/core/events"
	"soliver/crypto"
)

var (
	errNilState        = errors.New("vault engine: state not configured")
	errNilNotifier     = errors.New("vault engine: notifier not configured")
	errLiquidatorUnset = errors.New("vault engine: liquidator authority not configured")
	ErrPaused          = errors.New("vault engine: module paused")
	ErrInvalidAmount   = errors.New("vault engine: amount must be positive")
	ErrNoActiveLoan    = errors.New("vault engine: no active loan")
	ErrNotLiquidator   = errors.New("vault engine: caller is not the liquidator authority")
)

const moduleName = "vault"

// noticeNonce is the fixed nonce attached to every outbound notice.
const noticeNonce uint32 = 0

// engineState abstracts the keyed vault store the engine mutates. GetVault
// returns nil without error when the owner has never borrowed.
type engineState interface {
	GetVault(owner crypto.Address) (*Vault, error)
	PutVault(vault *Vault) error
}

// PauseView reports whether a module has been administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Engine orchestrates the loan lifecycle for per-owner vaults and couples
// every terminal transition to a finalized cross-chain notice. Operations are
// atomic: if the notice cannot be published the ledger mutation is rolled
// back before the error is surfaced.
//
// The engine performs no locking; callers must serialize mutating calls
// against a given vault.
type Engine struct {
	state      engineState
	notifier   bridge.Notifier
	emitter    events.Emitter
	liquidator crypto.Address
	pauses     PauseView
}

// NewEngine constructs a vault engine. State and notifier wiring happens via
// the Set* methods before the first operation.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetNotifier wires the cross-chain notifier used for loan notices.
func (e *Engine) SetNotifier(notifier bridge.Notifier) {
	if e == nil {
		return
	}
	e.notifier = notifier
}

// SetEmitter overrides the in-process event emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the administrative pause view consulted before mutations.
func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetLiquidator configures the only address authorized to force-close loans.
func (e *Engine) SetLiquidator(addr crypto.Address) {
	if e == nil {
		return
	}
	if addr.Bytes() == nil {
		e.liquidator = crypto.Address{}
		return
	}
	cloned := append([]byte(nil), addr.Bytes()...)
	e.liquidator = crypto.NewAddress(addr.Prefix(), cloned)
}

func (e *Engine) guard() error {
	if e.pauses != nil && e.pauses.IsPaused(moduleName) {
		return ErrPaused
	}
	return nil
}

// GetVault returns a copy of the owner's vault, or nil when the owner has
// never borrowed.
func (e *Engine) GetVault(owner crypto.Address) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stored, err := e.state.GetVault(owner)
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// Borrow opens (or reopens) the owner's loan at exactly the requested amount.
// Re-borrowing while a loan is active replaces the tracked amount rather than
// accumulating it. A borrow notice is published on every successful call and
// the assigned guardian sequence is returned.
func (e *Engine) Borrow(owner crypto.Address, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.notifier == nil {
		return 0, errNilNotifier
	}
	if err := e.guard(); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	stored, err := e.state.GetVault(owner)
	if err != nil {
		return 0, err
	}
	prior := stored.Clone()

	updated := stored
	if updated == nil {
		updated = &Vault{Owner: owner}
	}
	updated.LoanAmount = new(big.Int).Set(amount)
	updated.Active = true

	if err := e.state.PutVault(updated); err != nil {
		return 0, err
	}

	seq, err := e.notifier.Publish(bridge.Message{
		Nonce:    noticeNonce,
		Payload:  bridge.BorrowPayload(owner.String(), amount),
		Finality: bridge.FinalityFinalized,
	})
	if err != nil {
		e.rollback(owner, prior)
		return 0, err
	}

	e.emitter.Emit(events.LoanBorrowed{
		Owner:    owner.String(),
		Amount:   new(big.Int).Set(amount),
		Sequence: seq,
	})
	return seq, nil
}

// Repay reduces the outstanding loan, clamping at zero when the repayment
// exceeds the balance. Full settlement deactivates the vault and publishes a
// repay notice; partial repayments stay silent. The remaining balance is
// returned.
func (e *Engine) Repay(owner crypto.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.notifier == nil {
		return nil, errNilNotifier
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	stored, err := e.state.GetVault(owner)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.Active {
		return nil, ErrNoActiveLoan
	}
	prior := stored.Clone()

	remaining := new(big.Int).Sub(stored.LoanAmount, amount)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	stored.LoanAmount = remaining
	settled := remaining.Sign() == 0
	if settled {
		stored.Active = false
	}

	if err := e.state.PutVault(stored); err != nil {
		return nil, err
	}

	if settled {
		seq, err := e.notifier.Publish(bridge.Message{
			Nonce:    noticeNonce,
			Payload:  bridge.RepayPayload(owner.String()),
			Finality: bridge.FinalityFinalized,
		})
		if err != nil {
			e.rollback(owner, prior)
			return nil, err
		}
		e.emitter.Emit(events.LoanRepaid{Owner: owner.String(), Sequence: seq})
	}

	return new(big.Int).Set(remaining), nil
}

// Liquidate force-closes an active loan regardless of the amount owed. Only
// the configured liquidator authority may call it. The liquidate notice
// carries the vault identifier and the guardian sequence is returned.
func (e *Engine) Liquidate(liquidator, owner crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.notifier == nil {
		return 0, errNilNotifier
	}
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.liquidator.IsZero() {
		return 0, errLiquidatorUnset
	}
	if !liquidator.Equal(e.liquidator) {
		return 0, ErrNotLiquidator
	}

	stored, err := e.state.GetVault(owner)
	if err != nil {
		return 0, err
	}
	if stored == nil || !stored.Active {
		return 0, ErrNoActiveLoan
	}
	prior := stored.Clone()

	stored.LoanAmount = big.NewInt(0)
	stored.Active = false

	if err := e.state.PutVault(stored); err != nil {
		return 0, err
	}

	vaultID := stored.ID()
	seq, err := e.notifier.Publish(bridge.Message{
		Nonce:    noticeNonce,
		Payload:  bridge.LiquidatePayload(vaultID),
		Finality: bridge.FinalityFinalized,
	})
	if err != nil {
		e.rollback(owner, prior)
		return 0, err
	}

	e.emitter.Emit(events.LoanLiquidated{
		VaultID:  vaultID,
		Owner:    owner.String(),
		Sequence: seq,
	})
	return seq, nil
}

// rollback restores the vault to its pre-operation snapshot. A vault created
// by the failed operation is reset to the zeroed inactive record, which is
// observably identical to a vault that was never initialised.
func (e *Engine) rollback(owner crypto.Address, prior *Vault) {
	restored := prior
	if restored == nil {
		restored = &Vault{Owner: owner, LoanAmount: big.NewInt(0), Active: false}
	}
	_ = e.state.PutVault(restored)
}
