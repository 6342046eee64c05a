package modules

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"soliver/crypto"
	"soliver/native/vault"
	"soliver/observability"
)

const vaultModuleName = "vault"

// VaultModule exposes the vault engine to the RPC layer. It serializes
// mutating calls behind a mutex so at most one mutator runs against the
// ledger at a time, and maps engine errors to transport errors.
type VaultModule struct {
	mu     sync.Mutex
	engine *vault.Engine
}

// NewVaultModule constructs the RPC wrapper around the engine.
func NewVaultModule(engine *vault.Engine) *VaultModule {
	return &VaultModule{engine: engine}
}

func (m *VaultModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "vault module not available"}
}

// Borrow opens or reopens a loan and returns the guardian sequence of the
// published borrow notice.
func (m *VaultModule) Borrow(owner crypto.Address, amount *big.Int) (uint64, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	started := time.Now()
	m.mu.Lock()
	seq, err := m.engine.Borrow(owner, amount)
	m.mu.Unlock()
	moduleErr := m.wrapError(err)
	m.observe("borrow", started, moduleErr)
	if moduleErr != nil {
		return 0, moduleErr
	}
	return seq, nil
}

// Repay applies a repayment and returns the remaining balance.
func (m *VaultModule) Repay(owner crypto.Address, amount *big.Int) (*big.Int, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	started := time.Now()
	m.mu.Lock()
	remaining, err := m.engine.Repay(owner, amount)
	m.mu.Unlock()
	moduleErr := m.wrapError(err)
	m.observe("repay", started, moduleErr)
	if moduleErr != nil {
		return nil, moduleErr
	}
	return remaining, nil
}

// Liquidate force-closes the owner's loan on behalf of the liquidator
// authority and returns the guardian sequence of the liquidate notice.
func (m *VaultModule) Liquidate(liquidator, owner crypto.Address) (uint64, *ModuleError) {
	if m == nil || m.engine == nil {
		return 0, m.moduleUnavailable()
	}
	started := time.Now()
	m.mu.Lock()
	seq, err := m.engine.Liquidate(liquidator, owner)
	m.mu.Unlock()
	moduleErr := m.wrapError(err)
	m.observe("liquidate", started, moduleErr)
	if moduleErr != nil {
		return 0, moduleErr
	}
	return seq, nil
}

// VaultResult is the wire representation of a vault record.
type VaultResult struct {
	VaultID    string `json:"vaultId"`
	Owner      string `json:"owner"`
	LoanAmount string `json:"loanAmount"`
	Active     bool   `json:"active"`
}

// Get returns the owner's vault, or nil when the owner has never borrowed.
func (m *VaultModule) Get(owner crypto.Address) (*VaultResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	record, err := m.engine.GetVault(owner)
	if moduleErr := m.wrapError(err); moduleErr != nil {
		return nil, moduleErr
	}
	if record == nil {
		return nil, nil
	}
	id := record.ID()
	amount := "0"
	if record.LoanAmount != nil {
		amount = record.LoanAmount.String()
	}
	return &VaultResult{
		VaultID:    "0x" + hex.EncodeToString(id[:]),
		Owner:      record.Owner.String(),
		LoanAmount: amount,
		Active:     record.Active,
	}, nil
}

func (m *VaultModule) observe(method string, started time.Time, moduleErr *ModuleError) {
	status := http.StatusOK
	if moduleErr != nil {
		status = moduleErr.HTTPStatus
	}
	observability.ModuleMetrics().Observe(vaultModuleName, method, status, time.Since(started))
}

func (m *VaultModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, vault.ErrInvalidAmount):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, vault.ErrNoActiveLoan):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeNoActiveLoan, Message: err.Error()}
	case errors.Is(err, vault.ErrNotLiquidator):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, vault.ErrPaused):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codePaused, Message: err.Error()}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}
