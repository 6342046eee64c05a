package vault

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"soliver/crypto"
)

// vaultIDNamespace matches the seed namespace the vault identifier is derived
// from. Identifiers are deterministic per owner so downstream notice consumers
// can correlate liquidations without an on-chain lookup.
var vaultIDNamespace = []byte("vault")

// Vault tracks the outstanding loan for a single owner. A vault is created
// lazily on first borrow and never deleted; Active cycles false -> true ->
// false as loans open and settle.
type Vault struct {
	// Owner is the borrower the vault belongs to. It is stored explicitly so
	// liquidation records can be traced back to the borrower.
	Owner crypto.Address
	// LoanAmount is the tracked outstanding amount. It is never negative and
	// is always zero while the vault is inactive.
	LoanAmount *big.Int
	// Active is true iff a nonzero loan obligation is currently tracked.
	Active bool
}

// Clone returns a deep copy of the vault to avoid mutating shared pointers.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	if v.LoanAmount != nil {
		clone.LoanAmount = new(big.Int).Set(v.LoanAmount)
	}
	return &clone
}

// ID returns the deterministic vault identifier for the owner.
func (v *Vault) ID() [32]byte {
	if v == nil {
		return [32]byte{}
	}
	return DeriveVaultID(v.Owner)
}

// DeriveVaultID computes the keyed identifier for an owner's vault from the
// fixed namespace and the owner address bytes.
func DeriveVaultID(owner crypto.Address) [32]byte {
	digest := ethcrypto.Keccak256(vaultIDNamespace, owner.Bytes())
	var id [32]byte
	copy(id[:], digest)
	return id
}
