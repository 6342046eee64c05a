package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"soliver/crypto"
	"soliver/native/vault"
	"soliver/storage"
)

var vaultKeyPrefix = []byte("vault/")

// Manager provides the keyed vault store on top of a raw key-value database.
// Records are RLP encoded under a deterministic per-owner key; exclusive
// read-modify-write access is the caller's responsibility.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// storedVault is the persisted wire form of a vault record.
type storedVault struct {
	Owner      []byte
	Prefix     string
	LoanAmount *big.Int
	Active     bool
}

func vaultKey(owner crypto.Address) []byte {
	return append(append([]byte(nil), vaultKeyPrefix...), owner.Bytes()...)
}

// GetVault loads the vault for the owner, returning nil when the owner has
// never borrowed.
func (m *Manager) GetVault(owner crypto.Address) (*vault.Vault, error) {
	if m == nil || m.db == nil {
		return nil, errors.New("state: manager not initialised")
	}
	raw, err := m.db.Get(vaultKey(owner))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: load vault: %w", err)
	}
	var stored storedVault
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode vault: %w", err)
	}
	amount := stored.LoanAmount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &vault.Vault{
		Owner:      crypto.NewAddress(crypto.AddressPrefix(stored.Prefix), stored.Owner),
		LoanAmount: amount,
		Active:     stored.Active,
	}, nil
}

// PutVault persists the vault record under its owner key.
func (m *Manager) PutVault(v *vault.Vault) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not initialised")
	}
	if v == nil {
		return errors.New("state: nil vault")
	}
	amount := v.LoanAmount
	if amount == nil {
		amount = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(&storedVault{
		Owner:      v.Owner.Bytes(),
		Prefix:     string(v.Owner.Prefix()),
		LoanAmount: amount,
		Active:     v.Active,
	})
	if err != nil {
		return fmt.Errorf("state: encode vault: %w", err)
	}
	return m.db.Put(vaultKey(v.Owner), encoded)
}
