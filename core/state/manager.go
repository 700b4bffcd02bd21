package state

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"solsavings/core/types"
	"solsavings/crypto"
	"solsavings/native/lending"
	"solsavings/storage"
)

var (
	positionKeyPrefix = []byte("lending/position/")
	accountKeyPrefix  = []byte("accounts/")
	genesisKey        = []byte("genesis/initialized")
)

// storedLoan and storedPosition are the durable record shapes. Field order is
// the wire layout: RLP encodes struct fields in declaration order, so fields
// must never be reordered or removed; a layout change requires an explicit
// migration.
type storedLoan struct {
	ID         uint64
	Borrower   []byte
	StartDate  uint64
	Principal  uint64
	APY        uint64
	LTV        uint64
	Collateral uint64
}

type storedPosition struct {
	Owner             []byte
	CollateralBalance uint64
	DebtAssetBalance  uint64
	LoanCount         uint64
	Loans             []storedLoan
}

type storedAccount struct {
	Nonce       uint64
	BalanceSOL  uint64
	BalanceUSDC uint64
}

// Manager persists positions and asset accounts in the key-value store and
// doubles as the engine's transfer gateway: every balance movement is a
// read-modify-write of the two stored accounts under the manager's operation
// lock.
//
// Writes issued inside Do are staged in memory and flushed to the store as a
// single atomic batch only when the operation succeeds. A failing operation
// discards the stage, so no transfer or position write it performed becomes
// visible. Outside Do, writes go straight through.
type Manager struct {
	db storage.Database
	mu sync.Mutex

	stageMu sync.RWMutex
	staged  map[string][]byte
}

// NewManager wraps the database in a state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Do runs one ledger operation exclusively and atomically. Operations that
// touch the same position must never interleave; the host serializes them
// here. All writes the operation performs commit together, or not at all.
func (m *Manager) Do(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stageMu.Lock()
	m.staged = make(map[string][]byte)
	m.stageMu.Unlock()

	if err := fn(); err != nil {
		m.stageMu.Lock()
		m.staged = nil
		m.stageMu.Unlock()
		return err
	}

	m.stageMu.Lock()
	writes := m.staged
	m.staged = nil
	m.stageMu.Unlock()
	if len(writes) == 0 {
		return nil
	}
	return m.db.WriteBatch(writes)
}

// get reads through the stage so an operation sees its own writes.
func (m *Manager) get(key []byte) ([]byte, error) {
	m.stageMu.RLock()
	if m.staged != nil {
		if value, ok := m.staged[string(key)]; ok {
			out := append([]byte(nil), value...)
			m.stageMu.RUnlock()
			return out, nil
		}
	}
	m.stageMu.RUnlock()
	return m.db.Get(key)
}

func (m *Manager) has(key []byte) (bool, error) {
	m.stageMu.RLock()
	if m.staged != nil {
		if _, ok := m.staged[string(key)]; ok {
			m.stageMu.RUnlock()
			return true, nil
		}
	}
	m.stageMu.RUnlock()
	return m.db.Has(key)
}

func (m *Manager) put(key, value []byte) error {
	m.stageMu.Lock()
	defer m.stageMu.Unlock()
	if m.staged != nil {
		m.staged[string(key)] = append([]byte(nil), value...)
		return nil
	}
	return m.db.Put(key, value)
}

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), positionKeyPrefix...), addr.Bytes()...)
}

func accountKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), accountKeyPrefix...), addr.Bytes()...)
}

// GetPosition loads the stored position for the owner, or nil when none
// exists yet.
func (m *Manager) GetPosition(addr crypto.Address) (*lending.UserPosition, error) {
	raw, err := m.get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	return positionFromStored(&stored)
}

// PutPosition writes the position under its owner's key.
func (m *Manager) PutPosition(pos *lending.UserPosition) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	stored := positionToStored(pos)
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return m.put(positionKey(pos.Owner), encoded)
}

func positionToStored(pos *lending.UserPosition) *storedPosition {
	stored := &storedPosition{
		Owner:             pos.Owner.Bytes(),
		CollateralBalance: pos.CollateralBalance,
		DebtAssetBalance:  pos.DebtAssetBalance,
		LoanCount:         pos.LoanCount,
		Loans:             make([]storedLoan, 0, len(pos.Loans)),
	}
	for i := range pos.Loans {
		loan := &pos.Loans[i]
		stored.Loans = append(stored.Loans, storedLoan{
			ID:         loan.ID,
			Borrower:   loan.Borrower.Bytes(),
			StartDate:  uint64(loan.StartDate),
			Principal:  loan.Principal,
			APY:        loan.APY,
			LTV:        loan.LTV,
			Collateral: loan.Collateral,
		})
	}
	return stored
}

func positionFromStored(stored *storedPosition) (*lending.UserPosition, error) {
	owner, err := crypto.NewAddress(crypto.SavPrefix, stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("state: stored position owner: %w", err)
	}
	pos := &lending.UserPosition{
		Owner:             owner,
		CollateralBalance: stored.CollateralBalance,
		DebtAssetBalance:  stored.DebtAssetBalance,
		LoanCount:         stored.LoanCount,
	}
	if len(stored.Loans) > 0 {
		pos.Loans = make([]lending.Loan, 0, len(stored.Loans))
	}
	for i := range stored.Loans {
		rec := &stored.Loans[i]
		borrower, err := crypto.NewAddress(crypto.SavPrefix, rec.Borrower)
		if err != nil {
			return nil, fmt.Errorf("state: stored loan borrower: %w", err)
		}
		pos.Loans = append(pos.Loans, lending.Loan{
			ID:         rec.ID,
			Borrower:   borrower,
			StartDate:  int64(rec.StartDate),
			Principal:  rec.Principal,
			APY:        rec.APY,
			LTV:        rec.LTV,
			Collateral: rec.Collateral,
		})
	}
	return pos, nil
}

// GetAccount loads the asset balances for an address; unknown addresses
// resolve to a zeroed account.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	raw, err := m.get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return &types.Account{
		Nonce:       stored.Nonce,
		BalanceSOL:  stored.BalanceSOL,
		BalanceUSDC: stored.BalanceUSDC,
	}, nil
}

// PutAccount writes the account under its address key.
func (m *Manager) PutAccount(addr crypto.Address, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{
		Nonce:       acc.Nonce,
		BalanceSOL:  acc.BalanceSOL,
		BalanceUSDC: acc.BalanceUSDC,
	})
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.put(accountKey(addr), encoded)
}

// Transfer implements lending.TransferGateway over the stored accounts. The
// debit and credit are staged against in-memory copies and written only after
// both succeed, so a failed movement changes no balance.
func (m *Manager) Transfer(asset lending.Asset, from, to crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}

	fromBal, err := assetBalance(fromAcc, asset)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("state: insufficient %s balance for %s", asset, from)
	}
	toBal, err := assetBalance(toAcc, asset)
	if err != nil {
		return err
	}
	newToBal, carry := bits.Add64(toBal, amount, 0)
	if carry != 0 {
		return fmt.Errorf("state: %s balance overflow for %s", asset, to)
	}

	setAssetBalance(fromAcc, asset, fromBal-amount)
	setAssetBalance(toAcc, asset, newToBal)

	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

func assetBalance(acc *types.Account, asset lending.Asset) (uint64, error) {
	switch asset {
	case lending.AssetSOL:
		return acc.BalanceSOL, nil
	case lending.AssetUSDC:
		return acc.BalanceUSDC, nil
	default:
		return 0, fmt.Errorf("state: unknown asset %q", asset)
	}
}

func setAssetBalance(acc *types.Account, asset lending.Asset, balance uint64) {
	switch asset {
	case lending.AssetSOL:
		acc.BalanceSOL = balance
	case lending.AssetUSDC:
		acc.BalanceUSDC = balance
	}
}

// EnsureGenesis seeds the debt-asset vault with its initial supply exactly
// once per database.
func (m *Manager) EnsureGenesis(usdcVault crypto.Address, initialSupply uint64) error {
	done, err := m.has(genesisKey)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	acc, err := m.GetAccount(usdcVault)
	if err != nil {
		return err
	}
	acc.BalanceUSDC = initialSupply
	if err := m.PutAccount(usdcVault, acc); err != nil {
		return err
	}
	return m.put(genesisKey, []byte{1})
}
