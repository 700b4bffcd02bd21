package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"solsavings/core/types"
	"solsavings/crypto"
	"solsavings/native/lending"
	"solsavings/storage"
)

func account(sol, usdc uint64) *types.Account {
	return &types.Account{BalanceSOL: sol, BalanceUSDC: usdc}
}

func addr(t *testing.T, fill byte) crypto.Address {
	t.Helper()
	a, err := crypto.NewAddress(crypto.SavPrefix, bytes.Repeat([]byte{fill}, crypto.AddressLength))
	require.NoError(t, err)
	return a
}

func TestPositionRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	owner := addr(t, 0x01)
	borrower := addr(t, 0x01)

	want := &lending.UserPosition{
		Owner:             owner,
		CollateralBalance: 10_000_000,
		DebtAssetBalance:  1_000_000,
		LoanCount:         3,
		Loans: []lending.Loan{{
			ID:         3,
			Borrower:   borrower,
			StartDate:  1_700_000_000,
			Principal:  1_000_000,
			APY:        1,
			LTV:        25,
			Collateral: 2_666_666,
		}},
	}
	require.NoError(t, manager.PutPosition(want))

	got, err := manager.GetPosition(owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Owner.Equal(owner))
	require.Equal(t, want.CollateralBalance, got.CollateralBalance)
	require.Equal(t, want.DebtAssetBalance, got.DebtAssetBalance)
	require.Equal(t, want.LoanCount, got.LoanCount)
	require.Len(t, got.Loans, 1)
	require.Equal(t, want.Loans[0].ID, got.Loans[0].ID)
	require.True(t, got.Loans[0].Borrower.Equal(borrower))
	require.Equal(t, want.Loans[0].StartDate, got.Loans[0].StartDate)
	require.Equal(t, want.Loans[0].Principal, got.Loans[0].Principal)
	require.Equal(t, want.Loans[0].APY, got.Loans[0].APY)
	require.Equal(t, want.Loans[0].LTV, got.Loans[0].LTV)
	require.Equal(t, want.Loans[0].Collateral, got.Loans[0].Collateral)
}

func TestUnknownPositionIsNil(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	got, err := manager.GetPosition(addr(t, 0x02))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPositionOverwrite(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	owner := addr(t, 0x03)

	require.NoError(t, manager.PutPosition(&lending.UserPosition{Owner: owner, CollateralBalance: 100}))
	require.NoError(t, manager.PutPosition(&lending.UserPosition{Owner: owner, CollateralBalance: 200}))

	got, err := manager.GetPosition(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(200), got.CollateralBalance)
}

func TestTransferMovesBalances(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	alice := addr(t, 0x04)
	bob := addr(t, 0x05)

	require.NoError(t, manager.PutAccount(alice, account(1_000, 500)))

	require.NoError(t, manager.Transfer(lending.AssetSOL, alice, bob, 400))

	aliceAcc, err := manager.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), aliceAcc.BalanceSOL)
	require.Equal(t, uint64(500), aliceAcc.BalanceUSDC)

	bobAcc, err := manager.GetAccount(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), bobAcc.BalanceSOL)
}

func TestTransferRejectsShortBalance(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	alice := addr(t, 0x06)
	bob := addr(t, 0x07)

	require.NoError(t, manager.PutAccount(alice, account(100, 0)))
	require.Error(t, manager.Transfer(lending.AssetSOL, alice, bob, 101))

	aliceAcc, err := manager.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), aliceAcc.BalanceSOL)

	bobAcc, err := manager.GetAccount(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bobAcc.BalanceSOL)
}

func TestTransferZeroAmountIsNoop(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.NoError(t, manager.Transfer(lending.AssetUSDC, addr(t, 0x08), addr(t, 0x09), 0))
}

func TestUnknownAccountIsZeroed(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	acc, err := manager.GetAccount(addr(t, 0x0A))
	require.NoError(t, err)
	require.Equal(t, uint64(0), acc.BalanceSOL)
	require.Equal(t, uint64(0), acc.BalanceUSDC)
}

func TestEnsureGenesisRunsOnce(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	vault := addr(t, 0x0B)

	require.NoError(t, manager.EnsureGenesis(vault, 1_000_000_000_000))

	acc, err := manager.GetAccount(vault)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000_000), acc.BalanceUSDC)

	// A repeat start must not reseed, even after the vault spent funds.
	require.NoError(t, manager.Transfer(lending.AssetUSDC, vault, addr(t, 0x0C), 400))
	require.NoError(t, manager.EnsureGenesis(vault, 1_000_000_000_000))

	acc, err = manager.GetAccount(vault)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000_000-400), acc.BalanceUSDC)
}
