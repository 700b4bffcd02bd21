package types

// Account is the balance record for a single ledger participant. Balances are
// unsigned 64-bit integers in the smallest unit of each asset (lamports for
// SOL, 1e-6 for USDC); all balance movements go through checked arithmetic in
// the lending engine so a wrap can never be persisted.
type Account struct {
	Nonce       uint64 `json:"nonce"`
	BalanceSOL  uint64 `json:"balanceSOL"`
	BalanceUSDC uint64 `json:"balanceUSDC"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cloned := *a
	return &cloned
}
