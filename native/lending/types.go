package lending

import (
	"solsavings/crypto"
)

// Loan is one open borrowing position. It is created at origination, mutated
// only by partial repayment (principal and start date), and removed on full
// repayment or liquidation. An open loan always carries a positive principal.
type Loan struct {
	// ID is unique within the owning position, assigned from LoanCount and
	// never reused.
	ID uint64 `json:"id"`
	// Borrower must equal the position owner for every operation.
	Borrower crypto.Address `json:"borrower"`
	// StartDate is the unix timestamp of origination, or of the most recent
	// partial repayment (accrual resets there).
	StartDate int64 `json:"startDate"`
	// Principal is the outstanding debt-asset amount not yet repaid.
	Principal uint64 `json:"principal,string"`
	// APY is the fixed annual rate in whole percentage points, bound to LTV
	// by the tier table at origination.
	APY uint64 `json:"apy"`
	// LTV is the loan-to-value ratio chosen at origination.
	LTV uint64 `json:"ltv"`
	// Collateral is the collateral-asset amount locked against this loan.
	Collateral uint64 `json:"collateral,string"`
}

// Clone returns a copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	cloned := *l
	return &cloned
}

// UserPosition is the durable per-user record: custodied collateral, tracked
// debt-asset holdings and the open loan set.
type UserPosition struct {
	// Owner is the controlling principal.
	Owner crypto.Address `json:"owner"`
	// CollateralBalance is the total collateral-asset amount custodied by
	// the ledger for this user, locked and free portions combined.
	CollateralBalance uint64 `json:"collateralBalance,string"`
	// DebtAssetBalance tracks the outstanding borrowed principal across all
	// open loans.
	DebtAssetBalance uint64 `json:"debtAssetBalance,string"`
	// LoanCount is the monotonically increasing loan ID source; it never
	// decreases even as loans close.
	LoanCount uint64 `json:"loanCount"`
	// Loans holds the open loans in insertion order.
	Loans []Loan `json:"loans"`
}

// Clone returns a deep copy of the position.
func (p *UserPosition) Clone() *UserPosition {
	if p == nil {
		return nil
	}
	cloned := &UserPosition{
		Owner:             p.Owner,
		CollateralBalance: p.CollateralBalance,
		DebtAssetBalance:  p.DebtAssetBalance,
		LoanCount:         p.LoanCount,
	}
	if p.Loans != nil {
		cloned.Loans = append([]Loan(nil), p.Loans...)
	}
	return cloned
}

// LockedCollateral sums the collateral committed to open loans.
func (p *UserPosition) LockedCollateral() (uint64, error) {
	var total uint64
	for i := range p.Loans {
		sum, err := checkedAdd(total, p.Loans[i].Collateral)
		if err != nil {
			return 0, err
		}
		total = sum
	}
	return total, nil
}

// FreeCollateral is the custodied balance not committed to any open loan;
// only this portion may back a new loan or leave via withdrawal.
func (p *UserPosition) FreeCollateral() (uint64, error) {
	locked, err := p.LockedCollateral()
	if err != nil {
		return 0, err
	}
	return checkedSub(p.CollateralBalance, locked)
}

// findLoan returns the index of the loan with the given ID.
func (p *UserPosition) findLoan(id uint64) (int, bool) {
	for i := range p.Loans {
		if p.Loans[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// removeLoan deletes the loan at index i preserving insertion order of the
// remainder.
func (p *UserPosition) removeLoan(i int) {
	p.Loans = append(p.Loans[:i], p.Loans[i+1:]...)
}
