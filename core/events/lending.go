package events

import (
	"strconv"

	"solsavings/core/types"
	"solsavings/crypto"
)

const (
	// TypeLoanCreated is emitted when a new loan is originated.
	TypeLoanCreated = "lending.loanCreated"
	// TypeLoanRepaid is emitted when a loan is settled in full and closed.
	TypeLoanRepaid = "lending.loanRepaid"
	// TypePartialRepayment is emitted when a repayment leaves the loan open.
	TypePartialRepayment = "lending.partialRepayment"
	// TypeLoanLiquidated is emitted when a third party force-closes an
	// underwater loan.
	TypeLoanLiquidated = "lending.loanLiquidated"
	// TypeCollateralDeposited is emitted when collateral enters the ledger.
	TypeCollateralDeposited = "lending.collateralDeposited"
	// TypeCollateralWithdrawn is emitted when free collateral leaves the
	// ledger.
	TypeCollateralWithdrawn = "lending.collateralWithdrawn"
)

type LoanCreated struct {
	LoanID     uint64
	Borrower   crypto.Address
	Principal  uint64
	Collateral uint64
	LTV        uint64
	APY        uint64
}

func (LoanCreated) EventType() string { return TypeLoanCreated }

func (e LoanCreated) Event() *types.Event {
	return &types.Event{Type: TypeLoanCreated, Attributes: map[string]string{
		"loanId":     formatUint(e.LoanID),
		"borrower":   e.Borrower.String(),
		"principal":  formatUint(e.Principal),
		"collateral": formatUint(e.Collateral),
		"ltv":        formatUint(e.LTV),
		"apy":        formatUint(e.APY),
	}}
}

type LoanRepaid struct {
	LoanID             uint64
	Borrower           crypto.Address
	Amount             uint64
	CollateralReturned uint64
	InterestPaid       uint64
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	return &types.Event{Type: TypeLoanRepaid, Attributes: map[string]string{
		"loanId":             formatUint(e.LoanID),
		"borrower":           e.Borrower.String(),
		"amount":             formatUint(e.Amount),
		"collateralReturned": formatUint(e.CollateralReturned),
		"interestPaid":       formatUint(e.InterestPaid),
	}}
}

type PartialRepayment struct {
	LoanID             uint64
	Borrower           crypto.Address
	Amount             uint64
	RemainingPrincipal uint64
	InterestPaid       uint64
}

func (PartialRepayment) EventType() string { return TypePartialRepayment }

func (e PartialRepayment) Event() *types.Event {
	return &types.Event{Type: TypePartialRepayment, Attributes: map[string]string{
		"loanId":             formatUint(e.LoanID),
		"borrower":           e.Borrower.String(),
		"amount":             formatUint(e.Amount),
		"remainingPrincipal": formatUint(e.RemainingPrincipal),
		"interestPaid":       formatUint(e.InterestPaid),
	}}
}

type LoanLiquidated struct {
	LoanID           uint64
	Borrower         crypto.Address
	Liquidator       crypto.Address
	DebtSettled      uint64
	CollateralSeized uint64
}

func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

func (e LoanLiquidated) Event() *types.Event {
	return &types.Event{Type: TypeLoanLiquidated, Attributes: map[string]string{
		"loanId":           formatUint(e.LoanID),
		"borrower":         e.Borrower.String(),
		"liquidator":       e.Liquidator.String(),
		"debtSettled":      formatUint(e.DebtSettled),
		"collateralSeized": formatUint(e.CollateralSeized),
	}}
}

type CollateralDeposited struct {
	Owner  crypto.Address
	Amount uint64
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{Type: TypeCollateralDeposited, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"amount": formatUint(e.Amount),
	}}
}

type CollateralWithdrawn struct {
	Owner  crypto.Address
	Amount uint64
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }

func (e CollateralWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeCollateralWithdrawn, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"amount": formatUint(e.Amount),
	}}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
