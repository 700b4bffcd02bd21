package lending

import (
	"fmt"

	"solsavings/core/events"
	"solsavings/core/types"
	"solsavings/crypto"
	nativecommon "solsavings/native/common"
)

// Pause-guard action names. Each mutating operation is individually
// switchable by operator configuration.
const (
	ActionOriginate = "originate"
	ActionRepay     = "repay"
	ActionLiquidate = "liquidate"
	ActionWithdraw  = "withdraw"
	ActionDeposit   = "deposit"
)

// engineState is the persistence boundary for user positions. Get returns nil
// for an unknown owner; positions are created lazily on first use.
type engineState interface {
	GetPosition(addr crypto.Address) (*UserPosition, error)
	PutPosition(pos *UserPosition) error
}

// Engine is the loan ledger root: it owns the per-user position state machine
// and drives the oracle, the transfer gateway and the accrual math for every
// operation. Operations validate and compute all derived values first, then
// perform transfers, then persist. The state and gateway collaborators must
// stage writes for the duration of an operation and commit them together
// (state.Manager.Do does this), so a failure at any step leaves no partial
// state behind.
type Engine struct {
	state     engineState
	transfers TransferGateway
	oracle    PriceOracle

	// moduleAddress is the debt-asset vault; collateralAddress custodies
	// locked and free collateral.
	moduleAddress     crypto.Address
	collateralAddress crypto.Address

	pauses nativecommon.PauseView
}

// NewEngine constructs a ledger engine bound to the module vault addresses.
func NewEngine(moduleAddr, collateralAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress:     moduleAddr,
		collateralAddress: collateralAddr,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferGateway wires the balance movement collaborator.
func (e *Engine) SetTransferGateway(gw TransferGateway) { e.transfers = gw }

// SetOracle wires the collateral price feed.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetPauses installs the per-action pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.transfers == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*UserPosition, error) {
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &UserPosition{Owner: addr}
	}
	return pos.Clone(), nil
}

func (e *Engine) collateralPrice() (PriceQuote, error) {
	if e.oracle == nil {
		return PriceQuote{}, ErrPriceUnavailable
	}
	quote, err := e.oracle.CollateralPrice()
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if err := validateQuote(quote); err != nil {
		return PriceQuote{}, err
	}
	return quote, nil
}

func (e *Engine) transfer(asset Asset, from, to crypto.Address, amount uint64) error {
	if err := e.transfers.Transfer(asset, from, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// DepositCollateral moves collateral from the owner into the ledger vault and
// credits the position's custodied balance.
func (e *Engine) DepositCollateral(owner crypto.Address, amount uint64) ([]*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ActionDeposit); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.ensurePosition(owner)
	if err != nil {
		return nil, err
	}
	newBalance, err := checkedAdd(pos.CollateralBalance, amount)
	if err != nil {
		return nil, err
	}

	if err := e.transfer(AssetSOL, owner, e.collateralAddress, amount); err != nil {
		return nil, err
	}

	pos.CollateralBalance = newBalance
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	return []*types.Event{events.CollateralDeposited{Owner: owner, Amount: amount}.Event()}, nil
}

// WithdrawCollateral releases free collateral back to the owner. Collateral
// committed to open loans is never withdrawable.
func (e *Engine) WithdrawCollateral(owner crypto.Address, amount uint64) ([]*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ActionWithdraw); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.ensurePosition(owner)
	if err != nil {
		return nil, err
	}
	free, err := pos.FreeCollateral()
	if err != nil {
		return nil, err
	}
	if amount > free {
		return nil, ErrInsufficientFunds
	}
	newBalance, err := checkedSub(pos.CollateralBalance, amount)
	if err != nil {
		return nil, err
	}

	if err := e.transfer(AssetSOL, e.collateralAddress, owner, amount); err != nil {
		return nil, err
	}

	pos.CollateralBalance = newBalance
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	return []*types.Event{events.CollateralWithdrawn{Owner: owner, Amount: amount}.Event()}, nil
}

// Originate opens a new loan: it validates the tier, sizes the collateral at
// the current oracle price, locks it out of the free balance and releases the
// requested debt amount to the borrower.
func (e *Engine) Originate(owner crypto.Address, debtAmount, requestedLTV uint64, now int64) (*Loan, []*types.Event, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if err := nativecommon.Guard(e.pauses, ActionOriginate); err != nil {
		return nil, nil, err
	}
	if debtAmount == 0 {
		return nil, nil, ErrInvalidAmount
	}
	apy, err := APYForLTV(requestedLTV)
	if err != nil {
		return nil, nil, err
	}

	pos, err := e.ensurePosition(owner)
	if err != nil {
		return nil, nil, err
	}
	if len(pos.Loans) >= MaxLoansPerUser {
		return nil, nil, ErrMaxLoansReached
	}

	quote, err := e.collateralPrice()
	if err != nil {
		return nil, nil, err
	}
	required, err := RequiredCollateral(debtAmount, requestedLTV, quote.Price)
	if err != nil {
		return nil, nil, err
	}
	free, err := pos.FreeCollateral()
	if err != nil {
		return nil, nil, err
	}
	if free < required {
		return nil, nil, ErrInsufficientCollateral
	}

	loanID, err := checkedAdd(pos.LoanCount, 1)
	if err != nil {
		return nil, nil, err
	}
	newDebtBalance, err := checkedAdd(pos.DebtAssetBalance, debtAmount)
	if err != nil {
		return nil, nil, err
	}

	if err := e.transfer(AssetUSDC, e.moduleAddress, owner, debtAmount); err != nil {
		return nil, nil, err
	}

	loan := Loan{
		ID:         loanID,
		Borrower:   owner,
		StartDate:  now,
		Principal:  debtAmount,
		APY:        apy,
		LTV:        requestedLTV,
		Collateral: required,
	}
	pos.LoanCount = loanID
	pos.DebtAssetBalance = newDebtBalance
	pos.Loans = append(pos.Loans, loan)

	if err := e.state.PutPosition(pos); err != nil {
		return nil, nil, err
	}

	evs := []*types.Event{events.LoanCreated{
		LoanID:     loan.ID,
		Borrower:   owner,
		Principal:  loan.Principal,
		Collateral: loan.Collateral,
		LTV:        loan.LTV,
		APY:        loan.APY,
	}.Event()}
	return loan.Clone(), evs, nil
}

// RepaymentOutcome distinguishes a settlement that closed the loan from one
// that left it open.
type RepaymentOutcome string

const (
	RepaymentFull    RepaymentOutcome = "fully_repaid"
	RepaymentPartial RepaymentOutcome = "partially_repaid"
)

// RepaymentResult reports what a repayment did to the loan.
type RepaymentResult struct {
	Outcome            RepaymentOutcome `json:"outcome"`
	LoanID             uint64           `json:"loanId"`
	AmountPaid         uint64           `json:"amountPaid,string"`
	PrincipalRepaid    uint64           `json:"principalRepaid,string"`
	InterestPaid       uint64           `json:"interestPaid,string"`
	RemainingPrincipal uint64           `json:"remainingPrincipal,string"`
	CollateralReturned uint64           `json:"collateralReturned,string"`
	Events             []*types.Event   `json:"events"`
}

// Repay applies a payment to the identified loan. Paying exactly the total
// owed closes the loan and releases its collateral to the free balance. A
// smaller payment reduces the balance per the contract formula: the payment
// and the accrued interest are both deducted from the total owed and the
// remainder becomes the new principal with a fresh accrual clock. When that
// formula zeroes the principal the loan is settled and closed; a
// zero-principal loan is never retained.
func (e *Engine) Repay(caller crypto.Address, loanID, amount uint64, now int64) (*RepaymentResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ActionRepay); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.ensurePosition(caller)
	if err != nil {
		return nil, err
	}
	idx, ok := pos.findLoan(loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	loan := &pos.Loans[idx]
	if !loan.Borrower.Equal(caller) {
		return nil, ErrUnauthorized
	}

	interest, err := AccruedInterest(loan.Principal, loan.APY, loan.StartDate, now)
	if err != nil {
		return nil, err
	}
	totalOwed, err := checkedAdd(loan.Principal, interest)
	if err != nil {
		return nil, err
	}
	if amount > totalOwed {
		return nil, ErrRepaymentAmountTooHigh
	}

	principalAtStart := loan.Principal

	var newPrincipal uint64
	if amount < totalOwed {
		remaining, err := checkedSub(totalOwed, amount)
		if err != nil {
			return nil, err
		}
		if remaining > interest {
			newPrincipal, err = checkedSub(remaining, interest)
			if err != nil {
				return nil, err
			}
		}
	}

	if newPrincipal == 0 {
		// Full settlement: the payment covers at least the principal.
		principalRepaid := principalAtStart
		interestPaid, err := checkedSub(amount, principalRepaid)
		if err != nil {
			return nil, err
		}
		newDebtBalance, err := checkedSub(pos.DebtAssetBalance, principalRepaid)
		if err != nil {
			return nil, err
		}
		collateral := loan.Collateral

		if err := e.transfer(AssetUSDC, caller, e.moduleAddress, amount); err != nil {
			return nil, err
		}

		pos.DebtAssetBalance = newDebtBalance
		pos.removeLoan(idx)
		if err := e.state.PutPosition(pos); err != nil {
			return nil, err
		}

		return &RepaymentResult{
			Outcome:            RepaymentFull,
			LoanID:             loanID,
			AmountPaid:         amount,
			PrincipalRepaid:    principalRepaid,
			InterestPaid:       interestPaid,
			CollateralReturned: collateral,
			Events: []*types.Event{events.LoanRepaid{
				LoanID:             loanID,
				Borrower:           caller,
				Amount:             amount,
				CollateralReturned: collateral,
				InterestPaid:       interestPaid,
			}.Event()},
		}, nil
	}

	// Partial: the loan stays open with the reduced principal and a reset
	// accrual clock. No collateral changes hands.
	principalRepaid, err := checkedSub(principalAtStart, newPrincipal)
	if err != nil {
		return nil, err
	}
	newDebtBalance, err := checkedSub(pos.DebtAssetBalance, principalRepaid)
	if err != nil {
		return nil, err
	}

	if err := e.transfer(AssetUSDC, caller, e.moduleAddress, amount); err != nil {
		return nil, err
	}

	loan.Principal = newPrincipal
	loan.StartDate = now
	pos.DebtAssetBalance = newDebtBalance
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	return &RepaymentResult{
		Outcome:            RepaymentPartial,
		LoanID:             loanID,
		AmountPaid:         amount,
		PrincipalRepaid:    principalRepaid,
		RemainingPrincipal: newPrincipal,
		Events: []*types.Event{events.PartialRepayment{
			LoanID:             loanID,
			Borrower:           caller,
			Amount:             amount,
			RemainingPrincipal: newPrincipal,
		}.Event()},
	}, nil
}

// IsUnderwater reports whether the loan's collateral, valued at the given
// quote, no longer covers the total owed. Pure: calling it twice with the
// same inputs yields the same answer.
func IsUnderwater(loan *Loan, now int64, quote PriceQuote) (bool, error) {
	if loan == nil {
		return false, ErrLoanNotFound
	}
	if err := validateQuote(quote); err != nil {
		return false, err
	}
	totalOwed, err := TotalOwed(loan.Principal, loan.APY, loan.StartDate, now)
	if err != nil {
		return false, err
	}
	value, err := CollateralValue(loan.Collateral, quote.Price)
	if err != nil {
		return false, err
	}
	return value < totalOwed, nil
}

// LiquidationResult reports the settlement of a forced closure.
type LiquidationResult struct {
	LoanID           uint64         `json:"loanId"`
	Borrower         crypto.Address `json:"borrower"`
	DebtSettled      uint64         `json:"debtSettled,string"`
	CollateralSeized uint64         `json:"collateralSeized,string"`
	Events           []*types.Event `json:"events"`
}

// Liquidate force-closes an underwater loan: the liquidator pays the full
// amount owed and receives the loan's collateral. A healthy loan is never
// liquidatable. The borrower's debt is extinguished unconditionally, even
// when the collateral value falls short of the amount owed.
func (e *Engine) Liquidate(liquidator, owner crypto.Address, loanID uint64, now int64) (*LiquidationResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ActionLiquidate); err != nil {
		return nil, err
	}

	pos, err := e.ensurePosition(owner)
	if err != nil {
		return nil, err
	}
	idx, ok := pos.findLoan(loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	loan := &pos.Loans[idx]

	quote, err := e.collateralPrice()
	if err != nil {
		return nil, err
	}
	underwater, err := IsUnderwater(loan, now, quote)
	if err != nil {
		return nil, err
	}
	if !underwater {
		return nil, ErrLoanNotUnderwater
	}

	totalOwed, err := TotalOwed(loan.Principal, loan.APY, loan.StartDate, now)
	if err != nil {
		return nil, err
	}
	newCollateralBalance, err := checkedSub(pos.CollateralBalance, loan.Collateral)
	if err != nil {
		return nil, err
	}
	newDebtBalance, err := checkedSub(pos.DebtAssetBalance, loan.Principal)
	if err != nil {
		return nil, err
	}
	seized := loan.Collateral

	if err := e.transfer(AssetUSDC, liquidator, e.moduleAddress, totalOwed); err != nil {
		return nil, err
	}
	if err := e.transfer(AssetSOL, e.collateralAddress, liquidator, seized); err != nil {
		return nil, err
	}

	pos.CollateralBalance = newCollateralBalance
	pos.DebtAssetBalance = newDebtBalance
	pos.removeLoan(idx)
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	return &LiquidationResult{
		LoanID:           loanID,
		Borrower:         owner,
		DebtSettled:      totalOwed,
		CollateralSeized: seized,
		Events: []*types.Event{events.LoanLiquidated{
			LoanID:           loanID,
			Borrower:         owner,
			Liquidator:       liquidator,
			DebtSettled:      totalOwed,
			CollateralSeized: seized,
		}.Event()},
	}, nil
}

// Position returns a copy of the owner's position, or an empty position when
// none has been created yet.
func (e *Engine) Position(owner crypto.Address) (*UserPosition, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.GetPosition(owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return &UserPosition{Owner: owner}, nil
	}
	return pos.Clone(), nil
}
