package modules

import (
	"errors"
	"net/http"
	"time"

	"solsavings/core/state"
	"solsavings/core/types"
	"solsavings/crypto"
	nativecommon "solsavings/native/common"
	"solsavings/native/lending"
	"solsavings/observability"
)

const (
	codeServerError   = -32000
	codeUnauthorized  = -32001
	codeInvalidParams = -32602

	codeInvalidLTV             = -32021
	codeMaxLoansReached        = -32022
	codeInsufficientCollateral = -32023
	codeInsufficientFunds      = -32024
	codeLoanNotFound           = -32025
	codeRepaymentTooHigh       = -32026
	codeLoanNotUnderwater      = -32027
	codeArithmeticOverflow     = -32028
	codePriceUnavailable       = -32029
	codeTransferFailed         = -32030
	codeActionPaused           = -32031
)

// ModuleError couples a JSON-RPC error code with the HTTP status the server
// should answer with.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

// LendingModule adapts the ledger engine to the RPC surface: it serializes
// operations through the state manager, records metrics, and maps engine
// sentinels onto wire error codes.
type LendingModule struct {
	state   *state.Manager
	engine  *lending.Engine
	metrics *observability.LedgerMetrics
	now     func() int64
}

// NewLendingModule wires the module around an engine and its state manager.
func NewLendingModule(st *state.Manager, engine *lending.Engine) *LendingModule {
	return &LendingModule{
		state:   st,
		engine:  engine,
		metrics: observability.Metrics(),
		now:     func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the operation timestamp source.
func (m *LendingModule) SetClock(now func() int64) {
	if m == nil || now == nil {
		return
	}
	m.now = now
}

func (m *LendingModule) unavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "lending module not available"}
}

func (m *LendingModule) wrapError(err error) *ModuleError {
	switch {
	case errors.Is(err, lending.ErrInvalidLTV):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidLTV, Message: err.Error()}
	case errors.Is(err, lending.ErrMaxLoansReached):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeMaxLoansReached, Message: err.Error()}
	case errors.Is(err, lending.ErrInsufficientCollateral):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeInsufficientCollateral, Message: err.Error()}
	case errors.Is(err, lending.ErrInsufficientFunds):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeInsufficientFunds, Message: err.Error()}
	case errors.Is(err, lending.ErrLoanNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeLoanNotFound, Message: err.Error()}
	case errors.Is(err, lending.ErrRepaymentAmountTooHigh):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeRepaymentTooHigh, Message: err.Error()}
	case errors.Is(err, lending.ErrLoanNotUnderwater):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeLoanNotUnderwater, Message: err.Error()}
	case errors.Is(err, lending.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, lending.ErrArithmeticOverflow):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeArithmeticOverflow, Message: err.Error()}
	case errors.Is(err, lending.ErrPriceUnavailable):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codePriceUnavailable, Message: err.Error()}
	case errors.Is(err, lending.ErrTransferFailed):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeTransferFailed, Message: err.Error()}
	case errors.Is(err, lending.ErrInvalidAmount):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrActionPaused):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeActionPaused, Message: err.Error()}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}

// OriginateResult is the wire result for a successful origination.
type OriginateResult struct {
	Loan   *lending.Loan  `json:"loan"`
	Events []*types.Event `json:"events"`
}

func (m *LendingModule) Originate(owner crypto.Address, amount, ltv uint64) (*OriginateResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	start := time.Now()
	var result *OriginateResult
	err := m.state.Do(func() error {
		loan, evs, err := m.engine.Originate(owner, amount, ltv, m.now())
		if err != nil {
			return err
		}
		result = &OriginateResult{Loan: loan, Events: evs}
		return nil
	})
	m.metrics.Observe(lending.ActionOriginate, start, err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return result, nil
}

func (m *LendingModule) Repay(owner crypto.Address, loanID, amount uint64) (*lending.RepaymentResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	start := time.Now()
	var result *lending.RepaymentResult
	err := m.state.Do(func() error {
		res, err := m.engine.Repay(owner, loanID, amount, m.now())
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	m.metrics.Observe(lending.ActionRepay, start, err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return result, nil
}

func (m *LendingModule) Liquidate(liquidator, borrower crypto.Address, loanID uint64) (*lending.LiquidationResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	start := time.Now()
	var result *lending.LiquidationResult
	err := m.state.Do(func() error {
		res, err := m.engine.Liquidate(liquidator, borrower, loanID, m.now())
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	m.metrics.Observe(lending.ActionLiquidate, start, err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return result, nil
}

// BalanceChangeResult is the wire result for deposits and withdrawals.
type BalanceChangeResult struct {
	Events []*types.Event `json:"events"`
}

func (m *LendingModule) Deposit(owner crypto.Address, amount uint64) (*BalanceChangeResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	start := time.Now()
	var evs []*types.Event
	err := m.state.Do(func() error {
		out, err := m.engine.DepositCollateral(owner, amount)
		if err != nil {
			return err
		}
		evs = out
		return nil
	})
	m.metrics.Observe(lending.ActionDeposit, start, err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &BalanceChangeResult{Events: evs}, nil
}

func (m *LendingModule) Withdraw(owner crypto.Address, amount uint64) (*BalanceChangeResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	start := time.Now()
	var evs []*types.Event
	err := m.state.Do(func() error {
		out, err := m.engine.WithdrawCollateral(owner, amount)
		if err != nil {
			return err
		}
		evs = out
		return nil
	})
	m.metrics.Observe(lending.ActionWithdraw, start, err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &BalanceChangeResult{Events: evs}, nil
}

// GetPosition returns the owner's position; owners with no history get an
// empty position.
func (m *LendingModule) GetPosition(owner crypto.Address) (*lending.UserPosition, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.unavailable()
	}
	var pos *lending.UserPosition
	err := m.state.Do(func() error {
		p, err := m.engine.Position(owner)
		if err != nil {
			return err
		}
		pos = p
		return nil
	})
	if err != nil {
		return nil, m.wrapError(err)
	}
	return pos, nil
}

// Tiers exposes the admissible LTV/APY pairs.
func (m *LendingModule) Tiers() []lending.Tier {
	return lending.Tiers()
}
