package lending

import "errors"

// Every operation fails with exactly one of these sentinels (possibly
// wrapped); callers dispatch with errors.Is.
var (
	ErrInvalidLTV             = errors.New("lending engine: invalid ltv ratio")
	ErrMaxLoansReached        = errors.New("lending engine: maximum loans reached for user")
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral for loan")
	ErrInsufficientFunds      = errors.New("lending engine: insufficient funds for withdrawal")
	ErrLoanNotFound           = errors.New("lending engine: loan not found")
	ErrRepaymentAmountTooHigh = errors.New("lending engine: repayment amount exceeds balance owed")
	ErrLoanNotUnderwater      = errors.New("lending engine: loan is not underwater")
	ErrUnauthorized           = errors.New("lending engine: unauthorized access")
	ErrArithmeticOverflow     = errors.New("lending engine: arithmetic overflow")
	ErrPriceUnavailable       = errors.New("lending engine: price unavailable")
	ErrTransferFailed         = errors.New("lending engine: asset transfer failed")
	ErrInvalidAmount          = errors.New("lending engine: amount must be positive")
	ErrNilState               = errors.New("lending engine: state not configured")
)
