package lending

import "time"

// PriceQuote is a spot price for the collateral asset denominated in debt
// units at the quote's fixed-point scale.
type PriceQuote struct {
	Price     uint64
	Scale     uint64
	Timestamp time.Time
	Source    string
}

// PriceOracle resolves the current collateral price. Implementations signal
// unavailable, stale or malformed feeds with ErrPriceUnavailable; the engine
// aborts the enclosing operation on any oracle failure.
type PriceOracle interface {
	CollateralPrice() (PriceQuote, error)
}

// validateQuote rejects quotes the sizing math cannot consume. The ledger's
// collateral formulas are fixed to PriceScale; a feed publishing another
// scale is treated as unavailable rather than rescaled lossily.
func validateQuote(q PriceQuote) error {
	if q.Price == 0 || q.Scale != PriceScale {
		return ErrPriceUnavailable
	}
	return nil
}
