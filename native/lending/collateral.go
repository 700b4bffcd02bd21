package lending

// RequiredCollateral sizes the collateral a loan must lock for the requested
// debt amount at the given tier ratio and oracle price:
//
//	collateral = debt * 100 / ltv * PriceScale / price
//
// Multiply-before-divide ordering is load-bearing: dividing first truncates
// differently. The ltv is assumed to be tier-validated already; a zero ratio
// or price still fails as an arithmetic error rather than dividing by zero.
func RequiredCollateral(debtAmount, ltvRatio, price uint64) (uint64, error) {
	v, err := checkedMul(debtAmount, 100)
	if err != nil {
		return 0, err
	}
	v, err = checkedDiv(v, ltvRatio)
	if err != nil {
		return 0, err
	}
	v, err = checkedMul(v, PriceScale)
	if err != nil {
		return 0, err
	}
	return checkedDiv(v, price)
}

// CollateralValue prices locked collateral in debt-asset units:
//
//	value = collateral * price / PriceScale
func CollateralValue(collateral, price uint64) (uint64, error) {
	v, err := checkedMul(collateral, price)
	if err != nil {
		return 0, err
	}
	return checkedDiv(v, PriceScale)
}
