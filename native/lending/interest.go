package lending

// AccruedInterest computes the simple interest owed on a principal between
// startDate and now at a fixed annual rate:
//
//	interest = principal * apy * elapsed / (SecondsPerYear * 100)
//
// The divisions are applied in that order so truncation matches the persisted
// contract exactly. A clock running behind the loan's start date fails with
// ErrArithmeticOverflow rather than producing negative interest.
func AccruedInterest(principal, apyPercent uint64, startDate, now int64) (uint64, error) {
	if now < startDate {
		return 0, ErrArithmeticOverflow
	}
	if principal == 0 || apyPercent == 0 {
		return 0, nil
	}
	elapsed := uint64(now - startDate)
	v, err := checkedMul(principal, apyPercent)
	if err != nil {
		return 0, err
	}
	v, err = checkedMul(v, elapsed)
	if err != nil {
		return 0, err
	}
	v, err = checkedDiv(v, SecondsPerYear)
	if err != nil {
		return 0, err
	}
	return checkedDiv(v, 100)
}

// TotalOwed returns principal plus accrued interest, checked.
func TotalOwed(principal, apyPercent uint64, startDate, now int64) (uint64, error) {
	interest, err := AccruedInterest(principal, apyPercent, startDate, now)
	if err != nil {
		return 0, err
	}
	return checkedAdd(principal, interest)
}
