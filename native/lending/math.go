package lending

import "math/bits"

// Amounts are u64 and every step of a formula is individually checked, so the
// ledger reproduces the exact truncation order of the persisted contract. An
// intermediate that no longer fits u64 is an error, never a widened value.

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow
	}
	return diff, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

func checkedDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrArithmeticOverflow
	}
	return a / b, nil
}
