package lending

import (
	"fmt"
	"sort"
)

const (
	// MaxLoansPerUser bounds the number of concurrently open loans per
	// position.
	MaxLoansPerUser = 5
	// SecondsPerYear is the accrual denominator: 365 days.
	SecondsPerYear = 31_536_000
	// PriceScale is the fixed-point scale of oracle quotes; a quote of
	// 15_000 with this scale prices one collateral unit at 1.5 debt units.
	PriceScale = 10_000
)

// Tier pairs an admissible loan-to-value ratio with the fixed annual rate
// charged for it. Both values are whole percentage points.
type Tier struct {
	LTV uint64 `json:"ltv"`
	APY uint64 `json:"apy"`
}

// loanTiers is the closed ltv -> apy table. Membership here is the only LTV
// validation performed per call; the table itself is checked once at init.
var loanTiers = map[uint64]uint64{
	20: 0,
	25: 1,
	33: 5,
	50: 8,
}

func init() {
	if err := validateTiers(loanTiers); err != nil {
		panic(err)
	}
}

func validateTiers(tiers map[uint64]uint64) error {
	if len(tiers) == 0 {
		return fmt.Errorf("lending: tier table must not be empty")
	}
	for ltv, apy := range tiers {
		if ltv == 0 || ltv > 100 {
			return fmt.Errorf("lending: tier ltv %d out of range", ltv)
		}
		if apy > 100 {
			return fmt.Errorf("lending: tier apy %d out of range", apy)
		}
	}
	return nil
}

// APYForLTV resolves the fixed annual rate for the requested ratio. Ratios
// outside the tier table fail with ErrInvalidLTV.
func APYForLTV(ltv uint64) (uint64, error) {
	apy, ok := loanTiers[ltv]
	if !ok {
		return 0, ErrInvalidLTV
	}
	return apy, nil
}

// Tiers returns the admissible tiers sorted by ascending LTV.
func Tiers() []Tier {
	out := make([]Tier, 0, len(loanTiers))
	for ltv, apy := range loanTiers {
		out = append(out, Tier{LTV: ltv, APY: apy})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LTV < out[j].LTV })
	return out
}
