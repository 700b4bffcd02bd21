package lending

import (
	"errors"
	"testing"
)

func TestOriginateLocksCollateralAndReleasesDebt(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x01)
	fx.fund(t, owner, 3_000_000)

	now := int64(1_700_000_000)
	loan, evs, err := fx.engine.Originate(owner, 1_000_000, 25, now)
	if err != nil {
		t.Fatalf("originate: %v", err)
	}

	// debt*100/25 = 4_000_000 units of value, at 1.5 per collateral unit.
	if loan.Collateral != 2_666_666 {
		t.Fatalf("collateral = %d, want 2666666", loan.Collateral)
	}
	if loan.ID != 1 || loan.Principal != 1_000_000 || loan.APY != 1 || loan.LTV != 25 {
		t.Fatalf("unexpected loan %+v", loan)
	}
	if loan.StartDate != now {
		t.Fatalf("start date = %d, want %d", loan.StartDate, now)
	}

	pos := fx.state.mustPosition(t, owner)
	if pos.CollateralBalance != 3_000_000 {
		t.Fatalf("collateral balance = %d, want unchanged 3000000", pos.CollateralBalance)
	}
	if pos.DebtAssetBalance != 1_000_000 {
		t.Fatalf("debt balance = %d, want 1000000", pos.DebtAssetBalance)
	}
	if pos.LoanCount != 1 || len(pos.Loans) != 1 {
		t.Fatalf("loan bookkeeping off: count=%d len=%d", pos.LoanCount, len(pos.Loans))
	}
	free, err := pos.FreeCollateral()
	if err != nil {
		t.Fatalf("free collateral: %v", err)
	}
	if free != 3_000_000-2_666_666 {
		t.Fatalf("free collateral = %d, want %d", free, 3_000_000-2_666_666)
	}

	if len(fx.gateway.transfers) != 1 {
		t.Fatalf("expected one transfer, got %d", len(fx.gateway.transfers))
	}
	tr := fx.gateway.transfers[0]
	if tr.Asset != AssetUSDC || !tr.From.Equal(fx.usdcVault) || !tr.To.Equal(owner) || tr.Amount != 1_000_000 {
		t.Fatalf("unexpected transfer %+v", tr)
	}

	if len(evs) != 1 || evs[0].Type != "lending.loanCreated" {
		t.Fatalf("expected loanCreated event, got %+v", evs)
	}
}

func TestOriginateAssignsSequentialIDs(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x02)
	fx.fund(t, owner, 100_000_000)

	first, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1)
	if err != nil {
		t.Fatalf("first originate: %v", err)
	}
	second, _, err := fx.engine.Originate(owner, 2_000_000, 50, 2)
	if err != nil {
		t.Fatalf("second originate: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}

	pos := fx.state.mustPosition(t, owner)
	if pos.DebtAssetBalance != 3_000_000 {
		t.Fatalf("debt balance = %d, want 3000000", pos.DebtAssetBalance)
	}
}

func TestOriginateRejectsUnknownLTV(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x03)
	fx.fund(t, owner, 100_000_000)

	for _, ltv := range []uint64{0, 10, 30, 51, 100} {
		if _, _, err := fx.engine.Originate(owner, 1_000_000, ltv, 1); !errors.Is(err, ErrInvalidLTV) {
			t.Fatalf("ltv %d: err = %v, want ErrInvalidLTV", ltv, err)
		}
	}
	if len(fx.gateway.transfers) != 0 {
		t.Fatalf("rejected originations must not move funds")
	}
}

func TestOriginateEnforcesLoanLimit(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x04)
	fx.fund(t, owner, 1_000_000_000)

	for i := 0; i < MaxLoansPerUser; i++ {
		if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, int64(i)); err != nil {
			t.Fatalf("originate %d: %v", i, err)
		}
	}
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 99); !errors.Is(err, ErrMaxLoansReached) {
		t.Fatalf("err = %v, want ErrMaxLoansReached", err)
	}

	pos := fx.state.mustPosition(t, owner)
	if len(pos.Loans) != MaxLoansPerUser || pos.LoanCount != MaxLoansPerUser {
		t.Fatalf("limit breach changed state: len=%d count=%d", len(pos.Loans), pos.LoanCount)
	}
}

func TestOriginateRequiresFreeCollateral(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x05)
	// One unit below the 2_666_666 the loan needs.
	fx.fund(t, owner, 2_666_665)

	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("err = %v, want ErrInsufficientCollateral", err)
	}
	if len(fx.gateway.transfers) != 0 {
		t.Fatalf("rejected origination must not move funds")
	}
}

func TestOriginateCountsLockedCollateralAgainstNewLoans(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x06)
	// Enough for one loan but not two.
	fx.fund(t, owner, 4_000_000)

	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); err != nil {
		t.Fatalf("first originate: %v", err)
	}
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 2); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("err = %v, want ErrInsufficientCollateral", err)
	}
}

func TestOriginateSurfacesOracleFailures(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x07)
	fx.fund(t, owner, 100_000_000)

	fx.oracle.err = errors.New("feed offline")
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}

	fx.oracle.err = nil
	fx.oracle.quote = PriceQuote{Price: 15_000, Scale: 100}
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("mis-scaled quote: err = %v, want ErrPriceUnavailable", err)
	}
}

func TestOriginateLeavesStateUntouchedWhenTransferFails(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x08)
	fx.fund(t, owner, 100_000_000)

	fx.gateway.err = errors.New("vault unavailable")
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	pos := fx.state.mustPosition(t, owner)
	if pos.LoanCount != 0 || len(pos.Loans) != 0 || pos.DebtAssetBalance != 0 {
		t.Fatalf("failed origination mutated position: %+v", pos)
	}
}

func TestOriginateRejectsZeroAmount(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x09)
	fx.fund(t, owner, 100_000_000)

	if _, _, err := fx.engine.Originate(owner, 0, 25, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}
