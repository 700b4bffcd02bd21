package lending

import (
	"errors"
	"testing"
)

// A persist failure after the transfers must surface and leave the stored
// position exactly as it was.

func TestOriginatePersistFailureKeepsStoredPosition(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x61)
	fx.fund(t, owner, 10_000_000)

	fx.state.putErr = errors.New("disk full")
	if _, _, err := fx.engine.Originate(owner, 1_000_000, 25, 1); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	pos := fx.state.mustPosition(t, owner)
	if pos.LoanCount != 0 || len(pos.Loans) != 0 || pos.DebtAssetBalance != 0 {
		t.Fatalf("failed persist mutated the stored position: %+v", pos)
	}
}

func TestRepayPersistFailureKeepsStoredPosition(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x62)
	fx.fund(t, owner, 10_000_000)
	loan := originateTestLoan(t, fx, owner, 1_000_000, 25, 1)

	fx.state.putErr = errors.New("disk full")
	if _, err := fx.engine.Repay(owner, loan.ID, 1_000_000, 1); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	pos := fx.state.mustPosition(t, owner)
	if len(pos.Loans) != 1 || pos.Loans[0].Principal != 1_000_000 || pos.DebtAssetBalance != 1_000_000 {
		t.Fatalf("failed persist mutated the stored position: %+v", pos)
	}
}

func TestDepositPersistFailureKeepsStoredPosition(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x63)
	fx.fund(t, owner, 500)

	fx.state.putErr = errors.New("disk full")
	if _, err := fx.engine.DepositCollateral(owner, 1_000); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	pos := fx.state.mustPosition(t, owner)
	if pos.CollateralBalance != 500 {
		t.Fatalf("collateral balance = %d, want untouched 500", pos.CollateralBalance)
	}
}

func TestLiquidateSecondTransferFailureKeepsLoanOpen(t *testing.T) {
	fx := newEngineFixture(t)
	owner := testAddr(t, 0x64)
	liquidator := testAddr(t, 0x65)
	fx.fund(t, owner, 10_000_000)
	loan := originateTestLoan(t, fx, owner, 1_000_000, 50, 1)

	fx.oracle.quote = quoteAt(7_000)

	// The debt leg succeeds, the collateral payout fails.
	fx.gateway.calls = 0
	fx.gateway.failOnCall = 2
	if _, err := fx.engine.Liquidate(liquidator, owner, loan.ID, 1); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	pos := fx.state.mustPosition(t, owner)
	if len(pos.Loans) != 1 || pos.DebtAssetBalance != 1_000_000 {
		t.Fatalf("failed liquidation mutated the stored position: %+v", pos)
	}
	if pos.CollateralBalance != 10_000_000 {
		t.Fatalf("collateral balance = %d, want untouched 10000000", pos.CollateralBalance)
	}
}
