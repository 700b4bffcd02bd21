package lending

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"solsavings/crypto"
)

func testAddr(t *testing.T, fill byte) crypto.Address {
	t.Helper()
	raw := bytes.Repeat([]byte{fill}, crypto.AddressLength)
	addr, err := crypto.NewAddress(crypto.SavPrefix, raw)
	if err != nil {
		t.Fatalf("build address: %v", err)
	}
	return addr
}

type mockState struct {
	positions map[string]*UserPosition
	putErr    error
	puts      int
}

func newMockState() *mockState {
	return &mockState{positions: make(map[string]*UserPosition)}
}

func (m *mockState) GetPosition(addr crypto.Address) (*UserPosition, error) {
	pos, ok := m.positions[addr.String()]
	if !ok {
		return nil, nil
	}
	return pos.Clone(), nil
}

func (m *mockState) PutPosition(pos *UserPosition) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.positions[pos.Owner.String()] = pos.Clone()
	return nil
}

func (m *mockState) mustPosition(t *testing.T, addr crypto.Address) *UserPosition {
	t.Helper()
	pos, ok := m.positions[addr.String()]
	if !ok {
		t.Fatalf("no stored position for %s", addr)
	}
	return pos
}

type transferRecord struct {
	Asset  Asset
	From   crypto.Address
	To     crypto.Address
	Amount uint64
}

type recordingGateway struct {
	transfers []transferRecord
	err       error
	// failOnCall makes the n-th Transfer call fail (1-based); 0 disables.
	failOnCall int
	calls      int
}

func (g *recordingGateway) Transfer(asset Asset, from, to crypto.Address, amount uint64) error {
	g.calls++
	if g.err != nil {
		return g.err
	}
	if g.failOnCall != 0 && g.calls == g.failOnCall {
		return errors.New("gateway: transfer rejected")
	}
	g.transfers = append(g.transfers, transferRecord{Asset: asset, From: from, To: to, Amount: amount})
	return nil
}

type quoteOracle struct {
	quote PriceQuote
	err   error
}

func (o *quoteOracle) CollateralPrice() (PriceQuote, error) {
	if o.err != nil {
		return PriceQuote{}, o.err
	}
	return o.quote, nil
}

func quoteAt(price uint64) PriceQuote {
	return PriceQuote{Price: price, Scale: PriceScale, Timestamp: time.Unix(1_700_000_000, 0), Source: "test"}
}

type engineFixture struct {
	engine  *Engine
	state   *mockState
	gateway *recordingGateway
	oracle  *quoteOracle

	usdcVault       crypto.Address
	collateralVault crypto.Address
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	fx := &engineFixture{
		state:           newMockState(),
		gateway:         &recordingGateway{},
		oracle:          &quoteOracle{quote: quoteAt(15_000)},
		usdcVault:       testAddr(t, 0xAA),
		collateralVault: testAddr(t, 0xBB),
	}
	fx.engine = NewEngine(fx.usdcVault, fx.collateralVault)
	fx.engine.SetState(fx.state)
	fx.engine.SetTransferGateway(fx.gateway)
	fx.engine.SetOracle(fx.oracle)
	return fx
}

// fund stores a position holding the given custodied collateral.
func (fx *engineFixture) fund(t *testing.T, owner crypto.Address, collateral uint64) {
	t.Helper()
	fx.state.positions[owner.String()] = &UserPosition{Owner: owner, CollateralBalance: collateral}
}
