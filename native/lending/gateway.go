package lending

import "solsavings/crypto"

// Asset names one of the two balances the gateway can move.
type Asset string

const (
	// AssetSOL is the collateral asset.
	AssetSOL Asset = "SOL"
	// AssetUSDC is the debt asset.
	AssetUSDC Asset = "USDC"
)

// TransferGateway moves asset balances between parties. Each call is a single
// logical movement, atomic with respect to the enclosing operation: a failed
// transfer leaves no partial balance change and aborts the operation. The
// engine never retries a transfer.
type TransferGateway interface {
	Transfer(asset Asset, from, to crypto.Address, amount uint64) error
}
