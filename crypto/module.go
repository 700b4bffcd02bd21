package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// moduleAddressDomain separates derived vault addresses from any address a
// keyholder could produce.
const moduleAddressDomain = "solsavings/module/"

// ModuleAddress derives the deterministic keyless address for a named ledger
// vault. No private key maps to a derived address, so vault funds move only
// through ledger operations.
func ModuleAddress(name string) Address {
	digest := ethcrypto.Keccak256([]byte(moduleAddressDomain + name))
	return MustNewAddress(SavPrefix, digest[len(digest)-AddressLength:])
}
