package core

// Well-known token registry. The native token carries a fixed textual
// address whose first 32 bytes double as its display address, so wallets
// can name it without a base-58 round trip.

import "math/big"

// NativeToken is the textual address of the chain's native currency.
const NativeToken = "cesium111111111111111111111111111111111111111111111111111111111111"

// NativeDecimals is the display precision of the native token.
const NativeDecimals uint8 = 12

// BaseTxFeeUnits is the flat per-transaction charge deducted from the
// provided gas before any instruction executes.
const BaseTxFeeUnits = 1000

// BaseTxFee returns the flat per-transaction fee.
func BaseTxFee() *big.Int {
	return big.NewInt(BaseTxFeeUnits)
}

// StandardToken describes one entry of the reserved token registry.
type StandardToken struct {
	Address   string
	ShortName string
	Decimals  uint8
}

var standardTokens = []StandardToken{
	{Address: NativeToken, ShortName: "cesium", Decimals: NativeDecimals},
	{Address: "wbtc11111111111111111111111111111111111111111111111111111111111111", ShortName: "wbtc", Decimals: 8},
	{Address: "weth11111111111111111111111111111111111111111111111111111111111111", ShortName: "weth", Decimals: 18},
	{Address: "mer111111111111111111111111111111111111111111111111111111111111111", ShortName: "mer", Decimals: 18},
}

var (
	tokensByAddress   = map[string]StandardToken{}
	tokensByShortName = map[string]StandardToken{}
)

func init() {
	for _, t := range standardTokens {
		tokensByAddress[t.Address] = t
		tokensByShortName[t.ShortName] = t
	}
}

// DA returns the 32-byte display address of a standard token: the leading
// 32 bytes of its textual address.
func (t StandardToken) DA() []byte {
	return []byte(t.Address)[:DALen]
}

// NativeTokenDA returns the display address of the native token.
func NativeTokenDA() DABytes {
	var d DABytes
	copy(d[:], NativeToken)
	return d
}

// IsStandardToken reports whether the textual address names a reserved
// token.
func IsStandardToken(address string) bool {
	_, ok := tokensByAddress[address]
	return ok
}

// StandardTokenFromAddress looks a token up by its textual address.
func StandardTokenFromAddress(address string) (StandardToken, bool) {
	t, ok := tokensByAddress[address]
	return t, ok
}

// StandardTokenFromShortName looks a token up by its short name.
func StandardTokenFromShortName(name string) (StandardToken, bool) {
	t, ok := tokensByShortName[name]
	return t, ok
}
