package service

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Property: for any token decimal count in 0..18, shifting a balance into
// its smallest-unit representation and back recovers the quantity exactly.
func TestRawAmountRoundTripExact(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quantity = raw / 10^decimals exactly", prop.ForAll(
		func(units int64, fraction int64, decimals int32) bool {
			// Build a balance with at most `decimals` fractional digits
			frac := decimal.NewFromInt(fraction)
			if decimals > 0 {
				frac = frac.Mod(decimal.NewFromInt(10).Pow(decimal.NewFromInt32(decimals)))
			} else {
				frac = decimal.Zero
			}
			balance := decimal.NewFromInt(units).Add(frac.Shift(-decimals))

			raw, err := NormalizeRawAmount(balance.String(), decimals)
			if err != nil {
				return false
			}
			// Raw amounts are integral smallest units
			if !raw.Equal(raw.Truncate(0)) {
				return false
			}
			return raw.Shift(-decimals).Equal(balance)
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 1_000_000_000_000_000_000),
		gen.Int32Range(0, 18),
	))

	properties.TestingRun(t)
}
