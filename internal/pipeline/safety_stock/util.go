package safety_stock

import (
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// ceilNonNegative rounds v up and floors the result at zero.
func ceilNonNegative(v float64) float64 {
	return math.Max(0, math.Ceil(v))
}

// roundNonNegative rounds half to even and floors the result at zero.
func roundNonNegative(v float64) int {
	return int(math.Max(0, math.RoundToEven(v)))
}

// formatFixed renders v with the given number of decimals the way printf's
// %.Nf does, e.g. 1.6449 -> "1.64" and 1.005 -> "1.00".
// Non-finite values are written as empty cells.
func formatFixed(v float64, decimals int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return exactDecimal(v).RoundBank(decimals).StringFixed(decimals)
}

// exactDecimal is the exact value of the binary float v. decimal.NewFromFloat
// starts from the shortest round-tripping string instead, which rounds
// 2.675 (stored as 2.67499999...) up.
func exactDecimal(v float64) decimal.Decimal {
	frac, exp := math.Frexp(v)
	mant := big.NewInt(int64(frac * (1 << 53)))
	shift := exp - 53

	if shift >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(shift)), 0)
	}
	// m * 2^-k == m * 5^k * 10^-k
	k := int64(-shift)
	mant.Mul(mant, new(big.Int).Exp(big.NewInt(5), big.NewInt(k), nil))
	return decimal.NewFromBigInt(mant, int32(-k))
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}
