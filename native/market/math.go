package market

import (
	"math"
	"math/big"
)

// GRID amounts carry four decimal places in their base-unit representation;
// PST quantities are whole units; RSI, the incentive reward unit, carries
// eight. Prices are fixed-point integers scaled by 2^32.
var (
	gridUnit = big.NewInt(10_000)
	rsiUnit  = big.NewInt(100_000_000)
)

const priceScaleBits = 32

var priceScale = new(big.Int).Lsh(big.NewInt(1), priceScaleBits)

// rateInfinity is the sentinel rate for pools with no minted service tokens.
// An unminted pool can never be under-collateralized.
var rateInfinity = new(big.Rat).SetFrac(new(big.Int).SetUint64(math.MaxUint64), big.NewInt(1))

// realValue converts GRID base units into their real value.
func realValue(amount *big.Int) *big.Rat {
	if amount == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(new(big.Int).Set(amount), gridUnit)
}

// gridFromValue converts a real value into GRID base units, rounding with the
// supplied rounding function.
func gridFromValue(value *big.Rat, round func(*big.Rat) *big.Int) *big.Int {
	scaled := new(big.Rat).Mul(value, new(big.Rat).SetInt(gridUnit))
	return round(scaled)
}

// ratFloor rounds toward negative infinity. Withdrawal amounts always floor so
// rounding can never favour the depositor over the pool.
func ratFloor(r *big.Rat) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sign() < 0 && !r.IsInt() {
		out.Sub(out, big.NewInt(1))
	}
	return out
}

// ratCeil rounds toward positive infinity. Payments owed and penalties always
// round up so rounding can never leave the pool undercollected.
func ratCeil(r *big.Rat) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sign() > 0 && !r.IsInt() {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// ratRound rounds half away from zero.
func ratRound(r *big.Rat) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	num := new(big.Int).Lsh(new(big.Int).Abs(r.Num()), 1) // 2*|num|
	num.Add(num, r.Denom())
	out := new(big.Int).Quo(num, new(big.Int).Lsh(r.Denom(), 1))
	if r.Sign() < 0 {
		out.Neg(out)
	}
	return out
}

// priceToFixed converts a validated price into its 2^32-scaled fixed-point
// representation, truncating any excess precision.
func priceToFixed(price *big.Rat) uint64 {
	scaled := new(big.Rat).Mul(price, new(big.Rat).SetInt(priceScale))
	return ratFloor(scaled).Uint64()
}

// priceFromFixed restores the rational price from its fixed-point form.
func priceFromFixed(fixed uint64) *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(fixed), priceScale)
}

// ratMulInt multiplies a rational by an integer amount.
func ratMulInt(r *big.Rat, amount *big.Int) *big.Rat {
	if r == nil || amount == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Mul(r, new(big.Rat).SetInt(amount))
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
