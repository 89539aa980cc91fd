package market

import (
	"math/big"
	"testing"
)

func TestRoundingDirections(t *testing.T) {
	cases := []struct {
		in                 *big.Rat
		floor, ceil, round int64
	}{
		{big.NewRat(7, 2), 3, 4, 4},
		{big.NewRat(5, 2), 2, 3, 3},
		{big.NewRat(9, 4), 2, 3, 2},
		{big.NewRat(3, 1), 3, 3, 3},
		{big.NewRat(-7, 2), -4, -3, -4},
		{new(big.Rat), 0, 0, 0},
	}
	for _, tc := range cases {
		if got := ratFloor(tc.in); got.Int64() != tc.floor {
			t.Fatalf("floor(%s) = %s, want %d", tc.in.RatString(), got, tc.floor)
		}
		if got := ratCeil(tc.in); got.Int64() != tc.ceil {
			t.Fatalf("ceil(%s) = %s, want %d", tc.in.RatString(), got, tc.ceil)
		}
		if got := ratRound(tc.in); got.Int64() != tc.round {
			t.Fatalf("round(%s) = %s, want %d", tc.in.RatString(), got, tc.round)
		}
	}
	if got := ratFloor(nil); got.Sign() != 0 {
		t.Fatalf("floor(nil) = %s", got)
	}
}

func TestPriceFixedPointConversion(t *testing.T) {
	for _, price := range []*big.Rat{
		big.NewRat(1, 1),
		big.NewRat(3, 2),
		big.NewRat(1, 4096),
		big.NewRat(1_000_000, 1),
	} {
		fixed := priceToFixed(price)
		back := priceFromFixed(fixed)
		// Conversion truncates below 2^-32; these inputs are exact.
		if back.Cmp(price) != 0 {
			t.Fatalf("price %s round-tripped to %s", price.RatString(), back.RatString())
		}
	}

	// Denominators that do not divide 2^32 truncate down by less than 2^-32.
	// The minimum price 1/10000 is one of them.
	for _, price := range []*big.Rat{
		big.NewRat(1, 3),
		big.NewRat(1, 10_000),
	} {
		back := priceFromFixed(priceToFixed(price))
		if back.Cmp(price) >= 0 {
			t.Fatalf("truncation must round down: %s became %s", price.RatString(), back.RatString())
		}
		diff := new(big.Rat).Sub(price, back)
		if diff.Cmp(new(big.Rat).SetFrac(big.NewInt(1), priceScale)) >= 0 {
			t.Fatalf("truncation error too large for %s: %s", price.RatString(), diff.RatString())
		}
	}
}

func TestRealValueAndGridFromValue(t *testing.T) {
	if got := realValue(grid(1000)); got.Cmp(big.NewRat(1000, 1)) != 0 {
		t.Fatalf("real value = %s", got.RatString())
	}
	if got := realValue(nil); got.Sign() != 0 {
		t.Fatalf("real value of nil = %s", got.RatString())
	}
	value := big.NewRat(25, 10_000) // 0.0025 GRID
	if got := gridFromValue(value, ratFloor); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("grid base units = %s", got)
	}
	odd := big.NewRat(1, 3)
	floorUnits := gridFromValue(odd, ratFloor)
	ceilUnits := gridFromValue(odd, ratCeil)
	if new(big.Int).Sub(ceilUnits, floorUnits).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("rounding bracket broken: %s vs %s", floorUnits, ceilUnits)
	}
}

func TestContentIDsAreFieldSensitive(t *testing.T) {
	owner := testAddr(1)
	amount := big.NewInt(100)
	a := billID(owner, amount, 1<<32, 1_700_000_000, "memo")
	b := billID(owner, amount, 1<<32, 1_700_000_000, "memo")
	if a != b {
		t.Fatalf("identical inputs produced different ids")
	}
	variants := []uint64{
		billID(testAddr(2), amount, 1<<32, 1_700_000_000, "memo"),
		billID(owner, big.NewInt(101), 1<<32, 1_700_000_000, "memo"),
		billID(owner, amount, 1<<33, 1_700_000_000, "memo"),
		billID(owner, amount, 1<<32, 1_700_000_001, "memo"),
		billID(owner, amount, 1<<32, 1_700_000_000, "other"),
	}
	for i, v := range variants {
		if v == a {
			t.Fatalf("variant %d collided with the base id", i)
		}
	}
}
