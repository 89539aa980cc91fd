package market

import "math/big"

// Config store keys. Values set through SetConfig override the corresponding
// Params defaults for every subsequent operation.
const (
	// ConfigKeyServiceInterval is the minimum lead time, in seconds, between
	// now and a new bill's expiry.
	ConfigKeyServiceInterval = "serviceinter"
	// ConfigKeyOrderServiceEpoch is the minimum deposit validity horizon for
	// new orders, in seconds.
	ConfigKeyOrderServiceEpoch = "ordsrvepoch"
	// ConfigKeyClaimsInterval is the settlement claim interval consumed by the
	// challenge subsystem. The engine only validates it stays positive.
	ConfigKeyClaimsInterval = "claiminter"
	// ConfigKeyBillAccrualWindow bounds, in seconds since bill creation, how
	// long a bill keeps accruing bonus incentives.
	ConfigKeyBillAccrualWindow = "billinter"
	// ConfigKeyBenchmarkRate is the global default benchmark stake rate,
	// stored as a percentage times 100.
	ConfigKeyBenchmarkRate = "bmrate"
	// ConfigKeyPenaltyRate is the liquidation penalty percentage.
	ConfigKeyPenaltyRate = "penaltyrate"
	// ConfigKeyInitialPrice seeds benchmark-rate lookups before the oracle has
	// recorded any trades.
	ConfigKeyInitialPrice = "initprice"
)

// liquidationBatchSize bounds how many pools one Liquidate call may process.
const liquidationBatchSize = 20

// Params carries the hard-coded defaults for every tunable interval and rate.
// A Params value is read once per operation and never mutated mid-operation;
// config-store overrides are resolved against it at read time.
type Params struct {
	// ServiceInterval is the default minimum bill lifetime in seconds.
	ServiceInterval uint64
	// OrderServiceEpoch is the default minimum deposit validity in seconds.
	OrderServiceEpoch uint64
	// ClaimsInterval is the default settlement claim interval in seconds.
	ClaimsInterval uint64
	// BillAccrualWindow is the default bonus accrual window in seconds.
	BillAccrualWindow uint64
	// BenchmarkRate is the default global benchmark stake rate (pct * 100).
	BenchmarkRate uint64
	// PenaltyRate is the default liquidation penalty percentage.
	PenaltyRate uint64
	// InitialPrice is the default trade price assumed before any samples.
	InitialPrice uint64
	// IncentiveRate scales bonus accrual issuance.
	IncentiveRate *big.Rat
	// StaticWeight seeds TotalWeight when a miner bootstraps a pool.
	StaticWeight *big.Rat
	// MinStakeFraction is the anti-dust floor on a new stake's share of the
	// post-stake total weight.
	MinStakeFraction *big.Rat
	// MinRemainFraction is the floor on a share's post-redemption fraction.
	MinRemainFraction *big.Rat
	// RateChangeInterval is the benchmark-rate adjustment cool-down in seconds.
	RateChangeInterval uint64
	// RedeemLockDuration delays redemption payouts, in seconds.
	RedeemLockDuration uint64
	// PriceWindow is the oracle's trailing sample window in seconds.
	PriceWindow uint64
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{
		ServiceInterval:    7 * 24 * 3600,
		OrderServiceEpoch:  24 * 3600,
		ClaimsInterval:     24 * 3600,
		BillAccrualWindow:  30 * 24 * 3600,
		BenchmarkRate:      200, // 2.00x
		PenaltyRate:        10,
		InitialPrice:       1,
		IncentiveRate:      big.NewRat(1, 10),
		StaticWeight:       new(big.Rat).SetInt64(10_000),
		MinStakeFraction:   big.NewRat(1, 10_000),
		MinRemainFraction:  big.NewRat(1, 10_000),
		RateChangeInterval: 7 * 24 * 3600,
		RedeemLockDuration: 3 * 24 * 3600,
		PriceWindow:        24 * 3600,
	}
}

// Normalise fills zero fields with their defaults so partially specified
// configurations stay usable.
func (p Params) Normalise() Params {
	def := DefaultParams()
	if p.ServiceInterval == 0 {
		p.ServiceInterval = def.ServiceInterval
	}
	if p.OrderServiceEpoch == 0 {
		p.OrderServiceEpoch = def.OrderServiceEpoch
	}
	if p.ClaimsInterval == 0 {
		p.ClaimsInterval = def.ClaimsInterval
	}
	if p.BillAccrualWindow == 0 {
		p.BillAccrualWindow = def.BillAccrualWindow
	}
	if p.BenchmarkRate == 0 {
		p.BenchmarkRate = def.BenchmarkRate
	}
	if p.PenaltyRate == 0 {
		p.PenaltyRate = def.PenaltyRate
	}
	if p.InitialPrice == 0 {
		p.InitialPrice = def.InitialPrice
	}
	if p.IncentiveRate == nil || p.IncentiveRate.Sign() == 0 {
		p.IncentiveRate = def.IncentiveRate
	}
	if p.StaticWeight == nil || p.StaticWeight.Sign() == 0 {
		p.StaticWeight = def.StaticWeight
	}
	if p.MinStakeFraction == nil || p.MinStakeFraction.Sign() == 0 {
		p.MinStakeFraction = def.MinStakeFraction
	}
	if p.MinRemainFraction == nil || p.MinRemainFraction.Sign() == 0 {
		p.MinRemainFraction = def.MinRemainFraction
	}
	if p.RateChangeInterval == 0 {
		p.RateChangeInterval = def.RateChangeInterval
	}
	if p.RedeemLockDuration == 0 {
		p.RedeemLockDuration = def.RedeemLockDuration
	}
	if p.PriceWindow == 0 {
		p.PriceWindow = def.PriceWindow
	}
	return p
}
