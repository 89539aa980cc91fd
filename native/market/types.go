package market

import (
	"math/big"

	"gridchain/crypto"
)

// Token identifiers used when talking to the balance ledger.
const (
	// TokenGRID is the reserve currency staked as collateral.
	TokenGRID = "GRID"
	// TokenPST is the proof-of-service token minted against collateral.
	TokenPST = "PST"
)

// Bill is a standing offer by a maker to sell service-proof inventory at a
// fixed price. Unmatched inventory is held in escrow by the engine until it is
// ordered, clawed back, or withdrawn.
type Bill struct {
	Owner  crypto.Address
	BillID uint64
	// Unmatched is the inventory still available to order.
	Unmatched *big.Int
	// Matched is the inventory already sold into orders.
	Matched *big.Int
	// Price is the offer price as a fixed-point integer scaled by 2^32.
	Price uint64
	// CreatedAt anchors the bonus-accrual window; UpdatedAt is the last
	// accrual checkpoint. Both are unix seconds.
	CreatedAt int64
	UpdatedAt int64
	ExpireOn  int64
	// DepositRatio multiplies the payment amount into the user deposit.
	DepositRatio uint64
}

// OrderState enumerates the lifecycle of an order. Only Waiting is produced by
// this engine; the delivery and settlement transitions belong to the
// challenge subsystem.
type OrderState uint8

const (
	OrderStateWaiting OrderState = iota
	OrderStateDelivering
	OrderStateSettled
	OrderStateCancelled
)

// Order is an accepted match between a user and a maker for part of a bill.
type Order struct {
	OrderID uint64
	User    crypto.Address
	Miner   crypto.Address
	BillID  uint64
	// UserPledge is the leftover reserve after payment and deposit.
	UserPledge *big.Int
	// MinerLockPST is the matched service-token quantity backing the order.
	MinerLockPST *big.Int
	// MinerLockGRID is the maker collateral earmarked for the order at the
	// pool's rate when the order was created.
	MinerLockGRID    *big.Int
	SettlementPledge *big.Int
	LockPledge       *big.Int
	// Price is the locked payment amount for the full order.
	Price            *big.Int
	State            OrderState
	DeliverStart     int64
	LatestSettlement int64
	MinerLockRSI     *big.Int
	MinerRSI         *big.Int
	UserRSI          *big.Int
	Deposit          *big.Int
	DepositValid     int64
	CancelDate       int64
}

// ChallengeState enumerates merkle-proof verification states. The engine only
// ever creates challenges in the Prepare state.
type ChallengeState uint8

const (
	ChallengePrepare ChallengeState = iota
	ChallengeConsistent
	ChallengeRequest
	ChallengeAnswer
	ChallengeArbitration
	ChallengeTimeout
)

// Challenge is the merkle-proof verification record created atomically with
// every order.
type Challenge struct {
	OrderID           uint64
	PreMerkleRoot     [32]byte
	PreDataBlockCount uint64
	MerkleSubmitter   crypto.Address
	ChallengeTimes    uint32
	State             ChallengeState
	UserLock          *big.Int
	MinerPay          *big.Int
}

// Maker is the collateral pool backing one miner's minted service tokens.
type Maker struct {
	Miner crypto.Address
	// CurrentRate is staked real value divided by the miner's minted amount.
	// It is always recomputed from those inputs, never adjusted in place.
	CurrentRate *big.Rat
	// MinerRate is the miner's self-set minimum ownership fraction.
	MinerRate *big.Rat
	// TotalWeight is the sum of all pool share weights.
	TotalWeight *big.Rat
	// TotalStaked is the pooled collateral in GRID base units.
	TotalStaked *big.Int
	// BenchmarkStakeRate is the pool's minimum acceptable rate, stored as a
	// percentage times 100 and resolved against the oracle average.
	BenchmarkStakeRate uint64
	// RateUpdatedAt is the unix time of the last benchmark change, zero when
	// the benchmark has never been changed.
	RateUpdatedAt int64
}

// PoolShare is one staker's proportional claim within a maker pool. Weights
// are absolute; the ownership fraction is Weight / Maker.TotalWeight.
type PoolShare struct {
	Owner  crypto.Address
	Weight *big.Rat
}

// PSTStats is the per-owner minted-amount ledger consulted when computing the
// collateralization rate. It grows on mint and shrinks on liquidation.
type PSTStats struct {
	Owner  crypto.Address
	Amount *big.Int
}

// PriceSample is one trade price inside the oracle's trailing window.
type PriceSample struct {
	Seq       uint64
	BillID    uint64
	Price     *big.Rat
	CreatedAt int64
}

// PriceAverage is the single aggregate record kept incrementally consistent
// with the sample window.
type PriceAverage struct {
	Total *big.Rat
	Count uint64
	Avg   *big.Rat
}
