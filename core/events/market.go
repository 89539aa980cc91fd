package events

import (
	"math/big"
	"strconv"

	"gridchain/core/types"
	"gridchain/crypto"
)

const (
	// TypeBillRecorded is emitted when a maker posts service inventory for sale.
	TypeBillRecorded = "market.bill.recorded"
	// TypeBillRemoved is emitted when a maker withdraws the unmatched remainder
	// of a bill.
	TypeBillRemoved = "market.bill.removed"
	// TypeBillClawback captures unmatched inventory seized during liquidation.
	TypeBillClawback = "market.bill.clawback"
	// TypeOrderCreated is emitted when a bill is matched into a live order.
	TypeOrderCreated = "market.order.created"
	// TypeOrderReceipt records the leftover reserve remitted to the user as
	// pledge when an order is created.
	TypeOrderReceipt = "market.order.receipt"
	// TypeChallengeCreated is emitted for the challenge record paired with a
	// new order.
	TypeChallengeCreated = "market.challenge.created"
	// TypeMakerStaked captures collateral added to a maker pool.
	TypeMakerStaked = "market.maker.staked"
	// TypeMakerRedeemed captures collateral withdrawn from a maker pool.
	TypeMakerRedeemed = "market.maker.redeemed"
	// TypeMakerIncentive captures time-weighted bonus issuance into a pool.
	TypeMakerIncentive = "market.maker.incentive"
	// TypeMakerLiquidated summarises a pool liquidation: clawed-back service
	// tokens plus the collateral penalty seized into the reserve account.
	TypeMakerLiquidated = "market.maker.liquidated"
)

// BillRecorded captures a newly posted bill.
type BillRecorded struct {
	Owner  crypto.Address
	BillID uint64
	Amount *big.Int
	Price  uint64
}

// EventType satisfies the Event interface.
func (BillRecorded) EventType() string { return TypeBillRecorded }

// Event converts the structured payload into a broadcastable event.
func (e BillRecorded) Event() *types.Event {
	return &types.Event{Type: TypeBillRecorded, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"billId": strconv.FormatUint(e.BillID, 10),
		"amount": formatAmount(e.Amount),
		"price":  strconv.FormatUint(e.Price, 10),
	}}
}

// BillRemoved captures the withdrawal of a bill's unmatched inventory.
type BillRemoved struct {
	Owner    crypto.Address
	BillID   uint64
	Returned *big.Int
}

func (BillRemoved) EventType() string { return TypeBillRemoved }

func (e BillRemoved) Event() *types.Event {
	return &types.Event{Type: TypeBillRemoved, Attributes: map[string]string{
		"owner":    e.Owner.String(),
		"billId":   strconv.FormatUint(e.BillID, 10),
		"returned": formatAmount(e.Returned),
	}}
}

// BillClawback captures inventory seized from one bill during liquidation.
type BillClawback struct {
	Miner  crypto.Address
	BillID uint64
	Amount *big.Int
}

func (BillClawback) EventType() string { return TypeBillClawback }

func (e BillClawback) Event() *types.Event {
	return &types.Event{Type: TypeBillClawback, Attributes: map[string]string{
		"miner":  e.Miner.String(),
		"billId": strconv.FormatUint(e.BillID, 10),
		"amount": formatAmount(e.Amount),
	}}
}

// OrderCreated captures the creation of an order against a bill.
type OrderCreated struct {
	OrderID   uint64
	User      crypto.Address
	Miner     crypto.Address
	BillID    uint64
	Amount    *big.Int
	Payment   *big.Int
	Deposit   *big.Int
	MinerLock *big.Int
}

func (OrderCreated) EventType() string { return TypeOrderCreated }

func (e OrderCreated) Event() *types.Event {
	return &types.Event{Type: TypeOrderCreated, Attributes: map[string]string{
		"orderId":   strconv.FormatUint(e.OrderID, 10),
		"user":      e.User.String(),
		"miner":     e.Miner.String(),
		"billId":    strconv.FormatUint(e.BillID, 10),
		"amount":    formatAmount(e.Amount),
		"payment":   formatAmount(e.Payment),
		"deposit":   formatAmount(e.Deposit),
		"minerLock": formatAmount(e.MinerLock),
	}}
}

// OrderReceipt records reserve remitted to the user as pledge on creation.
type OrderReceipt struct {
	OrderID uint64
	User    crypto.Address
	Pledge  *big.Int
}

func (OrderReceipt) EventType() string { return TypeOrderReceipt }

func (e OrderReceipt) Event() *types.Event {
	return &types.Event{Type: TypeOrderReceipt, Attributes: map[string]string{
		"orderId": strconv.FormatUint(e.OrderID, 10),
		"user":    e.User.String(),
		"pledge":  formatAmount(e.Pledge),
	}}
}

// ChallengeCreated is emitted alongside every new order.
type ChallengeCreated struct {
	OrderID uint64
}

func (ChallengeCreated) EventType() string { return TypeChallengeCreated }

func (e ChallengeCreated) Event() *types.Event {
	return &types.Event{Type: TypeChallengeCreated, Attributes: map[string]string{
		"orderId": strconv.FormatUint(e.OrderID, 10),
	}}
}

// MakerStaked captures a collateral deposit into a maker pool.
type MakerStaked struct {
	Owner  crypto.Address
	Miner  crypto.Address
	Amount *big.Int
}

func (MakerStaked) EventType() string { return TypeMakerStaked }

func (e MakerStaked) Event() *types.Event {
	return &types.Event{Type: TypeMakerStaked, Attributes: map[string]string{
		"owner":  e.Owner.String(),
		"miner":  e.Miner.String(),
		"amount": formatAmount(e.Amount),
	}}
}

// MakerRedeemed captures a withdrawal of staked collateral. The payout is a
// delayed locked credit, UnlockTime carries its maturity.
type MakerRedeemed struct {
	Owner      crypto.Address
	Miner      crypto.Address
	Amount     *big.Int
	UnlockTime int64
}

func (MakerRedeemed) EventType() string { return TypeMakerRedeemed }

func (e MakerRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeMakerRedeemed, Attributes: map[string]string{
		"owner":      e.Owner.String(),
		"miner":      e.Miner.String(),
		"amount":     formatAmount(e.Amount),
		"unlockTime": strconv.FormatInt(e.UnlockTime, 10),
	}}
}

// MakerIncentive captures bonus collateral accrued into a pool from a bill's
// unsold capacity.
type MakerIncentive struct {
	Miner  crypto.Address
	BillID uint64
	Amount *big.Int
}

func (MakerIncentive) EventType() string { return TypeMakerIncentive }

func (e MakerIncentive) Event() *types.Event {
	return &types.Event{Type: TypeMakerIncentive, Attributes: map[string]string{
		"miner":  e.Miner.String(),
		"billId": strconv.FormatUint(e.BillID, 10),
		"amount": formatAmount(e.Amount),
	}}
}

// MakerLiquidated summarises one liquidated pool.
type MakerLiquidated struct {
	Miner   crypto.Address
	PST     *big.Int
	Penalty *big.Int
}

func (MakerLiquidated) EventType() string { return TypeMakerLiquidated }

func (e MakerLiquidated) Event() *types.Event {
	return &types.Event{Type: TypeMakerLiquidated, Attributes: map[string]string{
		"miner":   e.Miner.String(),
		"pst":     formatAmount(e.PST),
		"penalty": formatAmount(e.Penalty),
	}}
}
