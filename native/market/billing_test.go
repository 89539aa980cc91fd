package market

import (
	"errors"
	"math/big"
	"testing"

	coreevents "gridchain/core/events"
	"gridchain/crypto"
)

// setupMintedMaker bootstraps a pool with 2000 GRID staked and 1000 PST
// minted, leaving the pool exactly at the default 2x benchmark.
func setupMintedMaker(t *testing.T, env *testEnv, miner crypto.Address) {
	t.Helper()
	env.bootstrapMaker(t, miner, grid(2000))
	if err := env.engine.Mint(miner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func (env *testEnv) postBill(t *testing.T, miner crypto.Address, amount int64, depositRatio uint64) uint64 {
	t.Helper()
	expire := env.clock.now + 30*24*3600
	id, err := env.engine.Bill(miner, big.NewInt(amount), big.NewRat(1, 1), expire, depositRatio, "test bill")
	if err != nil {
		t.Fatalf("bill: %v", err)
	}
	return id
}

func TestBillEscrowsInventory(t *testing.T) {
	env := newTestEnv(t)
	miner := testAddr(1)
	setupMintedMaker(t, env, miner)

	id := env.postBill(t, miner, 100, 0)

	if bal := env.ledger.balance(miner, TokenPST); bal.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("pst balance = %s, want 900", bal)
	}
	bill, err := env.state.GetBill(miner, id)
	if err != nil || bill == nil {
		t.Fatalf("bill missing: %v", err)
	}
	if bill.Unmatched.Cmp(big.NewInt(100)) != 0 || bill.Matched.Sign() != 0 {
		t.Fatalf("bill inventory = %s/%s", bill.Unmatched, bill.Matched)
	}
	if bill.Price != uint64(1)<<priceScaleBits {
		t.Fatalf("fixed price = %d", bill.Price)
	}
	if bill.CreatedAt != env.clock.now || bill.UpdatedAt != env.clock.now {
		t.Fatalf("bill timestamps = %d/%d", bill.CreatedAt, bill.UpdatedAt)
	}
	if got := env.emitter.ofType(coreevents.TypeBillRecorded); len(got) != 1 {
		t.Fatalf("expected one bill event, got %d", len(got))
	}
}

func TestBillValidation(t *testing.T) {
	env := newTestEnv(t)
	miner := testAddr(1)
	setupMintedMaker(t, env, miner)
	expire := env.clock.now + 30*24*3600

	if _, err := env.engine.Bill(miner, nil, big.NewRat(1, 1), expire, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil amount: %v", err)
	}
	if _, err := env.engine.Bill(miner, big.NewInt(0), big.NewRat(1, 1), expire, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := env.engine.Bill(miner, big.NewInt(10), big.NewRat(1, 20_000), expire, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("price below floor: %v", err)
	}
	tooHigh := new(big.Rat).SetInt(priceScale)
	if _, err := env.engine.Bill(miner, big.NewInt(10), tooHigh, expire, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("price above ceiling: %v", err)
	}
	if _, err := env.engine.Bill(miner, big.NewInt(10), big.NewRat(1, 1), env.clock.now+3600, 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expiry below service interval: %v", err)
	}
}

func TestUnbillReturnsUnmatched(t *testing.T) {
	env := newTestEnv(t)
	miner := testAddr(1)
	setupMintedMaker(t, env, miner)
	id := env.postBill(t, miner, 100, 0)

	if err := env.engine.Unbill(miner, id); err != nil {
		t.Fatalf("unbill: %v", err)
	}
	if bal := env.ledger.balance(miner, TokenPST); bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("pst balance = %s, want 1000", bal)
	}
	bill, err := env.state.GetBill(miner, id)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if bill != nil {
		t.Fatalf("bill should be deleted")
	}
	if err := env.engine.Unbill(miner, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second unbill: %v", err)
	}
}

func TestOrderReserveBoundary(t *testing.T) {
	env := newTestEnv(t)
	miner, user := testAddr(1), testAddr(2)
	setupMintedMaker(t, env, miner)
	id := env.postBill(t, miner, 100, 0)
	depositValid := env.clock.now + 2*24*3600

	// 100 PST at price 1.0 costs exactly 100 GRID.
	pay := grid(100)
	short := new(big.Int).Sub(pay, big.NewInt(1))
	env.ledger.fund(user, TokenGRID, pay)

	if _, err := env.engine.Order(user, miner, id, big.NewInt(100), short, "", depositValid); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("short reserve: %v", err)
	}
	orderID, err := env.engine.Order(user, miner, id, big.NewInt(100), pay, "", depositValid)
	if err != nil {
		t.Fatalf("order: %v", err)
	}

	if bal := env.ledger.balance(user, TokenGRID); bal.Sign() != 0 {
		t.Fatalf("user balance = %s, want 0", bal)
	}
	order, err := env.state.GetOrder(orderID)
	if err != nil || order == nil {
		t.Fatalf("order missing: %v", err)
	}
	if order.LockPledge.Cmp(pay) != 0 || order.Price.Cmp(pay) != 0 {
		t.Fatalf("locked payment = %s/%s, want %s", order.LockPledge, order.Price, pay)
	}
	if order.UserPledge.Sign() != 0 || order.Deposit.Sign() != 0 {
		t.Fatalf("pledge/deposit = %s/%s, want 0/0", order.UserPledge, order.Deposit)
	}
	if order.MinerLockPST.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("miner lock pst = %s", order.MinerLockPST)
	}
	if order.State != OrderStateWaiting {
		t.Fatalf("order state = %d", order.State)
	}

	bill, err := env.state.GetBill(miner, id)
	if err != nil || bill == nil {
		t.Fatalf("bill missing: %v", err)
	}
	if bill.Unmatched.Sign() != 0 || bill.Matched.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("bill inventory = %s/%s", bill.Unmatched, bill.Matched)
	}
}

func TestOrderEarmarksCollateralAtCurrentRate(t *testing.T) {
	env := newTestEnv(t)
	miner, user := testAddr(1), testAddr(2)
	setupMintedMaker(t, env, miner)
	id := env.postBill(t, miner, 100, 0)
	depositValid := env.clock.now + 2*24*3600
	pay := grid(100)
	env.ledger.fund(user, TokenGRID, pay)

	orderID, err := env.engine.Order(user, miner, id, big.NewInt(100), pay, "", depositValid)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	order, err := env.state.GetOrder(orderID)
	if err != nil || order == nil {
		t.Fatalf("order missing: %v", err)
	}
	// Earmark at the pre-order rate of 2.0: 200 GRID against a 100 GRID
	// payment. The stake itself stays in the pool.
	if order.MinerLockGRID.Cmp(grid(200)) != 0 {
		t.Fatalf("miner lock = %s, want %s", order.MinerLockGRID, grid(200))
	}
	maker := env.maker(t, miner)
	if maker.TotalStaked.Cmp(grid(2000)) != 0 {
		t.Fatalf("total staked = %s, want unchanged %s", maker.TotalStaked, grid(2000))
	}
	if maker.CurrentRate.Cmp(big.NewRat(9, 5)) != 0 {
		t.Fatalf("effective rate = %s, want 1.8", maker.CurrentRate.RatString())
	}

	challenge, ok := env.state.challenges[orderID]
	if !ok {
		t.Fatalf("challenge missing for order %d", orderID)
	}
	if challenge.State != ChallengePrepare || !challenge.MerkleSubmitter.Equal(testAuthority) {
		t.Fatalf("challenge = %+v", challenge)
	}

	avg, err := env.state.GetPriceAverage()
	if err != nil || avg == nil {
		t.Fatalf("price average missing: %v", err)
	}
	if avg.Count != 1 || avg.Avg.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("avg = %d %s", avg.Count, avg.Avg.RatString())
	}
}

func TestOrderDepositAndPledge(t *testing.T) {
	env := newTestEnv(t)
	miner, user := testAddr(1), testAddr(2)
	setupMintedMaker(t, env, miner)
	id := env.postBill(t, miner, 100, 2)
	depositValid := env.clock.now + 2*24*3600

	pay := grid(100)
	deposit := grid(200)
	reserve := new(big.Int).Add(pay, deposit)
	reserve.Add(reserve, big.NewInt(500))
	env.ledger.fund(user, TokenGRID, reserve)

	orderID, err := env.engine.Order(user, miner, id, big.NewInt(100), reserve, "", depositValid)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	order, err := env.state.GetOrder(orderID)
	if err != nil || order == nil {
		t.Fatalf("order missing: %v", err)
	}
	if order.Deposit.Cmp(deposit) != 0 {
		t.Fatalf("deposit = %s, want %s", order.Deposit, deposit)
	}
	if order.UserPledge.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("pledge = %s, want 500", order.UserPledge)
	}
	receipts := env.emitter.ofType(coreevents.TypeOrderReceipt)
	if len(receipts) != 1 {
		t.Fatalf("expected one receipt event, got %d", len(receipts))
	}
}

func TestOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	miner, user := testAddr(1), testAddr(2)
	setupMintedMaker(t, env, miner)
	id := env.postBill(t, miner, 100, 0)
	depositValid := env.clock.now + 2*24*3600
	env.ledger.fund(user, TokenGRID, grid(10_000))

	if _, err := env.engine.Order(miner, miner, id, big.NewInt(10), grid(100), "", depositValid); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("self order: %v", err)
	}
	if _, err := env.engine.Order(user, miner, 12345, big.NewInt(10), grid(100), "", depositValid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown bill: %v", err)
	}
	if _, err := env.engine.Order(user, miner, id, big.NewInt(101), grid(200), "", depositValid); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdrawn bill: %v", err)
	}
	bill, _ := env.state.GetBill(miner, id)
	if _, err := env.engine.Order(user, miner, id, big.NewInt(10), grid(100), "", bill.ExpireOn+1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("deposit beyond expiry: %v", err)
	}
	if _, err := env.engine.Order(user, miner, id, big.NewInt(10), grid(100), "", env.clock.now+3600); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("deposit below epoch: %v", err)
	}
}
