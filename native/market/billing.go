package market

import (
	"math/big"

	coreevents "gridchain/core/events"
	"gridchain/crypto"
)

var (
	minBillPrice = big.NewRat(1, 10_000)
	maxBillPrice = new(big.Rat).SetInt(priceScale)
)

// Bill posts a standing sell-offer of service-proof inventory. The offered
// amount moves from the owner's free balance into engine escrow and stays
// there until ordered, clawed back, or withdrawn. Returns the new bill id.
func (e *Engine) Bill(owner crypto.Address, amount *big.Int, price *big.Rat, expireOn int64, depositRatio uint64, memo string) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if price == nil || price.Cmp(minBillPrice) < 0 || price.Cmp(maxBillPrice) >= 0 {
		return 0, errInvalidPrice
	}
	now := e.nowUnix()
	serviceInterval, err := e.configValue(ConfigKeyServiceInterval, e.params.ServiceInterval)
	if err != nil {
		return 0, err
	}
	if expireOn < now+int64(serviceInterval) {
		return 0, errInvalidServiceTime
	}

	priceFixed := priceToFixed(price)
	id := billID(owner, amount, priceFixed, now, memo)
	existing, err := e.state.GetBill(owner, id)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrStateInvariant
	}

	if err := e.ledger.Debit(owner, TokenPST, amount); err != nil {
		return 0, err
	}

	bill := &Bill{
		Owner:        owner,
		BillID:       id,
		Unmatched:    new(big.Int).Set(amount),
		Matched:      big.NewInt(0),
		Price:        priceFixed,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpireOn:     expireOn,
		DepositRatio: depositRatio,
	}
	if err := e.state.PutBill(bill); err != nil {
		return 0, err
	}

	e.emit(coreevents.BillRecorded{Owner: owner, BillID: id, Amount: amount, Price: priceFixed})
	return id, nil
}

// Unbill settles the bill's outstanding bonus accrual, returns its unmatched
// inventory to the owner's free balance, and deletes the record.
func (e *Engine) Unbill(owner crypto.Address, billID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	bill, err := e.getBill(owner, billID)
	if err != nil {
		return err
	}
	unmatched := new(big.Int).Set(bill.Unmatched)
	if _, err := e.accrueBonus(owner, billID); err != nil {
		return err
	}
	if err := e.state.DeleteBill(owner, billID); err != nil {
		return err
	}
	if err := e.ledger.Credit(owner, TokenPST, unmatched); err != nil {
		return err
	}
	e.emit(coreevents.BillRemoved{Owner: owner, BillID: billID, Returned: unmatched})
	return nil
}

// Order matches part of a bill's unmatched inventory into a live order,
// locking the user's payment and deposit and earmarking maker collateral at
// the pool's current rate. A challenge record is created atomically with the
// order. Returns the new order id.
func (e *Engine) Order(user, miner crypto.Address, billIDArg uint64, amount, reserve *big.Int, memo string, depositValid int64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if user.Equal(miner) {
		return 0, errSelfOrder
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if reserve == nil || reserve.Sign() < 0 {
		return 0, errInvalidAmount
	}

	bill, err := e.getBill(miner, billIDArg)
	if err != nil {
		return 0, err
	}
	if bill.Unmatched.Cmp(amount) < 0 {
		return 0, errOverdrawnBill
	}

	now := e.nowUnix()
	serviceEpoch, err := e.configValue(ConfigKeyOrderServiceEpoch, e.params.OrderServiceEpoch)
	if err != nil {
		return 0, err
	}
	if depositValid > bill.ExpireOn {
		return 0, errDepositExpired
	}
	if depositValid < now+int64(serviceEpoch) {
		return 0, errDepositTooSoon
	}

	price := priceFromFixed(bill.Price)
	// The user pays ceil(price * amount): rounding up keeps the maker whole.
	userToPay := ratCeil(gridValueTimesAmount(price, amount))
	userToDeposit := new(big.Int).Mul(userToPay, new(big.Int).SetUint64(bill.DepositRatio))
	required := new(big.Int).Add(userToPay, userToDeposit)
	if reserve.Cmp(required) < 0 {
		return 0, errReserveUnderfunded
	}

	maker, err := e.getMaker(miner)
	if err != nil {
		return 0, err
	}

	if err := e.ledger.Debit(user, TokenGRID, reserve); err != nil {
		return 0, err
	}

	checkpoint, err := e.accrueBonus(miner, billIDArg)
	if err != nil {
		return 0, err
	}
	bill.Unmatched = new(big.Int).Sub(bill.Unmatched, amount)
	bill.Matched = new(big.Int).Add(bill.Matched, amount)
	bill.UpdatedAt = checkpoint
	if err := e.state.PutBill(bill); err != nil {
		return 0, err
	}

	// Reload: accrual may have grown the pool's stake.
	maker, err = e.getMaker(miner)
	if err != nil {
		return 0, err
	}
	rate, err := e.currentRate(maker.TotalStaked, miner)
	if err != nil {
		return 0, err
	}
	// Earmark collateral for the order at the current rate. The stake itself
	// stays in the pool; only the effective rate drops.
	minerLock := ratFloor(ratMulInt(capRate(rate), userToPay))
	remaining := new(big.Int).Sub(maker.TotalStaked, minerLock)
	lockedRate, err := e.currentRate(remaining, miner)
	if err != nil {
		return 0, err
	}
	maker.CurrentRate = lockedRate
	if err := e.state.PutMaker(maker); err != nil {
		return 0, err
	}

	orderID := orderSeedID(user, miner, billIDArg, amount, reserve, memo, now)
	for {
		existing, err := e.state.GetOrder(orderID)
		if err != nil {
			return 0, err
		}
		if existing == nil {
			break
		}
		orderID++
	}

	userPledge := new(big.Int).Sub(reserve, required)
	order := &Order{
		OrderID:          orderID,
		User:             user,
		Miner:            miner,
		BillID:           billIDArg,
		UserPledge:       userPledge,
		MinerLockPST:     new(big.Int).Set(amount),
		MinerLockGRID:    minerLock,
		SettlementPledge: big.NewInt(0),
		LockPledge:       new(big.Int).Set(userToPay),
		Price:            new(big.Int).Set(userToPay),
		State:            OrderStateWaiting,
		MinerLockRSI:     big.NewInt(0),
		MinerRSI:         big.NewInt(0),
		UserRSI:          big.NewInt(0),
		Deposit:          userToDeposit,
		DepositValid:     depositValid,
	}
	if err := e.state.PutOrder(order); err != nil {
		return 0, err
	}

	challenge := &Challenge{
		OrderID:         orderID,
		MerkleSubmitter: e.authority,
		State:           ChallengePrepare,
		UserLock:        big.NewInt(0),
		MinerPay:        big.NewInt(0),
	}
	if err := e.state.PutChallenge(challenge); err != nil {
		return 0, err
	}

	if reserve.Sign() > 0 {
		e.emit(coreevents.OrderReceipt{OrderID: orderID, User: user, Pledge: userPledge})
	}

	if err := e.tracePrice(price, billIDArg); err != nil {
		return 0, err
	}

	e.emit(coreevents.OrderCreated{
		OrderID:   orderID,
		User:      user,
		Miner:     miner,
		BillID:    billIDArg,
		Amount:    amount,
		Payment:   userToPay,
		Deposit:   userToDeposit,
		MinerLock: minerLock,
	})
	e.emit(coreevents.ChallengeCreated{OrderID: orderID})
	return orderID, nil
}

// gridValueTimesAmount converts price-per-unit times a PST quantity into GRID
// base units.
func gridValueTimesAmount(price *big.Rat, amount *big.Int) *big.Rat {
	value := ratMulInt(price, amount)
	return value.Mul(value, new(big.Rat).SetInt(gridUnit))
}

// capRate bounds the sentinel infinite rate so earmark math on an unminted
// pool cannot overflow the pool's actual stake.
func capRate(rate *big.Rat) *big.Rat {
	if rate.Cmp(rateInfinity) >= 0 {
		return new(big.Rat)
	}
	return rate
}
