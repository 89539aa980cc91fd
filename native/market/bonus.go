package market

import (
	"math/big"

	coreevents "gridchain/core/events"
	"gridchain/crypto"
)

// accrueBonus settles the time-weighted incentive a bill has earned since its
// last checkpoint and credits it straight into the maker pool's stake. The
// accrual window hard-stops a fixed interval after bill creation. Callers
// persist the returned checkpoint as the bill's new UpdatedAt; skipping the
// call before a collateral-affecting mutation silently forfeits the accrued
// bonus.
func (e *Engine) accrueBonus(owner crypto.Address, billIDArg uint64) (int64, error) {
	bill, err := e.getBill(owner, billIDArg)
	if err != nil {
		return 0, err
	}
	maker, err := e.getMaker(owner)
	if err != nil {
		return 0, err
	}

	now := e.nowUnix()
	window, err := e.configValue(ConfigKeyBillAccrualWindow, e.params.BillAccrualWindow)
	if err != nil {
		return 0, err
	}
	windowEnd := bill.CreatedAt + int64(window)
	checkpoint := now
	if checkpoint > windowEnd {
		checkpoint = windowEnd
	}
	if bill.UpdatedAt > windowEnd {
		return checkpoint, nil
	}
	duration := checkpoint - bill.UpdatedAt
	if duration < 0 {
		return 0, ErrStateInvariant
	}
	if duration == 0 {
		return checkpoint, nil
	}

	benchmarkRaw, err := e.globalBenchmarkRaw()
	if err != nil {
		return 0, err
	}
	// Per-second issuance per unmatched unit, in RSI base units, floored once
	// before scaling so repeated settlements cannot round in anyone's favour.
	perSecond := new(big.Rat).Mul(e.params.IncentiveRate, new(big.Rat).SetFrac(new(big.Int).SetUint64(benchmarkRaw), big.NewInt(100)))
	perSecond.Quo(perSecond, new(big.Rat).SetUint64(window))
	perSecond.Mul(perSecond, new(big.Rat).SetInt(rsiUnit))
	rsiQuantity := ratFloor(perSecond)
	rsiQuantity.Mul(rsiQuantity, big.NewInt(duration))
	rsiQuantity.Mul(rsiQuantity, bill.Unmatched)
	if rsiQuantity.Sign() == 0 {
		return checkpoint, nil
	}

	gridQuantity, err := e.rsiToGrid(rsiQuantity)
	if err != nil {
		return 0, err
	}
	if gridQuantity.Sign() <= 0 {
		return checkpoint, nil
	}

	maker.TotalStaked = new(big.Int).Add(maker.TotalStaked, gridQuantity)
	if err := e.state.PutMaker(maker); err != nil {
		return 0, err
	}
	e.emit(coreevents.MakerIncentive{Miner: owner, BillID: billIDArg, Amount: gridQuantity})
	return checkpoint, nil
}

// rsiToGrid converts RSI base units into GRID base units at the oracle's
// trailing average price, or the configured initial price while the window is
// empty.
func (e *Engine) rsiToGrid(rsi *big.Int) (*big.Int, error) {
	avg, err := e.state.GetPriceAverage()
	if err != nil {
		return nil, err
	}
	var price *big.Rat
	if avg == nil || avg.Count == 0 {
		initial, err := e.configValue(ConfigKeyInitialPrice, e.params.InitialPrice)
		if err != nil {
			return nil, err
		}
		price = new(big.Rat).SetUint64(initial)
	} else {
		price = avg.Avg
	}
	value := new(big.Rat).SetFrac(new(big.Int).Set(rsi), rsiUnit)
	value.Mul(value, price)
	return gridFromValue(value, ratFloor), nil
}
