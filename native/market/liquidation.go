package market

import (
	"math/big"

	coreevents "gridchain/core/events"
	"gridchain/crypto"
)

// clawback is one queued liquidation computed during the scan pass: the
// service tokens actually recovered from a pool's owner and the collateral
// penalty owed. Queuing the amounts keeps the deficit math anchored to the
// pre-liquidation snapshot instead of state that later entries mutate.
type clawback struct {
	miner   crypto.Address
	pst     *big.Int
	penalty *big.Int
}

// Liquidate scans pools in ascending current-rate order and liquidates every
// under-collateralized one, up to a fixed batch size per call. Only the
// authority account may invoke it.
//
// The run is two passes. Pass one walks the rate index, claws service tokens
// back from each deficient owner (free balance first, then bill inventory in
// ascending id order, settling bonus accrual on every touched bill), and
// queues the amounts. Pass two applies the pool and mint-stat mutations, so a
// liquidated pool's shrinking stake can never disturb the ordering or the
// deficit arithmetic of pools queued after it.
func (e *Engine) Liquidate(caller crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !caller.Equal(e.authority) {
		return ErrUnauthorized
	}

	penaltyRate, err := e.configValue(ConfigKeyPenaltyRate, e.params.PenaltyRate)
	if err != nil {
		return err
	}

	makers, err := e.state.MakersByRate()
	if err != nil {
		return err
	}

	queue := make([]clawback, 0, liquidationBatchSize)
	for _, maker := range makers {
		if len(queue) >= liquidationBatchSize {
			break
		}
		benchmark, err := e.benchmarkRate(maker.BenchmarkStakeRate)
		if err != nil {
			return err
		}
		if maker.CurrentRate.Cmp(benchmark) >= 0 {
			break
		}

		stats, err := e.state.GetPSTStats(maker.Miner)
		if err != nil {
			return err
		}
		if stats == nil || stats.Amount == nil || stats.Amount.Sign() == 0 {
			// A pool with nothing minted carries the sentinel rate and can
			// never sort below its benchmark.
			return ErrStateInvariant
		}

		deficit := new(big.Rat).Sub(ratOne, new(big.Rat).Quo(maker.CurrentRate, benchmark))
		required := ratCeil(ratMulInt(deficit, stats.Amount))
		leftover := new(big.Int).Set(required)

		balance, err := e.ledger.Balance(maker.Miner, TokenPST)
		if err != nil {
			return err
		}
		if balance != nil && balance.Sign() > 0 {
			take := minBig(leftover, balance)
			if take.Sign() > 0 {
				if err := e.ledger.Debit(maker.Miner, TokenPST, take); err != nil {
					return err
				}
				leftover.Sub(leftover, take)
			}
		}

		if leftover.Sign() > 0 {
			if err := e.clawBackBills(maker.Miner, leftover); err != nil {
				return err
			}
		}

		clawed := new(big.Int).Sub(required, leftover)
		// Bill accrual above may have grown the stake; the penalty reads the
		// pool as it stands now, while the deficit stays pre-snapshot.
		current, err := e.getMaker(maker.Miner)
		if err != nil {
			return err
		}
		penaltyValue := new(big.Rat).Mul(deficit, realValue(current.TotalStaked))
		penaltyValue.Mul(penaltyValue, new(big.Rat).SetFrac(new(big.Int).SetUint64(penaltyRate), big.NewInt(100)))
		penalty := gridFromValue(penaltyValue, ratCeil)

		if clawed.Sign() != 0 && penalty.Sign() != 0 {
			queue = append(queue, clawback{miner: maker.Miner, pst: clawed, penalty: penalty})
		}
	}

	for _, liq := range queue {
		if err := e.applyClawback(liq); err != nil {
			return err
		}
	}
	return nil
}

// clawBackBills reduces the owner's bills' unmatched inventory in ascending
// id order until leftover is exhausted, settling bonus accrual on each bill
// before reducing it and deleting bills that reach zero.
func (e *Engine) clawBackBills(miner crypto.Address, leftover *big.Int) error {
	bills, err := e.state.BillsByOwner(miner)
	if err != nil {
		return err
	}
	for _, bill := range bills {
		if leftover.Sign() == 0 {
			break
		}
		checkpoint, err := e.accrueBonus(miner, bill.BillID)
		if err != nil {
			return err
		}
		take := minBig(bill.Unmatched, leftover)
		bill.Unmatched = new(big.Int).Sub(bill.Unmatched, take)
		bill.UpdatedAt = checkpoint
		leftover.Sub(leftover, take)

		if bill.Unmatched.Sign() == 0 {
			if err := e.state.DeleteBill(miner, bill.BillID); err != nil {
				return err
			}
		} else {
			if err := e.state.PutBill(bill); err != nil {
				return err
			}
		}
		e.emit(coreevents.BillClawback{Miner: miner, BillID: bill.BillID, Amount: take})
	}
	return nil
}

// applyClawback performs the pass-two mutations for one queued liquidation:
// shrink the mint stats, seize the penalty into the reserve account, and
// recompute the pool's rate from the reduced stake and minted amount.
func (e *Engine) applyClawback(liq clawback) error {
	stats, err := e.state.GetPSTStats(liq.miner)
	if err != nil {
		return err
	}
	if stats == nil || stats.Amount == nil {
		return ErrStateInvariant
	}
	stats.Amount = new(big.Int).Sub(stats.Amount, liq.pst)
	if stats.Amount.Sign() < 0 {
		return ErrStateInvariant
	}
	if err := e.state.PutPSTStats(stats); err != nil {
		return err
	}

	total, err := e.state.TotalMinted()
	if err != nil {
		return err
	}
	if total == nil {
		total = big.NewInt(0)
	}
	if err := e.state.SetTotalMinted(new(big.Int).Sub(total, liq.pst)); err != nil {
		return err
	}

	maker, err := e.getMaker(liq.miner)
	if err != nil {
		return err
	}
	newStaked := new(big.Int).Sub(maker.TotalStaked, liq.penalty)
	if newStaked.Sign() < 0 {
		return ErrStateInvariant
	}
	rate, err := e.currentRate(newStaked, liq.miner)
	if err != nil {
		return err
	}
	maker.TotalStaked = newStaked
	maker.CurrentRate = rate
	if err := e.state.PutMaker(maker); err != nil {
		return err
	}

	if err := e.ledger.Credit(e.reserve, TokenGRID, liq.penalty); err != nil {
		return err
	}
	e.emit(coreevents.MakerLiquidated{Miner: liq.miner, PST: liq.pst, Penalty: liq.penalty})
	return nil
}
