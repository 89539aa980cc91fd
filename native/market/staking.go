package market

import (
	"math/big"

	coreevents "gridchain/core/events"
	"gridchain/crypto"
)

var (
	ratOne        = big.NewRat(1, 1)
	minMinerRate  = big.NewRat(1, 5)
	benchmarkUp   = big.NewRat(11, 10)
	benchmarkDown = big.NewRat(9, 10)
)

// Stake adds collateral to a miner's pool and issues proportional ownership
// weight to the staker. Only the miner may create a pool, by self-staking.
func (e *Engine) Stake(owner crypto.Address, amount *big.Int, miner crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	maker, err := e.state.GetMaker(miner)
	if err != nil {
		return err
	}
	if maker == nil {
		return e.bootstrapPool(owner, amount, miner)
	}

	newTotal := new(big.Int).Add(maker.TotalStaked, amount)
	// Proportional issuance: the new weight preserves every existing staker's
	// ownership fraction.
	newWeight := new(big.Rat).SetFrac(new(big.Int).Set(amount), new(big.Int).Set(maker.TotalStaked))
	newWeight.Mul(newWeight, maker.TotalWeight)
	totalWeight := new(big.Rat).Add(maker.TotalWeight, newWeight)
	if newWeight.Sign() <= 0 {
		return ErrStateInvariant
	}
	fraction := new(big.Rat).Quo(newWeight, totalWeight)
	if fraction.Cmp(e.params.MinStakeFraction) <= 0 {
		return errStakeTooSmall
	}

	rate, err := e.currentRate(newTotal, miner)
	if err != nil {
		return err
	}

	share, err := e.state.GetShare(miner, owner)
	if err != nil {
		return err
	}
	shareWeight := new(big.Rat).Set(newWeight)
	if share != nil {
		shareWeight.Add(shareWeight, share.Weight)
	}

	minerShare, err := e.state.GetShare(miner, miner)
	if err != nil {
		return err
	}
	if minerShare == nil {
		return ErrStateInvariant
	}
	minerWeight := minerShare.Weight
	if miner.Equal(owner) {
		minerWeight = shareWeight
	}
	minerFraction := new(big.Rat).Quo(minerWeight, totalWeight)
	if minerFraction.Cmp(maker.MinerRate) < 0 {
		return errMinerRateBreached
	}

	if err := e.ledger.Debit(owner, TokenGRID, amount); err != nil {
		return err
	}

	maker.TotalWeight = totalWeight
	maker.TotalStaked = newTotal
	maker.CurrentRate = rate
	if err := e.state.PutMaker(maker); err != nil {
		return err
	}
	if err := e.state.PutShare(miner, &PoolShare{Owner: owner, Weight: shareWeight}); err != nil {
		return err
	}

	e.emit(coreevents.MakerStaked{Owner: owner, Miner: miner, Amount: amount})
	return nil
}

func (e *Engine) bootstrapPool(owner crypto.Address, amount *big.Int, miner crypto.Address) error {
	if !owner.Equal(miner) {
		return errNoSuchMaker
	}
	benchmarkRaw, err := e.globalBenchmarkRaw()
	if err != nil {
		return err
	}
	rate, err := e.currentRate(amount, miner)
	if err != nil {
		return err
	}
	if err := e.ledger.Debit(owner, TokenGRID, amount); err != nil {
		return err
	}
	maker := &Maker{
		Miner:              miner,
		CurrentRate:        rate,
		MinerRate:          new(big.Rat).Set(ratOne),
		TotalWeight:        new(big.Rat).Set(e.params.StaticWeight),
		TotalStaked:        new(big.Int).Set(amount),
		BenchmarkStakeRate: benchmarkRaw,
	}
	if err := e.state.PutMaker(maker); err != nil {
		return err
	}
	share := &PoolShare{Owner: owner, Weight: new(big.Rat).Set(e.params.StaticWeight)}
	if err := e.state.PutShare(miner, share); err != nil {
		return err
	}
	e.emit(coreevents.MakerStaked{Owner: owner, Miner: miner, Amount: amount})
	return nil
}

// Redeem withdraws a fraction of the caller's pool share. The payout is a
// delayed locked credit; a full redemption deletes the share, and the pool
// itself once its stake is drained.
func (e *Engine) Redeem(owner crypto.Address, fraction *big.Rat, miner crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if fraction == nil || fraction.Sign() <= 0 || fraction.Cmp(ratOne) > 0 {
		return errInvalidFraction
	}

	maker, err := e.getMaker(miner)
	if err != nil {
		return err
	}
	share, err := e.state.GetShare(miner, owner)
	if err != nil {
		return err
	}
	if share == nil {
		return errNoSuchShare
	}

	ownerWeight := new(big.Rat).Mul(share.Weight, fraction)
	redeemRate := new(big.Rat).Quo(ownerWeight, maker.TotalWeight)
	redeemAmount := ratFloor(ratMulInt(redeemRate, maker.TotalStaked))

	full := fraction.Cmp(ratOne) == 0
	lastOne := false
	var remainWeight *big.Rat
	if full {
		others, err := e.otherShares(miner, owner)
		if err != nil {
			return err
		}
		switch len(others) {
		case 0:
			redeemAmount = new(big.Int).Set(maker.TotalStaked)
		case 1:
			// Normalization step: when a single share survives a full
			// redemption, the pool's total weight collapses to that share's
			// absolute weight.
			lastOne = true
			ownerWeight = new(big.Rat).Set(others[0].Weight)
		}
	} else {
		remainWeight = new(big.Rat).Sub(share.Weight, ownerWeight)
		if remainWeight.Sign() <= 0 {
			return ErrStateInvariant
		}
	}

	totalWeight := new(big.Rat).Sub(maker.TotalWeight, ownerWeight)
	totalStaked := new(big.Int).Sub(maker.TotalStaked, redeemAmount)
	if totalStaked.Sign() < 0 || totalWeight.Sign() < 0 {
		return ErrStateInvariant
	}

	if owner.Equal(miner) {
		if err := e.checkMinerRedeem(maker, totalStaked, totalWeight, remainWeight, full); err != nil {
			return err
		}
	}
	if redeemAmount.Sign() == 0 {
		return ErrDustAttack
	}
	if !full {
		remainFraction := new(big.Rat).Quo(remainWeight, totalWeight)
		if remainFraction.Cmp(e.params.MinRemainFraction) <= 0 {
			return errRemainderTooSmall
		}
	}

	unlockTime := e.nowUnix() + int64(e.params.RedeemLockDuration)
	if err := e.ledger.CreditLocked(owner, TokenGRID, redeemAmount, unlockTime); err != nil {
		return err
	}

	if full {
		if err := e.state.DeleteShare(miner, owner); err != nil {
			return err
		}
	} else {
		if err := e.state.PutShare(miner, &PoolShare{Owner: owner, Weight: remainWeight}); err != nil {
			return err
		}
	}

	if totalStaked.Sign() == 0 {
		if err := e.state.DeleteMaker(miner); err != nil {
			return err
		}
	} else {
		rate, err := e.currentRate(totalStaked, miner)
		if err != nil {
			return err
		}
		maker.TotalStaked = totalStaked
		maker.CurrentRate = rate
		if lastOne {
			maker.TotalWeight = ownerWeight
		} else {
			maker.TotalWeight = totalWeight
		}
		if err := e.state.PutMaker(maker); err != nil {
			return err
		}
	}

	e.emit(coreevents.MakerRedeemed{Owner: owner, Miner: miner, Amount: redeemAmount, UnlockTime: unlockTime})
	return nil
}

// checkMinerRedeem enforces the pool-owner redemption guards: the resulting
// rate stays at or above the benchmark and the miner's remaining ownership
// fraction, minerWeight, meets the self-set floor.
func (e *Engine) checkMinerRedeem(maker *Maker, totalStaked *big.Int, totalWeight, minerWeight *big.Rat, full bool) error {
	benchmark, err := e.benchmarkRate(maker.BenchmarkStakeRate)
	if err != nil {
		return err
	}
	rate, err := e.currentRate(totalStaked, maker.Miner)
	if err != nil {
		return err
	}
	if rate.Cmp(benchmark) < 0 {
		return errRateBelowBenchmark
	}
	if totalStaked.Sign() == 0 {
		return nil
	}
	if full || minerWeight == nil {
		// The miner's own share is gone but stake remains backing other
		// stakers: the miner must be the last to exit.
		return errMinerRedeemOrder
	}
	remaining := new(big.Rat).Quo(minerWeight, totalWeight)
	if remaining.Cmp(maker.MinerRate) < 0 {
		return errMinerRateBreached
	}
	return nil
}

func (e *Engine) otherShares(miner, owner crypto.Address) ([]*PoolShare, error) {
	shares, err := e.state.SharesByMiner(miner)
	if err != nil {
		return nil, err
	}
	others := make([]*PoolShare, 0, len(shares))
	for _, s := range shares {
		if !s.Owner.Equal(owner) {
			others = append(others, s)
		}
	}
	return others, nil
}

// Mint issues new service tokens against the caller's pool. Outstanding
// minted value is capped at staked value divided by the pool benchmark, and
// the post-mint rate must still clear the benchmark.
func (e *Engine) Mint(owner crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	maker, err := e.getMaker(owner)
	if err != nil {
		return err
	}
	benchmark, err := e.benchmarkRate(maker.BenchmarkStakeRate)
	if err != nil {
		return err
	}
	if benchmark.Sign() <= 0 {
		return ErrStateInvariant
	}
	mintable := ratFloor(new(big.Rat).Quo(realValue(maker.TotalStaked), benchmark))

	stats, err := e.state.GetPSTStats(owner)
	if err != nil {
		return err
	}
	if stats == nil {
		stats = &PSTStats{Owner: owner, Amount: big.NewInt(0)}
	}
	added := new(big.Int).Add(stats.Amount, amount)
	if mintable.Cmp(added) < 0 {
		return errMintOverCap
	}

	rate := new(big.Rat).Quo(realValue(maker.TotalStaked), new(big.Rat).SetInt(added))
	if rate.Cmp(benchmark) < 0 {
		return errRateBelowBenchmark
	}

	total, err := e.state.TotalMinted()
	if err != nil {
		return err
	}
	if total == nil {
		total = big.NewInt(0)
	}
	if err := e.state.SetTotalMinted(new(big.Int).Add(total, amount)); err != nil {
		return err
	}
	stats.Amount = added
	if err := e.state.PutPSTStats(stats); err != nil {
		return err
	}
	if err := e.ledger.Credit(owner, TokenPST, amount); err != nil {
		return err
	}
	maker.CurrentRate = rate
	return e.state.PutMaker(maker)
}

// SetMinerRate raises or lowers the miner's minimum self-ownership fraction.
// The requested floor must already be met.
func (e *Engine) SetMinerRate(owner crypto.Address, rate *big.Rat) error {
	if err := e.ready(); err != nil {
		return err
	}
	if rate == nil || rate.Cmp(minMinerRate) < 0 || rate.Cmp(ratOne) > 0 {
		return errInvalidMinerRate
	}
	maker, err := e.getMaker(owner)
	if err != nil {
		return err
	}
	minerShare, err := e.state.GetShare(owner, owner)
	if err != nil {
		return err
	}
	if minerShare == nil {
		return ErrStateInvariant
	}
	fraction := new(big.Rat).Quo(minerShare.Weight, maker.TotalWeight)
	if fraction.Cmp(rate) < 0 {
		return errRateDoesNotMeet
	}
	maker.MinerRate = new(big.Rat).Set(rate)
	return e.state.PutMaker(maker)
}

// SetBenchmarkRate changes the pool's benchmark stake rate. Changes are
// rate-limited to one per cool-down interval; the first change only needs to
// clear the global default, later changes are additionally bounded to ±10% of
// the previous value.
func (e *Engine) SetBenchmarkRate(owner crypto.Address, raw uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	maker, err := e.getMaker(owner)
	if err != nil {
		return err
	}
	minerShare, err := e.state.GetShare(owner, owner)
	if err != nil {
		return err
	}
	if minerShare == nil {
		return ErrStateInvariant
	}
	now := e.nowUnix()
	if now < maker.RateUpdatedAt+int64(e.params.RateChangeInterval) {
		return errRateChangeTooSoon
	}
	def, err := e.globalBenchmarkRaw()
	if err != nil {
		return err
	}
	if raw < def {
		return errInvalidBenchmark
	}
	if maker.RateUpdatedAt != 0 {
		prev := new(big.Rat).SetUint64(maker.BenchmarkStakeRate)
		next := new(big.Rat).SetUint64(raw)
		if next.Cmp(new(big.Rat).Mul(prev, benchmarkUp)) > 0 ||
			next.Cmp(new(big.Rat).Mul(prev, benchmarkDown)) < 0 {
			return errInvalidBenchmark
		}
	}
	maker.BenchmarkStakeRate = raw
	maker.RateUpdatedAt = now
	return e.state.PutMaker(maker)
}
