package market

import "math/big"

// tracePrice records one trade price into the oracle's trailing window.
// Samples older than the window are expired from both the ordered set and the
// running aggregate before the new sample lands, keeping total, count, and
// average incrementally consistent with the window at every step.
func (e *Engine) tracePrice(price *big.Rat, billIDArg uint64) error {
	now := e.nowUnix()
	cutoff := now - int64(e.params.PriceWindow)

	avg, err := e.state.GetPriceAverage()
	if err != nil {
		return err
	}
	if avg == nil {
		avg = &PriceAverage{Total: new(big.Rat), Count: 0, Avg: new(big.Rat)}
	}

	samples, err := e.state.PriceSamples()
	if err != nil {
		return err
	}
	for _, sample := range samples {
		if sample.CreatedAt >= cutoff {
			break
		}
		if err := e.state.DeletePriceSample(sample.Seq); err != nil {
			return err
		}
		avg.Total = new(big.Rat).Sub(avg.Total, sample.Price)
		if avg.Count == 0 {
			return ErrStateInvariant
		}
		avg.Count--
	}

	if err := e.state.AppendPriceSample(&PriceSample{
		BillID:    billIDArg,
		Price:     new(big.Rat).Set(price),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	avg.Total = new(big.Rat).Add(avg.Total, price)
	avg.Count++
	avg.Avg = new(big.Rat).Quo(avg.Total, new(big.Rat).SetUint64(avg.Count))
	return e.state.PutPriceAverage(avg)
}
