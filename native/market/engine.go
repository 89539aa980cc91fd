package market

import (
	"math/big"
	"time"

	"gridchain/core/events"
	"gridchain/crypto"
	nativecommon "gridchain/native/common"
)

const moduleName = "market"

// engineState is the persistence contract for the market engine. Secondary
// orderings (rate-ascending makers, id-ascending bills) are part of the
// contract: implementations maintain explicit sorted indexes alongside the
// primary keyed stores.
type engineState interface {
	GetMaker(miner crypto.Address) (*Maker, error)
	PutMaker(maker *Maker) error
	DeleteMaker(miner crypto.Address) error
	// MakersByRate returns all maker pools in ascending current-rate order.
	MakersByRate() ([]*Maker, error)

	GetShare(miner, owner crypto.Address) (*PoolShare, error)
	PutShare(miner crypto.Address, share *PoolShare) error
	DeleteShare(miner, owner crypto.Address) error
	// SharesByMiner returns a pool's shares; order is unspecified.
	SharesByMiner(miner crypto.Address) ([]*PoolShare, error)

	GetBill(owner crypto.Address, billID uint64) (*Bill, error)
	PutBill(bill *Bill) error
	DeleteBill(owner crypto.Address, billID uint64) error
	// BillsByOwner returns an owner's bills in ascending bill-id order.
	BillsByOwner(owner crypto.Address) ([]*Bill, error)

	GetOrder(orderID uint64) (*Order, error)
	PutOrder(order *Order) error
	PutChallenge(challenge *Challenge) error

	GetPSTStats(owner crypto.Address) (*PSTStats, error)
	PutPSTStats(stats *PSTStats) error
	TotalMinted() (*big.Int, error)
	SetTotalMinted(total *big.Int) error

	// PriceSamples returns the oracle window in ascending insertion order.
	PriceSamples() ([]*PriceSample, error)
	AppendPriceSample(sample *PriceSample) error
	DeletePriceSample(seq uint64) error
	GetPriceAverage() (*PriceAverage, error)
	PutPriceAverage(avg *PriceAverage) error

	GetConfig(key string) (uint64, bool, error)
	PutConfig(key string, value uint64) error
}

// Ledger is the balance collaborator. All calls are assumed atomic with the
// surrounding transaction: when an operation fails after a debit, the host
// rolls the debit back together with every other effect.
type Ledger interface {
	Balance(owner crypto.Address, token string) (*big.Int, error)
	Debit(owner crypto.Address, token string, amount *big.Int) error
	Credit(owner crypto.Address, token string, amount *big.Int) error
	CreditLocked(owner crypto.Address, token string, amount *big.Int, unlockTime int64) error
}

// Engine orchestrates the staking, billing, accrual, oracle, and liquidation
// state transitions of the service marketplace. All operations run inside a
// host-serialized transaction; the engine itself holds no locks.
type Engine struct {
	state     engineState
	ledger    Ledger
	emitter   events.Emitter
	params    Params
	authority crypto.Address
	reserve   crypto.Address
	pauses    nativecommon.PauseView
	now       func() time.Time
}

// NewEngine constructs a market engine. authority is the account allowed to
// run liquidation and change global configuration; reserve receives seized
// liquidation penalties.
func NewEngine(authority, reserve crypto.Address, params Params) *Engine {
	return &Engine{
		authority: authority,
		reserve:   reserve,
		params:    params.Normalise(),
		emitter:   events.NoopEmitter{},
		now:       time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the engine to the balance collaborator.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetEmitter wires the fire-and-forget event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the clock. The supplied function must be monotonic
// within one transaction.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) nowUnix() int64 { return e.now().Unix() }

func (e *Engine) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// configValue resolves a tunable against the config store, falling back to the
// engine defaults.
func (e *Engine) configValue(key string, def uint64) (uint64, error) {
	value, ok, err := e.state.GetConfig(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// SetConfig stores a global tunable override. Only the authority may call it.
func (e *Engine) SetConfig(caller crypto.Address, key string, value uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !caller.Equal(e.authority) {
		return ErrUnauthorized
	}
	if key == ConfigKeyClaimsInterval && value == 0 {
		return errInvalidServiceTime
	}
	return e.state.PutConfig(key, value)
}

// currentRate computes staked real value divided by the owner's minted
// service-token amount, or the sentinel maximum when nothing is minted.
func (e *Engine) currentRate(staked *big.Int, owner crypto.Address) (*big.Rat, error) {
	stats, err := e.state.GetPSTStats(owner)
	if err != nil {
		return nil, err
	}
	if stats == nil || stats.Amount == nil || stats.Amount.Sign() == 0 {
		return new(big.Rat).Set(rateInfinity), nil
	}
	return new(big.Rat).Quo(realValue(staked), new(big.Rat).SetInt(stats.Amount)), nil
}

// benchmarkRate resolves a stored integer rate (percentage times 100) into an
// absolute value through the oracle's trailing average, or the configured
// initial price while the window is still empty.
func (e *Engine) benchmarkRate(raw uint64) (*big.Rat, error) {
	value := new(big.Rat).SetFrac(new(big.Int).SetUint64(raw), big.NewInt(100))
	avg, err := e.state.GetPriceAverage()
	if err != nil {
		return nil, err
	}
	if avg == nil || avg.Count == 0 {
		initial, err := e.configValue(ConfigKeyInitialPrice, e.params.InitialPrice)
		if err != nil {
			return nil, err
		}
		return value.Mul(value, new(big.Rat).SetUint64(initial)), nil
	}
	return value.Mul(value, avg.Avg), nil
}

func (e *Engine) globalBenchmarkRaw() (uint64, error) {
	return e.configValue(ConfigKeyBenchmarkRate, e.params.BenchmarkRate)
}

func (e *Engine) getMaker(miner crypto.Address) (*Maker, error) {
	maker, err := e.state.GetMaker(miner)
	if err != nil {
		return nil, err
	}
	if maker == nil {
		return nil, errNoSuchMaker
	}
	if maker.TotalStaked == nil {
		maker.TotalStaked = big.NewInt(0)
	}
	if maker.TotalWeight == nil {
		maker.TotalWeight = new(big.Rat)
	}
	return maker, nil
}

func (e *Engine) getBill(owner crypto.Address, billID uint64) (*Bill, error) {
	bill, err := e.state.GetBill(owner, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, errNoSuchBill
	}
	return bill, nil
}
