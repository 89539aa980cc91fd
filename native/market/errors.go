package market

import (
	"errors"
	"fmt"
)

// Failure kinds. Every rejection returned by the engine wraps exactly one of
// these sentinels so hosts can map rejections onto transaction abort codes.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDustAttack             = errors.New("dust attack detected")
	// ErrStateInvariant marks checks on values that never go bad in a correct
	// engine. A triggered invariant is a bug, not a user error.
	ErrStateInvariant = errors.New("state invariant violation")
)

var (
	errNilState           = errors.New("market engine: state not configured")
	errNilLedger          = errors.New("market engine: ledger not configured")
	errInvalidPrice       = fmt.Errorf("market engine: invalid price: %w", ErrInvalidArgument)
	errInvalidAmount      = fmt.Errorf("market engine: amount must be positive: %w", ErrInvalidArgument)
	errInvalidServiceTime = fmt.Errorf("market engine: invalid service time: %w", ErrInvalidArgument)
	errInvalidFraction    = fmt.Errorf("market engine: redemption fraction must be in (0,1]: %w", ErrInvalidArgument)
	errInvalidMinerRate   = fmt.Errorf("market engine: miner rate must be in [0.2,1]: %w", ErrInvalidArgument)
	errInvalidBenchmark   = fmt.Errorf("market engine: invalid benchmark stake rate: %w", ErrInvalidArgument)
	errSelfOrder          = fmt.Errorf("market engine: user and miner are the same account: %w", ErrInvalidArgument)
	errDepositExpired     = fmt.Errorf("market engine: service has expired: %w", ErrInvalidArgument)
	errDepositTooSoon     = fmt.Errorf("market engine: deposit validity below minimum epoch: %w", ErrInvalidArgument)
	errRateChangeTooSoon  = fmt.Errorf("market engine: benchmark change interval too short: %w", ErrInvalidArgument)

	errNoSuchBill  = fmt.Errorf("market engine: no such bill: %w", ErrNotFound)
	errNoSuchMaker = fmt.Errorf("market engine: no such maker pool: %w", ErrNotFound)
	errNoSuchShare = fmt.Errorf("market engine: no such pool share: %w", ErrNotFound)

	errOverdrawnBill      = fmt.Errorf("market engine: bill inventory overdrawn: %w", ErrInsufficientFunds)
	errReserveUnderfunded = fmt.Errorf("market engine: reserve cannot cover payment and deposit: %w", ErrInsufficientCollateral)
	errMintOverCap        = fmt.Errorf("market engine: insufficient collateral to mint: %w", ErrInsufficientCollateral)
	errRateBelowBenchmark = fmt.Errorf("market engine: current rate below benchmark stake rate: %w", ErrInsufficientCollateral)
	errMinerRateBreached  = fmt.Errorf("market engine: miner ownership below minimum rate: %w", ErrInsufficientCollateral)
	errStakeTooSmall      = fmt.Errorf("market engine: stake increase too small: %w", ErrInsufficientCollateral)
	errRemainderTooSmall  = fmt.Errorf("market engine: remaining share weight too low: %w", ErrInsufficientCollateral)
	errMinerRedeemOrder   = fmt.Errorf("market engine: miner can only redeem fully after all other shares: %w", ErrInsufficientCollateral)
	errRateDoesNotMeet    = fmt.Errorf("market engine: ownership fraction does not meet requested floor: %w", ErrInsufficientCollateral)
)
