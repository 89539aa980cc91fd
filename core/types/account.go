package types

import "math/big"

// LockedBalance is a time-locked credit of the reserve currency. The amount
// becomes spendable once UnlockTime (unix seconds) has elapsed. Redemption
// payouts are delivered this way rather than as immediately liquid funds.
type LockedBalance struct {
	Amount     *big.Int `json:"amount"`
	UnlockTime int64    `json:"unlockTime"`
}

// Account holds the token balances for a single participant. BalanceGRID is
// the free reserve-currency balance, BalancePST the free proof-of-service
// token balance. LockedGRID entries are appended by delayed credits and are
// not spendable until they mature.
type Account struct {
	Nonce       uint64          `json:"nonce"`
	BalanceGRID *big.Int        `json:"balanceGRID"`
	BalancePST  *big.Int        `json:"balancePST"`
	LockedGRID  []LockedBalance `json:"lockedGRID,omitempty"`
}

// EnsureBalances replaces nil balance pointers with zero values so callers can
// mutate the account without nil checks.
func (a *Account) EnsureBalances() {
	if a == nil {
		return
	}
	if a.BalanceGRID == nil {
		a.BalanceGRID = big.NewInt(0)
	}
	if a.BalancePST == nil {
		a.BalancePST = big.NewInt(0)
	}
}
