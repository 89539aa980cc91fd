package marketstore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"gridchain/core/types"
	"gridchain/crypto"
	"gridchain/native/market"
)

// accountRecord is the RLP shape of a types.Account.
type accountRecord struct {
	Nonce       uint64
	BalanceGRID *big.Int
	BalancePST  *big.Int
	Locked      []lockedRecord
}

type lockedRecord struct {
	Amount     *big.Int
	UnlockTime uint64
}

func (s *Store) getAccount(owner crypto.Address) (*types.Account, error) {
	value, ok, err := s.get(addrKey(prefixAccount, owner))
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if ok {
		var rec accountRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return nil, err
		}
		account.Nonce = rec.Nonce
		account.BalanceGRID = rec.BalanceGRID
		account.BalancePST = rec.BalancePST
		for _, l := range rec.Locked {
			account.LockedGRID = append(account.LockedGRID, types.LockedBalance{
				Amount:     orZero(l.Amount),
				UnlockTime: int64(l.UnlockTime),
			})
		}
	}
	account.EnsureBalances()
	return account, nil
}

func (s *Store) putAccount(owner crypto.Address, account *types.Account) error {
	rec := accountRecord{
		Nonce:       account.Nonce,
		BalanceGRID: orZero(account.BalanceGRID),
		BalancePST:  orZero(account.BalancePST),
	}
	for _, l := range account.LockedGRID {
		rec.Locked = append(rec.Locked, lockedRecord{
			Amount:     orZero(l.Amount),
			UnlockTime: uint64(l.UnlockTime),
		})
	}
	value, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return err
	}
	return s.db.Put(addrKey(prefixAccount, owner), value)
}

func balanceFor(account *types.Account, token string) (*big.Int, error) {
	switch token {
	case market.TokenGRID:
		return account.BalanceGRID, nil
	case market.TokenPST:
		return account.BalancePST, nil
	default:
		return nil, fmt.Errorf("marketstore: unknown token %q", token)
	}
}

// Balance returns the free balance of the given token.
func (s *Store) Balance(owner crypto.Address, token string) (*big.Int, error) {
	account, err := s.getAccount(owner)
	if err != nil {
		return nil, err
	}
	balance, err := balanceFor(account, token)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(balance), nil
}

// Debit removes amount from the owner's free balance.
func (s *Store) Debit(owner crypto.Address, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: negative debit", market.ErrInvalidArgument)
	}
	account, err := s.getAccount(owner)
	if err != nil {
		return err
	}
	balance, err := balanceFor(account, token)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance %s below %s", market.ErrInsufficientFunds, token, balance, amount)
	}
	balance.Sub(balance, amount)
	return s.putAccount(owner, account)
}

// Credit adds amount to the owner's free balance.
func (s *Store) Credit(owner crypto.Address, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: negative credit", market.ErrInvalidArgument)
	}
	account, err := s.getAccount(owner)
	if err != nil {
		return err
	}
	balance, err := balanceFor(account, token)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return s.putAccount(owner, account)
}

// CreditLocked appends a time-locked credit. Only the reserve currency
// supports delayed credits.
func (s *Store) CreditLocked(owner crypto.Address, token string, amount *big.Int, unlockTime int64) error {
	if token != market.TokenGRID {
		return fmt.Errorf("%w: token %q cannot be time-locked", market.ErrInvalidArgument, token)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive locked credit", market.ErrInvalidArgument)
	}
	account, err := s.getAccount(owner)
	if err != nil {
		return err
	}
	account.LockedGRID = append(account.LockedGRID, types.LockedBalance{
		Amount:     new(big.Int).Set(amount),
		UnlockTime: unlockTime,
	})
	return s.putAccount(owner, account)
}

// ClaimMatured moves every locked credit whose unlock time has passed into the
// owner's free balance and returns the total released.
func (s *Store) ClaimMatured(owner crypto.Address, now int64) (*big.Int, error) {
	account, err := s.getAccount(owner)
	if err != nil {
		return nil, err
	}
	released := big.NewInt(0)
	remaining := account.LockedGRID[:0]
	for _, l := range account.LockedGRID {
		if l.UnlockTime <= now {
			released.Add(released, l.Amount)
			continue
		}
		remaining = append(remaining, l)
	}
	if released.Sign() == 0 {
		return released, nil
	}
	account.LockedGRID = remaining
	account.BalanceGRID.Add(account.BalanceGRID, released)
	if err := s.putAccount(owner, account); err != nil {
		return nil, err
	}
	return released, nil
}
