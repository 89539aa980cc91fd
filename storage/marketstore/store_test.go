package marketstore

import (
	"bytes"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"gridchain/crypto"
	"gridchain/native/market"
	"gridchain/storage"
)

func testAddr(b byte) crypto.Address {
	return crypto.MustNewAddress(crypto.GridPrefix, bytes.Repeat([]byte{b}, 20))
}

func openTestStore(t *testing.T) (*Store, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	store, err := Open(db, slog.Default())
	require.NoError(t, err)
	return store, db
}

func TestMakerRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	miner := testAddr(1)

	got, err := store.GetMaker(miner)
	require.NoError(t, err)
	require.Nil(t, got)

	maker := &market.Maker{
		Miner:              miner,
		CurrentRate:        big.NewRat(19, 10),
		MinerRate:          big.NewRat(1, 5),
		TotalWeight:        big.NewRat(10_000, 1),
		TotalStaked:        big.NewInt(9_500_000),
		BenchmarkStakeRate: 200,
		RateUpdatedAt:      1_700_000_000,
	}
	require.NoError(t, store.PutMaker(maker))

	got, err = store.GetMaker(miner)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Miner.Equal(miner))
	require.Zero(t, got.CurrentRate.Cmp(maker.CurrentRate))
	require.Zero(t, got.MinerRate.Cmp(maker.MinerRate))
	require.Zero(t, got.TotalWeight.Cmp(maker.TotalWeight))
	require.Zero(t, got.TotalStaked.Cmp(maker.TotalStaked))
	require.Equal(t, maker.BenchmarkStakeRate, got.BenchmarkStakeRate)
	require.Equal(t, maker.RateUpdatedAt, got.RateUpdatedAt)

	require.NoError(t, store.DeleteMaker(miner))
	got, err = store.GetMaker(miner)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMakersByRateOrdering(t *testing.T) {
	store, _ := openTestStore(t)
	rates := map[byte]*big.Rat{
		1: big.NewRat(3, 1),
		2: big.NewRat(1, 2),
		3: big.NewRat(2, 1),
	}
	for b, rate := range rates {
		require.NoError(t, store.PutMaker(&market.Maker{
			Miner:       testAddr(b),
			CurrentRate: rate,
			MinerRate:   big.NewRat(1, 1),
			TotalWeight: big.NewRat(10_000, 1),
			TotalStaked: big.NewInt(1),
		}))
	}

	makers, err := store.MakersByRate()
	require.NoError(t, err)
	require.Len(t, makers, 3)
	for i := 1; i < len(makers); i++ {
		require.LessOrEqual(t, makers[i-1].CurrentRate.Cmp(makers[i].CurrentRate), 0)
	}
	require.True(t, makers[0].Miner.Equal(testAddr(2)))
	require.True(t, makers[2].Miner.Equal(testAddr(1)))

	// Updating a rate re-sorts the index.
	require.NoError(t, store.PutMaker(&market.Maker{
		Miner:       testAddr(1),
		CurrentRate: big.NewRat(1, 10),
		MinerRate:   big.NewRat(1, 1),
		TotalWeight: big.NewRat(10_000, 1),
		TotalStaked: big.NewInt(1),
	}))
	makers, err = store.MakersByRate()
	require.NoError(t, err)
	require.True(t, makers[0].Miner.Equal(testAddr(1)))
}

func TestRateIndexRebuildOnOpen(t *testing.T) {
	store, db := openTestStore(t)
	for b := byte(1); b <= 3; b++ {
		require.NoError(t, store.PutMaker(&market.Maker{
			Miner:       testAddr(b),
			CurrentRate: big.NewRat(int64(4-b), 1),
			MinerRate:   big.NewRat(1, 1),
			TotalWeight: big.NewRat(10_000, 1),
			TotalStaked: big.NewInt(1),
		}))
	}

	reopened, err := Open(db, slog.Default())
	require.NoError(t, err)
	makers, err := reopened.MakersByRate()
	require.NoError(t, err)
	require.Len(t, makers, 3)
	require.True(t, makers[0].Miner.Equal(testAddr(3)))
	require.True(t, makers[2].Miner.Equal(testAddr(1)))
}

func TestBillsByOwnerAscendingID(t *testing.T) {
	store, _ := openTestStore(t)
	owner := testAddr(1)
	for _, id := range []uint64{42, 7, 1 << 60, 9} {
		require.NoError(t, store.PutBill(&market.Bill{
			Owner:     owner,
			BillID:    id,
			Unmatched: big.NewInt(10),
			Matched:   big.NewInt(0),
			Price:     1 << 32,
			CreatedAt: 1_700_000_000,
			UpdatedAt: 1_700_000_000,
			ExpireOn:  1_800_000_000,
		}))
	}
	// A different owner's bill stays out of the listing.
	require.NoError(t, store.PutBill(&market.Bill{
		Owner: testAddr(2), BillID: 3,
		Unmatched: big.NewInt(1), Matched: big.NewInt(0),
	}))

	bills, err := store.BillsByOwner(owner)
	require.NoError(t, err)
	require.Len(t, bills, 4)
	for i := 1; i < len(bills); i++ {
		require.Less(t, bills[i-1].BillID, bills[i].BillID)
	}
}

func TestOrderAndChallengeRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	order := &market.Order{
		OrderID:          99,
		User:             testAddr(1),
		Miner:            testAddr(2),
		BillID:           7,
		UserPledge:       big.NewInt(500),
		MinerLockPST:     big.NewInt(100),
		MinerLockGRID:    big.NewInt(2_000_000),
		SettlementPledge: big.NewInt(0),
		LockPledge:       big.NewInt(1_000_000),
		Price:            big.NewInt(1_000_000),
		State:            market.OrderStateWaiting,
		MinerLockRSI:     big.NewInt(0),
		MinerRSI:         big.NewInt(0),
		UserRSI:          big.NewInt(0),
		Deposit:          big.NewInt(0),
		DepositValid:     1_700_200_000,
	}
	require.NoError(t, store.PutOrder(order))
	got, err := store.GetOrder(99)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, order.OrderID, got.OrderID)
	require.True(t, got.User.Equal(order.User))
	require.True(t, got.Miner.Equal(order.Miner))
	require.Zero(t, got.LockPledge.Cmp(order.LockPledge))
	require.Zero(t, got.MinerLockGRID.Cmp(order.MinerLockGRID))
	require.Equal(t, order.State, got.State)
	require.Equal(t, order.DepositValid, got.DepositValid)

	challenge := &market.Challenge{
		OrderID:         99,
		MerkleSubmitter: testAddr(3),
		State:           market.ChallengePrepare,
		UserLock:        big.NewInt(0),
		MinerPay:        big.NewInt(0),
	}
	require.NoError(t, store.PutChallenge(challenge))
	gotCh, err := store.GetChallenge(99)
	require.NoError(t, err)
	require.NotNil(t, gotCh)
	require.Equal(t, challenge.OrderID, gotCh.OrderID)
	require.Equal(t, challenge.State, gotCh.State)
	require.True(t, gotCh.MerkleSubmitter.Equal(challenge.MerkleSubmitter))
}

func TestPriceSampleSequencing(t *testing.T) {
	store, _ := openTestStore(t)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.AppendPriceSample(&market.PriceSample{
			BillID:    uint64(i),
			Price:     big.NewRat(i, 1),
			CreatedAt: 1_700_000_000 + i,
		}))
	}
	samples, err := store.PriceSamples()
	require.NoError(t, err)
	require.Len(t, samples, 3)
	for i := 1; i < len(samples); i++ {
		require.Less(t, samples[i-1].Seq, samples[i].Seq)
	}

	require.NoError(t, store.DeletePriceSample(samples[0].Seq))
	samples, err = store.PriceSamples()
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// Sequence numbers keep growing after deletions.
	require.NoError(t, store.AppendPriceSample(&market.PriceSample{
		BillID: 9, Price: big.NewRat(4, 1), CreatedAt: 1_700_000_100,
	}))
	samples, err = store.PriceSamples()
	require.NoError(t, err)
	require.Equal(t, uint64(3), samples[len(samples)-1].Seq)
}

func TestTotalMintedAndConfig(t *testing.T) {
	store, _ := openTestStore(t)

	total, err := store.TotalMinted()
	require.NoError(t, err)
	require.Zero(t, total.Sign())
	require.NoError(t, store.SetTotalMinted(big.NewInt(1234)))
	total, err = store.TotalMinted()
	require.NoError(t, err)
	require.Zero(t, total.Cmp(big.NewInt(1234)))

	_, ok, err := store.GetConfig(market.ConfigKeyBenchmarkRate)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, store.PutConfig(market.ConfigKeyBenchmarkRate, 150))
	value, ok, err := store.GetConfig(market.ConfigKeyBenchmarkRate)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(150), value)
}

func TestLedgerBalances(t *testing.T) {
	store, _ := openTestStore(t)
	owner := testAddr(1)

	bal, err := store.Balance(owner, market.TokenGRID)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, store.Credit(owner, market.TokenGRID, big.NewInt(1000)))
	require.NoError(t, store.Credit(owner, market.TokenPST, big.NewInt(50)))

	err = store.Debit(owner, market.TokenGRID, big.NewInt(2000))
	require.ErrorIs(t, err, market.ErrInsufficientFunds)

	require.NoError(t, store.Debit(owner, market.TokenGRID, big.NewInt(400)))
	bal, err = store.Balance(owner, market.TokenGRID)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(big.NewInt(600)))
	bal, err = store.Balance(owner, market.TokenPST)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(big.NewInt(50)))
}

func TestLedgerLockedCredits(t *testing.T) {
	store, _ := openTestStore(t)
	owner := testAddr(1)

	err := store.CreditLocked(owner, market.TokenPST, big.NewInt(10), 1_700_000_500)
	require.ErrorIs(t, err, market.ErrInvalidArgument)

	require.NoError(t, store.CreditLocked(owner, market.TokenGRID, big.NewInt(250), 1_700_000_500))
	require.NoError(t, store.CreditLocked(owner, market.TokenGRID, big.NewInt(750), 1_700_900_000))

	// Locked credits are not spendable.
	bal, err := store.Balance(owner, market.TokenGRID)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	released, err := store.ClaimMatured(owner, 1_700_000_500)
	require.NoError(t, err)
	require.Zero(t, released.Cmp(big.NewInt(250)))
	bal, err = store.Balance(owner, market.TokenGRID)
	require.NoError(t, err)
	require.Zero(t, bal.Cmp(big.NewInt(250)))

	// The unmatured entry stays locked until its own unlock time.
	released, err = store.ClaimMatured(owner, 1_700_000_600)
	require.NoError(t, err)
	require.Zero(t, released.Sign())
	released, err = store.ClaimMatured(owner, 1_700_900_000)
	require.NoError(t, err)
	require.Zero(t, released.Cmp(big.NewInt(750)))
}

func TestShareAndStatsRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	miner, owner := testAddr(1), testAddr(2)

	require.NoError(t, store.PutShare(miner, &market.PoolShare{Owner: owner, Weight: big.NewRat(5_000, 1)}))
	require.NoError(t, store.PutShare(miner, &market.PoolShare{Owner: miner, Weight: big.NewRat(10_000, 1)}))

	share, err := store.GetShare(miner, owner)
	require.NoError(t, err)
	require.NotNil(t, share)
	require.Zero(t, share.Weight.Cmp(big.NewRat(5_000, 1)))

	shares, err := store.SharesByMiner(miner)
	require.NoError(t, err)
	require.Len(t, shares, 2)

	require.NoError(t, store.DeleteShare(miner, owner))
	shares, err = store.SharesByMiner(miner)
	require.NoError(t, err)
	require.Len(t, shares, 1)

	require.NoError(t, store.PutPSTStats(&market.PSTStats{Owner: miner, Amount: big.NewInt(666)}))
	stats, err := store.GetPSTStats(miner)
	require.NoError(t, err)
	require.NotNil(t, stats)
	require.Zero(t, stats.Amount.Cmp(big.NewInt(666)))
}

func TestPriceAverageRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)

	avg, err := store.GetPriceAverage()
	require.NoError(t, err)
	require.Nil(t, avg)

	require.NoError(t, store.PutPriceAverage(&market.PriceAverage{
		Total: big.NewRat(7, 1),
		Count: 2,
		Avg:   big.NewRat(7, 2),
	}))
	avg, err = store.GetPriceAverage()
	require.NoError(t, err)
	require.NotNil(t, avg)
	require.Equal(t, uint64(2), avg.Count)
	require.Zero(t, avg.Avg.Cmp(big.NewRat(7, 2)))
}
