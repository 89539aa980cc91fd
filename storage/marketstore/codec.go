package marketstore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"gridchain/crypto"
	"gridchain/native/market"
)

// Records mirror the engine types with RLP-friendly fields: addresses as raw
// key bytes, unix times as uint64, and rationals in big.Rat string form.

type makerRecord struct {
	Miner              []byte
	CurrentRate        string
	MinerRate          string
	TotalWeight        string
	TotalStaked        *big.Int
	BenchmarkStakeRate uint64
	RateUpdatedAt      uint64
}

type shareRecord struct {
	Owner  []byte
	Weight string
}

type billRecord struct {
	Owner        []byte
	BillID       uint64
	Unmatched    *big.Int
	Matched      *big.Int
	Price        uint64
	CreatedAt    uint64
	UpdatedAt    uint64
	ExpireOn     uint64
	DepositRatio uint64
}

type orderRecord struct {
	OrderID          uint64
	User             []byte
	Miner            []byte
	BillID           uint64
	UserPledge       *big.Int
	MinerLockPST     *big.Int
	MinerLockGRID    *big.Int
	SettlementPledge *big.Int
	LockPledge       *big.Int
	Price            *big.Int
	State            uint8
	DeliverStart     uint64
	LatestSettlement uint64
	MinerLockRSI     *big.Int
	MinerRSI         *big.Int
	UserRSI          *big.Int
	Deposit          *big.Int
	DepositValid     uint64
	CancelDate       uint64
}

type challengeRecord struct {
	OrderID           uint64
	PreMerkleRoot     [32]byte
	PreDataBlockCount uint64
	MerkleSubmitter   []byte
	ChallengeTimes    uint32
	State             uint8
	UserLock          *big.Int
	MinerPay          *big.Int
}

type statsRecord struct {
	Owner  []byte
	Amount *big.Int
}

type sampleRecord struct {
	Seq       uint64
	BillID    uint64
	Price     string
	CreatedAt uint64
}

type averageRecord struct {
	Total string
	Count uint64
	Avg   string
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "0/1"
	}
	return r.RatString()
}

func parseRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("marketstore: corrupt rational %q", s)
	}
	return r, nil
}

func parseAddr(b []byte) (crypto.Address, error) {
	return crypto.NewAddress(crypto.GridPrefix, b)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func encodeMaker(m *market.Maker) ([]byte, error) {
	return rlp.EncodeToBytes(&makerRecord{
		Miner:              m.Miner.Bytes(),
		CurrentRate:        ratString(m.CurrentRate),
		MinerRate:          ratString(m.MinerRate),
		TotalWeight:        ratString(m.TotalWeight),
		TotalStaked:        orZero(m.TotalStaked),
		BenchmarkStakeRate: m.BenchmarkStakeRate,
		RateUpdatedAt:      uint64(m.RateUpdatedAt),
	})
}

func decodeMaker(value []byte) (*market.Maker, error) {
	var rec makerRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	miner, err := parseAddr(rec.Miner)
	if err != nil {
		return nil, err
	}
	current, err := parseRat(rec.CurrentRate)
	if err != nil {
		return nil, err
	}
	minerRate, err := parseRat(rec.MinerRate)
	if err != nil {
		return nil, err
	}
	weight, err := parseRat(rec.TotalWeight)
	if err != nil {
		return nil, err
	}
	return &market.Maker{
		Miner:              miner,
		CurrentRate:        current,
		MinerRate:          minerRate,
		TotalWeight:        weight,
		TotalStaked:        orZero(rec.TotalStaked),
		BenchmarkStakeRate: rec.BenchmarkStakeRate,
		RateUpdatedAt:      int64(rec.RateUpdatedAt),
	}, nil
}

func encodeShare(s *market.PoolShare) ([]byte, error) {
	return rlp.EncodeToBytes(&shareRecord{
		Owner:  s.Owner.Bytes(),
		Weight: ratString(s.Weight),
	})
}

func decodeShare(value []byte) (*market.PoolShare, error) {
	var rec shareRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	owner, err := parseAddr(rec.Owner)
	if err != nil {
		return nil, err
	}
	weight, err := parseRat(rec.Weight)
	if err != nil {
		return nil, err
	}
	return &market.PoolShare{Owner: owner, Weight: weight}, nil
}

func encodeBill(b *market.Bill) ([]byte, error) {
	return rlp.EncodeToBytes(&billRecord{
		Owner:        b.Owner.Bytes(),
		BillID:       b.BillID,
		Unmatched:    orZero(b.Unmatched),
		Matched:      orZero(b.Matched),
		Price:        b.Price,
		CreatedAt:    uint64(b.CreatedAt),
		UpdatedAt:    uint64(b.UpdatedAt),
		ExpireOn:     uint64(b.ExpireOn),
		DepositRatio: b.DepositRatio,
	})
}

func decodeBill(value []byte) (*market.Bill, error) {
	var rec billRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	owner, err := parseAddr(rec.Owner)
	if err != nil {
		return nil, err
	}
	return &market.Bill{
		Owner:        owner,
		BillID:       rec.BillID,
		Unmatched:    orZero(rec.Unmatched),
		Matched:      orZero(rec.Matched),
		Price:        rec.Price,
		CreatedAt:    int64(rec.CreatedAt),
		UpdatedAt:    int64(rec.UpdatedAt),
		ExpireOn:     int64(rec.ExpireOn),
		DepositRatio: rec.DepositRatio,
	}, nil
}

func encodeOrder(o *market.Order) ([]byte, error) {
	return rlp.EncodeToBytes(&orderRecord{
		OrderID:          o.OrderID,
		User:             o.User.Bytes(),
		Miner:            o.Miner.Bytes(),
		BillID:           o.BillID,
		UserPledge:       orZero(o.UserPledge),
		MinerLockPST:     orZero(o.MinerLockPST),
		MinerLockGRID:    orZero(o.MinerLockGRID),
		SettlementPledge: orZero(o.SettlementPledge),
		LockPledge:       orZero(o.LockPledge),
		Price:            orZero(o.Price),
		State:            uint8(o.State),
		DeliverStart:     uint64(o.DeliverStart),
		LatestSettlement: uint64(o.LatestSettlement),
		MinerLockRSI:     orZero(o.MinerLockRSI),
		MinerRSI:         orZero(o.MinerRSI),
		UserRSI:          orZero(o.UserRSI),
		Deposit:          orZero(o.Deposit),
		DepositValid:     uint64(o.DepositValid),
		CancelDate:       uint64(o.CancelDate),
	})
}

func decodeOrder(value []byte) (*market.Order, error) {
	var rec orderRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	user, err := parseAddr(rec.User)
	if err != nil {
		return nil, err
	}
	miner, err := parseAddr(rec.Miner)
	if err != nil {
		return nil, err
	}
	return &market.Order{
		OrderID:          rec.OrderID,
		User:             user,
		Miner:            miner,
		BillID:           rec.BillID,
		UserPledge:       orZero(rec.UserPledge),
		MinerLockPST:     orZero(rec.MinerLockPST),
		MinerLockGRID:    orZero(rec.MinerLockGRID),
		SettlementPledge: orZero(rec.SettlementPledge),
		LockPledge:       orZero(rec.LockPledge),
		Price:            orZero(rec.Price),
		State:            market.OrderState(rec.State),
		DeliverStart:     int64(rec.DeliverStart),
		LatestSettlement: int64(rec.LatestSettlement),
		MinerLockRSI:     orZero(rec.MinerLockRSI),
		MinerRSI:         orZero(rec.MinerRSI),
		UserRSI:          orZero(rec.UserRSI),
		Deposit:          orZero(rec.Deposit),
		DepositValid:     int64(rec.DepositValid),
		CancelDate:       int64(rec.CancelDate),
	}, nil
}

func encodeChallenge(c *market.Challenge) ([]byte, error) {
	return rlp.EncodeToBytes(&challengeRecord{
		OrderID:           c.OrderID,
		PreMerkleRoot:     c.PreMerkleRoot,
		PreDataBlockCount: c.PreDataBlockCount,
		MerkleSubmitter:   c.MerkleSubmitter.Bytes(),
		ChallengeTimes:    c.ChallengeTimes,
		State:             uint8(c.State),
		UserLock:          orZero(c.UserLock),
		MinerPay:          orZero(c.MinerPay),
	})
}

func decodeChallenge(value []byte) (*market.Challenge, error) {
	var rec challengeRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	submitter, err := parseAddr(rec.MerkleSubmitter)
	if err != nil {
		return nil, err
	}
	return &market.Challenge{
		OrderID:           rec.OrderID,
		PreMerkleRoot:     rec.PreMerkleRoot,
		PreDataBlockCount: rec.PreDataBlockCount,
		MerkleSubmitter:   submitter,
		ChallengeTimes:    rec.ChallengeTimes,
		State:             market.ChallengeState(rec.State),
		UserLock:          orZero(rec.UserLock),
		MinerPay:          orZero(rec.MinerPay),
	}, nil
}

func encodeStats(s *market.PSTStats) ([]byte, error) {
	return rlp.EncodeToBytes(&statsRecord{Owner: s.Owner.Bytes(), Amount: orZero(s.Amount)})
}

func decodeStats(value []byte) (*market.PSTStats, error) {
	var rec statsRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	owner, err := parseAddr(rec.Owner)
	if err != nil {
		return nil, err
	}
	return &market.PSTStats{Owner: owner, Amount: orZero(rec.Amount)}, nil
}

func encodeSample(s *market.PriceSample) ([]byte, error) {
	return rlp.EncodeToBytes(&sampleRecord{
		Seq:       s.Seq,
		BillID:    s.BillID,
		Price:     ratString(s.Price),
		CreatedAt: uint64(s.CreatedAt),
	})
}

func decodeSample(value []byte) (*market.PriceSample, error) {
	var rec sampleRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	price, err := parseRat(rec.Price)
	if err != nil {
		return nil, err
	}
	return &market.PriceSample{
		Seq:       rec.Seq,
		BillID:    rec.BillID,
		Price:     price,
		CreatedAt: int64(rec.CreatedAt),
	}, nil
}

func encodeAverage(a *market.PriceAverage) ([]byte, error) {
	return rlp.EncodeToBytes(&averageRecord{
		Total: ratString(a.Total),
		Count: a.Count,
		Avg:   ratString(a.Avg),
	})
}

func decodeAverage(value []byte) (*market.PriceAverage, error) {
	var rec averageRecord
	if err := rlp.DecodeBytes(value, &rec); err != nil {
		return nil, err
	}
	total, err := parseRat(rec.Total)
	if err != nil {
		return nil, err
	}
	avg, err := parseRat(rec.Avg)
	if err != nil {
		return nil, err
	}
	return &market.PriceAverage{Total: total, Count: rec.Count, Avg: avg}, nil
}
