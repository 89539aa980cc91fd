// Package marketstore persists the market engine's state in a key-value
// database. Records are RLP encoded; the rate-ordered maker index required by
// liquidation is kept as an explicit in-memory sorted array maintained
// alongside the primary keyed store and rebuilt on open.
package marketstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"gridchain/crypto"
	"gridchain/native/market"
	"gridchain/storage"
)

var (
	prefixMaker     = []byte("mk:")
	prefixShare     = []byte("sh:")
	prefixBill      = []byte("bl:")
	prefixOrder     = []byte("or:")
	prefixChallenge = []byte("ch:")
	prefixStats     = []byte("ps:")
	prefixSample    = []byte("pr:")
	prefixConfig    = []byte("cf:")
	prefixAccount   = []byte("ac:")
	keyAverage      = []byte("avg")
	keyMinted       = []byte("minted")
	keySampleSeq    = []byte("seq:price")
)

// rateEntry is one element of the in-memory rate index.
type rateEntry struct {
	miner crypto.Address
	rate  *big.Rat
}

// Store implements the market engine's state contract and its balance ledger
// over a storage.Database. The engine is host-serialized, so the store does
// no locking of its own.
type Store struct {
	db        storage.Database
	log       *slog.Logger
	rateIndex []rateEntry
}

// Open wraps the database and rebuilds the rate index from the persisted
// maker pools.
func Open(db storage.Database, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{db: db, log: log}
	if err := s.rebuildRateIndex(); err != nil {
		return nil, err
	}
	s.log.Info("market store opened", "makers", len(s.rateIndex))
	return s, nil
}

func (s *Store) rebuildRateIndex() error {
	s.rateIndex = s.rateIndex[:0]
	err := s.db.Iterate(prefixMaker, func(_, value []byte) error {
		maker, err := decodeMaker(value)
		if err != nil {
			return err
		}
		s.rateIndex = append(s.rateIndex, rateEntry{miner: maker.Miner, rate: maker.CurrentRate})
		return nil
	})
	if err != nil {
		return err
	}
	s.sortRateIndex()
	return nil
}

func (s *Store) sortRateIndex() {
	sort.SliceStable(s.rateIndex, func(i, j int) bool {
		return s.rateIndex[i].rate.Cmp(s.rateIndex[j].rate) < 0
	})
}

func (s *Store) indexDelete(miner crypto.Address) {
	for i := range s.rateIndex {
		if s.rateIndex[i].miner.Equal(miner) {
			s.rateIndex = append(s.rateIndex[:i], s.rateIndex[i+1:]...)
			return
		}
	}
}

func (s *Store) indexUpsert(miner crypto.Address, rate *big.Rat) {
	s.indexDelete(miner)
	s.rateIndex = append(s.rateIndex, rateEntry{miner: miner, rate: new(big.Rat).Set(rate)})
	s.sortRateIndex()
}

// --- key helpers ---

func addrKey(prefix []byte, addr crypto.Address) []byte {
	return append(append([]byte(nil), prefix...), addr.Bytes()...)
}

func pairKey(prefix []byte, a, b crypto.Address) []byte {
	key := append(append([]byte(nil), prefix...), a.Bytes()...)
	return append(key, b.Bytes()...)
}

func idKey(prefix []byte, owner crypto.Address, id uint64) []byte {
	key := append(append([]byte(nil), prefix...), owner.Bytes()...)
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return append(key, raw[:]...)
}

func seqKey(prefix []byte, seq uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], seq)
	return append(append([]byte(nil), prefix...), raw[:]...)
}

func configKey(key string) []byte {
	return append(append([]byte(nil), prefixConfig...), []byte(key)...)
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// --- makers ---

func (s *Store) GetMaker(miner crypto.Address) (*market.Maker, error) {
	value, ok, err := s.get(addrKey(prefixMaker, miner))
	if err != nil || !ok {
		return nil, err
	}
	return decodeMaker(value)
}

func (s *Store) PutMaker(maker *market.Maker) error {
	value, err := encodeMaker(maker)
	if err != nil {
		return err
	}
	if err := s.db.Put(addrKey(prefixMaker, maker.Miner), value); err != nil {
		return err
	}
	s.indexUpsert(maker.Miner, maker.CurrentRate)
	return nil
}

func (s *Store) DeleteMaker(miner crypto.Address) error {
	if err := s.db.Delete(addrKey(prefixMaker, miner)); err != nil {
		return err
	}
	s.indexDelete(miner)
	return nil
}

func (s *Store) MakersByRate() ([]*market.Maker, error) {
	makers := make([]*market.Maker, 0, len(s.rateIndex))
	for _, entry := range s.rateIndex {
		maker, err := s.GetMaker(entry.miner)
		if err != nil {
			return nil, err
		}
		if maker == nil {
			return nil, fmt.Errorf("marketstore: rate index references missing maker %s", entry.miner)
		}
		makers = append(makers, maker)
	}
	return makers, nil
}

// --- pool shares ---

func (s *Store) GetShare(miner, owner crypto.Address) (*market.PoolShare, error) {
	value, ok, err := s.get(pairKey(prefixShare, miner, owner))
	if err != nil || !ok {
		return nil, err
	}
	return decodeShare(value)
}

func (s *Store) PutShare(miner crypto.Address, share *market.PoolShare) error {
	value, err := encodeShare(share)
	if err != nil {
		return err
	}
	return s.db.Put(pairKey(prefixShare, miner, share.Owner), value)
}

func (s *Store) DeleteShare(miner, owner crypto.Address) error {
	return s.db.Delete(pairKey(prefixShare, miner, owner))
}

func (s *Store) SharesByMiner(miner crypto.Address) ([]*market.PoolShare, error) {
	prefix := addrKey(prefixShare, miner)
	var shares []*market.PoolShare
	err := s.db.Iterate(prefix, func(_, value []byte) error {
		share, err := decodeShare(value)
		if err != nil {
			return err
		}
		shares = append(shares, share)
		return nil
	})
	return shares, err
}

// --- bills ---

func (s *Store) GetBill(owner crypto.Address, billID uint64) (*market.Bill, error) {
	value, ok, err := s.get(idKey(prefixBill, owner, billID))
	if err != nil || !ok {
		return nil, err
	}
	return decodeBill(value)
}

func (s *Store) PutBill(bill *market.Bill) error {
	value, err := encodeBill(bill)
	if err != nil {
		return err
	}
	return s.db.Put(idKey(prefixBill, bill.Owner, bill.BillID), value)
}

func (s *Store) DeleteBill(owner crypto.Address, billID uint64) error {
	return s.db.Delete(idKey(prefixBill, owner, billID))
}

// BillsByOwner returns the owner's bills in ascending bill-id order. The
// big-endian id suffix of the bill keys makes the database's byte order the
// id order.
func (s *Store) BillsByOwner(owner crypto.Address) ([]*market.Bill, error) {
	prefix := addrKey(prefixBill, owner)
	var bills []*market.Bill
	err := s.db.Iterate(prefix, func(_, value []byte) error {
		bill, err := decodeBill(value)
		if err != nil {
			return err
		}
		bills = append(bills, bill)
		return nil
	})
	return bills, err
}

// --- orders and challenges ---

func (s *Store) GetOrder(orderID uint64) (*market.Order, error) {
	value, ok, err := s.get(seqKey(prefixOrder, orderID))
	if err != nil || !ok {
		return nil, err
	}
	return decodeOrder(value)
}

func (s *Store) PutOrder(order *market.Order) error {
	value, err := encodeOrder(order)
	if err != nil {
		return err
	}
	return s.db.Put(seqKey(prefixOrder, order.OrderID), value)
}

func (s *Store) GetChallenge(orderID uint64) (*market.Challenge, error) {
	value, ok, err := s.get(seqKey(prefixChallenge, orderID))
	if err != nil || !ok {
		return nil, err
	}
	return decodeChallenge(value)
}

func (s *Store) PutChallenge(challenge *market.Challenge) error {
	value, err := encodeChallenge(challenge)
	if err != nil {
		return err
	}
	return s.db.Put(seqKey(prefixChallenge, challenge.OrderID), value)
}

// --- mint stats ---

func (s *Store) GetPSTStats(owner crypto.Address) (*market.PSTStats, error) {
	value, ok, err := s.get(addrKey(prefixStats, owner))
	if err != nil || !ok {
		return nil, err
	}
	return decodeStats(value)
}

func (s *Store) PutPSTStats(stats *market.PSTStats) error {
	value, err := encodeStats(stats)
	if err != nil {
		return err
	}
	return s.db.Put(addrKey(prefixStats, stats.Owner), value)
}

func (s *Store) TotalMinted() (*big.Int, error) {
	value, ok, err := s.get(keyMinted)
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	var total big.Int
	if err := rlp.DecodeBytes(value, &total); err != nil {
		return nil, err
	}
	return &total, nil
}

func (s *Store) SetTotalMinted(total *big.Int) error {
	value, err := rlp.EncodeToBytes(total)
	if err != nil {
		return err
	}
	return s.db.Put(keyMinted, value)
}

// --- price window ---

func (s *Store) PriceSamples() ([]*market.PriceSample, error) {
	var samples []*market.PriceSample
	err := s.db.Iterate(prefixSample, func(_, value []byte) error {
		sample, err := decodeSample(value)
		if err != nil {
			return err
		}
		samples = append(samples, sample)
		return nil
	})
	return samples, err
}

func (s *Store) AppendPriceSample(sample *market.PriceSample) error {
	seq, err := s.nextSampleSeq()
	if err != nil {
		return err
	}
	sample.Seq = seq
	value, err := encodeSample(sample)
	if err != nil {
		return err
	}
	return s.db.Put(seqKey(prefixSample, seq), value)
}

func (s *Store) DeletePriceSample(seq uint64) error {
	return s.db.Delete(seqKey(prefixSample, seq))
}

func (s *Store) nextSampleSeq() (uint64, error) {
	value, ok, err := s.get(keySampleSeq)
	if err != nil {
		return 0, err
	}
	var seq uint64
	if ok {
		seq = binary.BigEndian.Uint64(value)
	}
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], seq+1)
	if err := s.db.Put(keySampleSeq, raw[:]); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) GetPriceAverage() (*market.PriceAverage, error) {
	value, ok, err := s.get(keyAverage)
	if err != nil || !ok {
		return nil, err
	}
	return decodeAverage(value)
}

func (s *Store) PutPriceAverage(avg *market.PriceAverage) error {
	value, err := encodeAverage(avg)
	if err != nil {
		return err
	}
	return s.db.Put(keyAverage, value)
}

// --- config overrides ---

func (s *Store) GetConfig(key string) (uint64, bool, error) {
	value, ok, err := s.get(configKey(key))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("marketstore: corrupt config value for %q", key)
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func (s *Store) PutConfig(key string, value uint64) error {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], value)
	return s.db.Put(configKey(key), raw[:])
}
