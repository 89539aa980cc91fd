package market

import (
	"encoding/binary"
	"math/big"

	"lukechampine.com/blake3"

	"gridchain/crypto"
)

// contentID derives a deterministic 64-bit identifier from a structured
// record: the first eight bytes of a blake3 digest over the length-prefixed
// fields. Bill ids use it directly; order ids additionally linear-probe on
// collision.
func contentID(fields ...[]byte) uint64 {
	h := blake3.New(32, nil)
	var prefix [8]byte
	for _, f := range fields {
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(f)))
		_, _ = h.Write(prefix[:])
		_, _ = h.Write(f)
	}
	return binary.LittleEndian.Uint64(h.Sum(nil)[:8])
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func int64Bytes(v int64) []byte {
	return uint64Bytes(uint64(v))
}

func billID(owner crypto.Address, amount *big.Int, priceFixed uint64, createdAt int64, memo string) uint64 {
	return contentID(
		owner.Bytes(),
		amount.Bytes(),
		uint64Bytes(priceFixed),
		int64Bytes(createdAt),
		[]byte(memo),
	)
}

func orderSeedID(user, miner crypto.Address, billID uint64, amount, reserve *big.Int, memo string, createdAt int64) uint64 {
	return contentID(
		user.Bytes(),
		miner.Bytes(),
		uint64Bytes(billID),
		amount.Bytes(),
		reserve.Bytes(),
		[]byte(memo),
		int64Bytes(createdAt),
	)
}
