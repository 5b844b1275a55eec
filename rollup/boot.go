package rollup

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BootInfo is the fixed-size struct the replay client reads from the
// "boot" GlobalGeneric preimage key before it derives anything. Its
// ABI layout mirrors the aggregation-outputs encoding used elsewhere in
// the op-succinct stack: each field right-aligned into its own 32-byte
// word, hashes and addresses included.
type BootInfo struct {
	L1Head        common.Hash
	L2PreRoot     common.Hash
	L2PostRoot    common.Hash
	L2BlockNumber uint64
	ChainID       uint64
}

// wordSize is the EVM/ABI word width every BootInfo field is packed
// into, regardless of its natural size.
const wordSize = 32

// BootInfoSize is the fixed length of a BootInfo's ABI encoding: five
// 32-byte words.
const BootInfoSize = 5 * wordSize

// ABIEncode packs b into BootInfoSize bytes: L1Head, L2PreRoot, and
// L2PostRoot occupy a full word each; L2BlockNumber and ChainID are
// each right-aligned (big-endian) into their own word.
func (b BootInfo) ABIEncode() []byte {
	out := make([]byte, 0, BootInfoSize)
	out = append(out, b.L1Head.Bytes()...)
	out = append(out, b.L2PreRoot.Bytes()...)
	out = append(out, b.L2PostRoot.Bytes()...)

	var numWord [wordSize]byte
	binary.BigEndian.PutUint64(numWord[wordSize-8:], b.L2BlockNumber)
	out = append(out, numWord[:]...)

	var chainWord [wordSize]byte
	binary.BigEndian.PutUint64(chainWord[wordSize-8:], b.ChainID)
	out = append(out, chainWord[:]...)

	return out
}

// DecodeBootInfo reverses ABIEncode. Returns an error if data is not
// exactly BootInfoSize bytes, since the boot preimage is never
// partially populated.
func DecodeBootInfo(data []byte) (BootInfo, error) {
	if len(data) != BootInfoSize {
		return BootInfo{}, fmt.Errorf("rollup: boot info is %d bytes, want %d", len(data), BootInfoSize)
	}
	var b BootInfo
	b.L1Head = common.BytesToHash(data[0*wordSize : 1*wordSize])
	b.L2PreRoot = common.BytesToHash(data[1*wordSize : 2*wordSize])
	b.L2PostRoot = common.BytesToHash(data[2*wordSize : 3*wordSize])
	b.L2BlockNumber = binary.BigEndian.Uint64(data[3*wordSize+wordSize-8 : 4*wordSize])
	b.ChainID = binary.BigEndian.Uint64(data[4*wordSize+wordSize-8 : 5*wordSize])
	return b, nil
}
