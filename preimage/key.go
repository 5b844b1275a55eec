// Package preimage defines the wire-level vocabulary shared by the host
// and the replay client: preimage keys, hints, and the framed byte
// channels that carry them. It mirrors op-program's preimage package,
// generalized to the key taxonomy this spec names.
package preimage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyType tags the high byte of a Key, selecting how the key relates to
// its value.
type KeyType byte

const (
	_ KeyType = iota
	GlobalGenericType
	Keccak256Type
	_ // reserved, matches op-program's GenericLocalIndexKey gap
	Sha256Type
	BlobType
	PrecompileType
)

// Key is an opaque 32-byte preimage identifier. Byte 0 carries the
// KeyType; the remaining 31 bytes are type-specific.
type Key [32]byte

// Type returns the key's tag byte.
func (k Key) Type() KeyType {
	return KeyType(k[0])
}

// Bytes returns the key as a byte slice.
func (k Key) Bytes() []byte {
	return k[:]
}

func withType(h common.Hash, t KeyType) Key {
	var k Key
	copy(k[:], h[:])
	k[0] = byte(t)
	return k
}

// KeyFromHash builds a key directly from an already-known hash, for
// callers that have the digest (e.g. a header or output root) but not
// the preimage bytes the digest commits to.
func KeyFromHash(h common.Hash, t KeyType) Key {
	return withType(h, t)
}

// Keccak256Key builds the key for a value whose keccak256 digest equals
// the key (minus the type tag byte).
func Keccak256Key(value []byte) Key {
	return withType(crypto.Keccak256Hash(value), Keccak256Type)
}

// Sha256Key builds the key for a value whose sha256 digest equals the
// key (minus the type tag byte). Callers pass the digest directly since
// sha256 is not otherwise used by this package.
func Sha256Key(digest [32]byte) Key {
	return withType(common.Hash(digest), Sha256Type)
}

// PrecompileKey builds the key for a precompile call tuple: the key is
// keccak256(address || input), and the stored value is the precompile's
// output.
func PrecompileKey(address common.Address, input []byte) Key {
	data := make([]byte, 0, 20+len(input))
	data = append(data, address.Bytes()...)
	data = append(data, input...)
	return withType(crypto.Keccak256Hash(data), PrecompileType)
}

// GlobalGenericKey builds a host-agreed identifier, keyed by keccak256
// of an ASCII identifier string (e.g. "boot", "rollup-config").
func GlobalGenericKey(ident string) Key {
	return withType(crypto.Keccak256Hash([]byte(ident)), GlobalGenericType)
}

// BlobKey builds the key for an EIP-4844 blob body or one of its KZG
// field elements, keyed by keccak256(commitment || index-as-8-bytes).
func BlobKey(commitment [48]byte, index uint64) Key {
	data := make([]byte, 0, 48+8)
	data = append(data, commitment[:]...)
	var idx [8]byte
	for i := 0; i < 8; i++ {
		idx[7-i] = byte(index >> (8 * i))
	}
	data = append(data, idx[:]...)
	return withType(crypto.Keccak256Hash(data), BlobType)
}

// BootKey and RollupConfigKey are the two GlobalGeneric identifiers the
// replay client reads at startup, before it can derive or execute
// anything.
var (
	BootKey         = GlobalGenericKey("boot")
	RollupConfigKey = GlobalGenericKey("rollup-config")
)
