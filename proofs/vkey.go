package proofs

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveVKeyDigest derives the range program's verifying-key digest
// from its compiled guest image. The aggregation program checks this
// digest against its own in-zkVM range verifier, so it must be a
// stable function of exactly the bytes the proving network proves
// against — the zkVM toolchain's own vkey derivation is out of reach of
// this module, so this keys off the leading 16 bytes of a keccak256
// digest of the ELF, split into four big-endian words — the same
// four-word shape AssembleAggregate writes the digest in.
func DeriveVKeyDigest(elf []byte) VKeyDigest {
	digest := crypto.Keccak256(elf)
	var vkey VKeyDigest
	for i := range vkey {
		vkey[i] = binary.BigEndian.Uint32(digest[i*4 : (i+1)*4])
	}
	return vkey
}
