// Package proofs implements the proof-input assembler (C8): it turns a
// completed witness-generation run into the exact stdin buffer the
// proving cluster expects, for both span and aggregate jobs.
package proofs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/rollup"
)

// ProofMode is the recursion shape a sub-proof or submission must carry.
type ProofMode int

const (
	Compressed ProofMode = iota
	Plonk
)

// SubProof is one prior proof fed into an aggregation job: its mode, its
// boot info (decoded from its own public-values prefix), and the raw
// proof bytes to be resubmitted. No verifying key is carried with it.
type SubProof struct {
	Mode  ProofMode
	Boot  rollup.BootInfo
	Bytes []byte
}

// VKeyDigest is the range program's verifying-key digest, carried as four
// big-endian u32 words per the aggregation program's public-input shape.
type VKeyDigest [4]uint32

// AssembleSpan serializes store as a single length-prefixed slice: the
// whole point of a span job's stdin is "here is the oracle, go replay
// it" with nothing else to negotiate.
func AssembleSpan(store *oracle.Store) ([]byte, error) {
	var body bytes.Buffer
	if err := store.WriteSnapshot(&body); err != nil {
		return nil, coreerr.New(coreerr.Internal, fmt.Errorf("proofs: write oracle snapshot: %w", err))
	}
	return lengthPrefixed(body.Bytes()), nil
}

// AssembleAggregate builds the stdin for an aggregation job: each
// sub-proof (validated compressed) as its length-prefixed proof bytes,
// with no verifying key written beside it, then the boot-info list,
// checkpoint head, and vkey digest, followed by the CBOR-encoded L1
// header chain — validated to actually anchor every sub-proof's L1 head.
func AssembleAggregate(subProofs []SubProof, checkpointHead common.Hash, vkeyDigest VKeyDigest, l1Headers []rollup.L1HeaderLink) ([]byte, error) {
	for i, sp := range subProofs {
		if sp.Mode != Compressed {
			return nil, coreerr.New(coreerr.BadRequest, fmt.Errorf("proofs: sub-proof %d is not a compressed recursion proof", i))
		}
	}
	if err := validateChainClosure(subProofs); err != nil {
		return nil, err
	}
	if err := validateHeaderChain(subProofs, checkpointHead, l1Headers); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for _, sp := range subProofs {
		out.Write(lengthPrefixed(sp.Bytes))
	}

	boots := make([]rollup.BootInfo, len(subProofs))
	for i, sp := range subProofs {
		boots[i] = sp.Boot
	}
	bootBuf := make([]byte, 0, len(boots)*rollup.BootInfoSize)
	for _, b := range boots {
		bootBuf = append(bootBuf, b.ABIEncode()...)
	}
	out.Write(lengthPrefixed(bootBuf))
	out.Write(checkpointHead.Bytes())

	var digestBuf [16]byte
	for i, word := range vkeyDigest {
		binary.BigEndian.PutUint32(digestBuf[i*4:(i+1)*4], word)
	}
	out.Write(digestBuf[:])

	headerBytes, err := cbor.Marshal(l1Headers)
	if err != nil {
		return nil, coreerr.New(coreerr.Internal, fmt.Errorf("proofs: cbor encode header chain: %w", err))
	}
	out.Write(lengthPrefixed(headerBytes))

	return out.Bytes(), nil
}

// validateChainClosure enforces that adjacent boot infos chain:
// subProofs[i].Boot.L2PostRoot == subProofs[i+1].Boot.L2PreRoot.
func validateChainClosure(subProofs []SubProof) error {
	for i := 0; i+1 < len(subProofs); i++ {
		if subProofs[i].Boot.L2PostRoot != subProofs[i+1].Boot.L2PreRoot {
			return coreerr.New(coreerr.Corrupt, fmt.Errorf(
				"proofs: sub-proof %d poststate %s does not chain into sub-proof %d prestate %s",
				i, subProofs[i].Boot.L2PostRoot, i+1, subProofs[i+1].Boot.L2PreRoot))
		}
	}
	return nil
}

// validateHeaderChain requires l1Headers to be an ancestor chain
// terminating at checkpointHead, and every sub-proof's L1 head to appear
// somewhere in it.
func validateHeaderChain(subProofs []SubProof, checkpointHead common.Hash, l1Headers []rollup.L1HeaderLink) error {
	if len(l1Headers) == 0 {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf("proofs: empty l1 header chain"))
	}
	if l1Headers[0].Hash != checkpointHead {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf(
			"proofs: header chain does not start at checkpoint head %s", checkpointHead))
	}
	for i := 0; i+1 < len(l1Headers); i++ {
		if l1Headers[i+1].Hash != l1Headers[i].ParentHash {
			return coreerr.New(coreerr.Corrupt, fmt.Errorf(
				"proofs: header chain broken between %s and %s", l1Headers[i].Hash, l1Headers[i+1].Hash))
		}
	}

	known := make(map[common.Hash]bool, len(l1Headers))
	for _, h := range l1Headers {
		known[h.Hash] = true
	}
	for i, sp := range subProofs {
		if !known[sp.Boot.L1Head] {
			return coreerr.New(coreerr.Corrupt, fmt.Errorf(
				"proofs: sub-proof %d l1 head %s not covered by header chain", i, sp.Boot.L1Head))
		}
	}
	return nil
}

func lengthPrefixed(b []byte) []byte {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	out := make([]byte, 0, 8+len(b))
	out = append(out, lenBuf[:]...)
	out = append(out, b...)
	return out
}
