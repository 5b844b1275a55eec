package preimage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HintTag is one of the closed set of advisory hint kinds a replay
// client may send to the host.
type HintTag string

const (
	HintL1BlockHeader       HintTag = "l1-block-header"
	HintL1Transactions      HintTag = "l1-transactions"
	HintL1Receipts          HintTag = "l1-receipts"
	HintL1Precompile        HintTag = "l1-precompile"
	HintL1Blob              HintTag = "l1-blob"
	HintL2BlockHeader       HintTag = "l2-block-header"
	HintL2Transactions      HintTag = "l2-transactions"
	HintL2Code              HintTag = "l2-code"
	HintL2StateNode         HintTag = "l2-state-node"
	HintL2AccountProof      HintTag = "l2-account-proof"
	HintL2AccountStorageProof HintTag = "l2-account-storage-proof"
	HintL2Output            HintTag = "l2-output"
	HintStartingL2Output    HintTag = "starting-l2-output"
)

// Hint is a parsed advisory message: a tag plus its positional
// arguments, still in their original string form.
type Hint struct {
	Tag  HintTag
	Args []string
}

// String renders the hint back to its wire form: "tag arg0 arg1 ...".
func (h Hint) String() string {
	if len(h.Args) == 0 {
		return string(h.Tag)
	}
	return string(h.Tag) + " " + strings.Join(h.Args, " ")
}

// ParseHint splits a raw hint payload into its tag and arguments. An
// unrecognized tag is not an error here — the hint handler decides
// whether to ignore it, logging and moving on rather than failing the run.
func ParseHint(raw string) (Hint, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Hint{}, fmt.Errorf("empty hint")
	}
	return Hint{Tag: HintTag(fields[0]), Args: fields[1:]}, nil
}

// NewHint builds a hint from a tag and already-stringified args.
func NewHint(tag HintTag, args ...string) Hint {
	return Hint{Tag: tag, Args: args}
}

// HashArg parses the hint's i'th argument as a 32-byte hash.
func (h Hint) HashArg(i int) (common.Hash, error) {
	if i >= len(h.Args) {
		return common.Hash{}, fmt.Errorf("hint %s: missing argument %d", h.Tag, i)
	}
	s := strings.TrimPrefix(h.Args[i], "0x")
	if len(s) != 64 {
		return common.Hash{}, fmt.Errorf("hint %s: argument %d is not a 32-byte hash", h.Tag, i)
	}
	return common.HexToHash(h.Args[i]), nil
}

// AddressArg parses the hint's i'th argument as a 20-byte address.
func (h Hint) AddressArg(i int) (common.Address, error) {
	if i >= len(h.Args) {
		return common.Address{}, fmt.Errorf("hint %s: missing argument %d", h.Tag, i)
	}
	return common.HexToAddress(h.Args[i]), nil
}

// Uint64Arg parses the hint's i'th argument as a decimal block number
// or slot index.
func (h Hint) Uint64Arg(i int) (uint64, error) {
	if i >= len(h.Args) {
		return 0, fmt.Errorf("hint %s: missing argument %d", h.Tag, i)
	}
	return strconv.ParseUint(h.Args[i], 10, 64)
}
