package rollup

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BlockID identifies a block by number and hash, enough to anchor a
// derivation walk without re-resolving the number.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

// Genesis pins the L1/L2 block pair a rollup's derivation starts from.
type Genesis struct {
	L1     BlockID     `json:"l1"`
	L2     BlockID     `json:"l2"`
	L2Time uint64      `json:"l2_time"`
}

// Config is the subset of an op-stack rollup configuration the replay
// client needs: enough to derive L2 payloads from L1 data and to decide
// which hardfork rules apply to a given L2 block.
type Config struct {
	Genesis         Genesis        `json:"genesis"`
	BlockTime       uint64         `json:"block_time"`
	L1ChainID       uint64         `json:"l1_chain_id"`
	L2ChainID       uint64         `json:"l2_chain_id"`
	BatchInboxAddr  common.Address `json:"batch_inbox_address"`
	CanyonTime      *uint64        `json:"canyon_time,omitempty"`
	DeltaTime       *uint64        `json:"delta_time,omitempty"`
	EcotoneTime     *uint64        `json:"ecotone_time,omitempty"`
}

// ParseConfig decodes a JSON-encoded rollup configuration, the format
// the config GlobalGeneric preimage carries.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("rollup: decode config: %w", err)
	}
	return c, nil
}

// Hash returns a stable digest of the config, used to log and compare
// which set of derivation rules a run used without echoing the whole
// JSON document.
func (c Config) Hash() (common.Hash, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return common.Hash{}, fmt.Errorf("rollup: hash config: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

// IsCanyon reports whether the Canyon hardfork is active at l2Time.
func (c Config) IsCanyon(l2Time uint64) bool {
	return c.CanyonTime != nil && l2Time >= *c.CanyonTime
}

// IsDelta reports whether the Delta hardfork is active at l2Time.
func (c Config) IsDelta(l2Time uint64) bool {
	return c.DeltaTime != nil && l2Time >= *c.DeltaTime
}

// IsEcotone reports whether the Ecotone hardfork is active at l2Time.
func (c Config) IsEcotone(l2Time uint64) bool {
	return c.EcotoneTime != nil && l2Time >= *c.EcotoneTime
}

// TimeForBlock derives the expected L2 timestamp of blockNumber from
// genesis, assuming no gaps in block production (true for op-stack
// chains outside of a sequencer halt).
func (c Config) TimeForBlock(blockNumber uint64) uint64 {
	if blockNumber <= c.Genesis.L2.Number {
		return c.Genesis.L2Time
	}
	delta := blockNumber - c.Genesis.L2.Number
	return c.Genesis.L2Time + delta*c.BlockTime
}

// L1HeaderLink is the minimal per-header record the aggregation checkpoint
// chain carries: just enough to verify ancestor linkage and to check a
// sub-proof's L1 head is covered, without shipping whole L1 headers.
type L1HeaderLink struct {
	Hash       common.Hash `cbor:"hash" json:"hash"`
	ParentHash common.Hash `cbor:"parent_hash" json:"parent_hash"`
	Number     uint64      `cbor:"number" json:"number"`
}

// SystemConfig is the subset of L1-derived configuration that can
// change batch-by-batch: the batcher's address and the L1 fee scalars
// applied to L2 transactions.
type SystemConfig struct {
	BatcherAddr       common.Address `json:"batcher_addr"`
	Overhead          [32]byte       `json:"overhead"`
	Scalar            [32]byte       `json:"scalar"`
	GasLimit          uint64         `json:"gas_limit"`
}
