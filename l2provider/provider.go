// Package l2provider implements the caching, oracle-backed L2 chain
// provider the replay client derives and executes blocks against. It
// resolves headers, blocks, account/storage tries and bytecode purely
// by walking backward from the boot struct's prestate output, or by
// trusting rows installed after local execution via UpdateCache.
package l2provider

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/preimage"
	"github.com/succinctlabs/op-succinct-go/rollup"
)

// L2BlockInfo is the derived per-block summary the replay client's
// derivation pipeline consumes alongside the raw block.
type L2BlockInfo struct {
	Hash           common.Hash
	Number         uint64
	ParentHash     common.Hash
	Time           uint64
	L1Origin       rollup.BlockID
	SequenceNumber uint64
}

// cacheRow is the single aggregate cache entry for one L2 block number,
// filled field-by-field as each piece becomes available (design note:
// one record per number rather than four parallel maps).
type cacheRow struct {
	header *types.Header
	block  *Block
	info   *L2BlockInfo
	sysCfg *rollup.SystemConfig
}

// Provider is the caching L2 chain provider (C3). It is simultaneously
// a NodeSource and a NodeHinter for the trie.Walker that block_by_number
// uses to decode a block's transactions, and it speaks both the hint
// channel and the preimage channel.
type Provider struct {
	hintRW     io.ReadWriter
	preimageRW io.ReadWriter
	config     rollup.Config

	mu         sync.Mutex
	cache      map[uint64]*cacheRow
	anchored   bool
	safeHash   common.Hash
	safeNumber uint64
}

// New builds a provider bound to one witness-generation run's channel
// ends and rollup config. Anchoring happens lazily, on first use.
func New(hintRW, preimageRW io.ReadWriter, config rollup.Config) *Provider {
	return &Provider{
		hintRW:     hintRW,
		preimageRW: preimageRW,
		config:     config,
		cache:      make(map[uint64]*cacheRow),
	}
}

// Anchor resolves the safe head from the prestate output root, sending
// the starting-l2-output hint and decoding the safe-head block hash
// from bytes [96:128] of the fetched output preimage. Safe to call more
// than once; only the first call does any I/O.
func (p *Provider) Anchor(preRoot common.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.anchored {
		return nil
	}

	hint := preimage.NewHint(preimage.HintStartingL2Output, preRoot.Hex())
	if err := preimage.SendHint(p.hintRW, hint); err != nil {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("send starting-l2-output hint: %w", err))
	}

	key := preimage.KeyFromHash(preRoot, preimage.GlobalGenericType)
	output, err := preimage.Get(p.preimageRW, key)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch starting l2 output: %w", err))
	}
	if len(output) < 128 {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf("l2 output preimage is %d bytes, want at least 128", len(output)))
	}

	p.safeHash = common.BytesToHash(output[96:128])
	header, err := p.headerByHashLocked(p.safeHash)
	if err != nil {
		return err
	}
	p.safeNumber = header.Number.Uint64()
	p.anchored = true
	return nil
}

// HeaderByNumber implements the number-keyed lookup algorithm: a cache
// hit returns directly; otherwise it walks parents from the anchored
// safe head down to number, resolving each header by hash and caching
// every header the walk passes through.
func (p *Provider) HeaderByNumber(number uint64) (*types.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if row, ok := p.cache[number]; ok && row.header != nil {
		return row.header, nil
	}
	if !p.anchored {
		return nil, coreerr.New(coreerr.Internal, fmt.Errorf("l2provider: not anchored"))
	}
	if number > p.safeNumber {
		return nil, coreerr.New(coreerr.OutOfRange, fmt.Errorf("block %d is past safe head %d", number, p.safeNumber))
	}

	cursor, err := p.headerByHashLocked(p.safeHash)
	if err != nil {
		return nil, err
	}
	p.setHeaderLocked(cursor)
	for cursor.Number.Uint64() > number {
		cursor, err = p.headerByHashLocked(cursor.ParentHash)
		if err != nil {
			return nil, err
		}
		p.setHeaderLocked(cursor)
	}
	if cursor.Number.Uint64() != number {
		return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("parent walk overshot: landed on %d, wanted %d", cursor.Number.Uint64(), number))
	}
	return cursor, nil
}

func (p *Provider) setHeaderLocked(h *types.Header) {
	n := h.Number.Uint64()
	row, ok := p.cache[n]
	if !ok {
		row = &cacheRow{}
		p.cache[n] = row
	}
	if row.header == nil {
		row.header = h
	}
}

// headerByHashLocked fetches and RLP-decodes a header by hash, emitting
// the corresponding hint first. Callers must hold p.mu.
func (p *Provider) headerByHashLocked(hash common.Hash) (*types.Header, error) {
	hint := preimage.NewHint(preimage.HintL2BlockHeader, hash.Hex())
	if err := preimage.SendHint(p.hintRW, hint); err != nil {
		return nil, coreerr.New(coreerr.Protocol, fmt.Errorf("send l2-block-header hint: %w", err))
	}
	key := preimage.KeyFromHash(hash, preimage.Keccak256Type)
	raw, err := preimage.Get(p.preimageRW, key)
	if err != nil {
		return nil, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch header %s: %w", hash, err))
	}
	var header types.Header
	if err := rlp.DecodeBytes(raw, &header); err != nil {
		return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("decode header %s: %w", hash, err))
	}
	return &header, nil
}

// SafeNumber returns the highest block number the provider currently
// trusts, whether reached by the hash-verified parent walk or raised by
// a prior UpdateCache after local execution.
func (p *Provider) SafeNumber() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.safeNumber
}

// SafeHash returns the hash of the block at SafeNumber.
func (p *Provider) SafeHash() common.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.safeHash
}

// HeaderByHash exposes the by-hash header lookup: it sends the
// l2-block-header hint for hash, then fetches and decodes the header
// preimage.
func (p *Provider) HeaderByHash(hash common.Hash) (*types.Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headerByHashLocked(hash)
}

// BlockByNumber resolves the header for number, emits the
// l2-transactions hint keyed by the header's hash, walks the
// transactions trie, and assembles a full block. The withdrawals field
// is a present-but-empty list iff Canyon is active at the header's
// timestamp, matching the post-Canyon block body shape; ommers and
// requests are always empty.
func (p *Provider) BlockByNumber(number uint64) (*Block, error) {
	p.mu.Lock()
	if row, ok := p.cache[number]; ok && row.block != nil {
		p.mu.Unlock()
		return row.block, nil
	}
	p.mu.Unlock()

	header, err := p.HeaderByNumber(number)
	if err != nil {
		return nil, err
	}

	hint := preimage.NewHint(preimage.HintL2Transactions, header.Hash().Hex())
	if err := preimage.SendHint(p.hintRW, hint); err != nil {
		return nil, coreerr.New(coreerr.Protocol, fmt.Errorf("send l2-transactions hint: %w", err))
	}

	walker := NewWalker(p, p)
	txs, err := p.walkTransactions(walker, header)
	if err != nil {
		return nil, err
	}

	var withdrawals types.Withdrawals
	if p.config.IsCanyon(header.Time) {
		withdrawals = types.Withdrawals{}
	}

	block := &Block{Header: header, Transactions: txs, Withdrawals: withdrawals}

	p.mu.Lock()
	p.cacheBlockLocked(number, block)
	p.mu.Unlock()
	return block, nil
}

// RawTx is an undecoded EIP-2718 transaction envelope. Op-stack deposit
// transactions (type 0x7E) are not understood by vanilla go-ethereum's
// types.Transaction, so L2 blocks are walked and stored as raw
// envelopes; only the fields the witness-generation pipeline actually
// needs (the L1-attributes calldata of transaction 0) are decoded.
type RawTx []byte

// Type returns the EIP-2718 type byte, or 0 for a legacy (untyped) RLP
// transaction.
func (t RawTx) Type() byte {
	if len(t) == 0 {
		return 0
	}
	if t[0] >= 0xc0 {
		return 0 // legacy transactions are RLP lists, not type-prefixed
	}
	return t[0]
}

// Block is the per-number L2 block record the replay client derives
// payloads from and executes.
type Block struct {
	Header       *types.Header
	Transactions []RawTx
	Withdrawals  types.Withdrawals
}

func (b *Block) Hash() common.Hash    { return b.Header.Hash() }
func (b *Block) NumberU64() uint64    { return b.Header.Number.Uint64() }
func (b *Block) ParentHash() common.Hash { return b.Header.ParentHash }
func (b *Block) Time() uint64         { return b.Header.Time }

// walkTransactions looks up the header's transaction trie one index at
// a time (key: RLP-encoded transaction index), from index 0 upward,
// and stops at the first index with no leaf.
func (p *Provider) walkTransactions(walker *Walker, header *types.Header) ([]RawTx, error) {
	var txs []RawTx
	for i := 0; ; i++ {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return nil, coreerr.New(coreerr.Internal, err)
		}
		leaf, err := walker.Get(header.TxHash, key)
		if err != nil {
			return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("walk tx trie at index %d: %w", i, err))
		}
		if leaf == nil {
			break
		}
		txs = append(txs, RawTx(leaf))
	}
	return txs, nil
}

// L2BlockInfoByNumber returns the derived block summary for number.
func (p *Provider) L2BlockInfoByNumber(number uint64) (*L2BlockInfo, error) {
	p.mu.Lock()
	if row, ok := p.cache[number]; ok && row.info != nil {
		p.mu.Unlock()
		return row.info, nil
	}
	p.mu.Unlock()

	block, err := p.BlockByNumber(number)
	if err != nil {
		return nil, err
	}
	info := p.deriveInfo(block)
	p.mu.Lock()
	p.cache[number].info = info
	p.mu.Unlock()
	return info, nil
}

// SystemConfigByNumber returns the system config derived for number.
func (p *Provider) SystemConfigByNumber(number uint64) (*rollup.SystemConfig, error) {
	p.mu.Lock()
	if row, ok := p.cache[number]; ok && row.sysCfg != nil {
		p.mu.Unlock()
		return row.sysCfg, nil
	}
	p.mu.Unlock()

	block, err := p.BlockByNumber(number)
	if err != nil {
		return nil, err
	}
	cfg := p.deriveSystemConfig(number, block)
	p.mu.Lock()
	p.cache[number].sysCfg = cfg
	p.mu.Unlock()
	return cfg, nil
}

// UpdateCache installs a row produced by local execution rather than
// by the hash-verified read path: header, block, and both derived
// records, all under the header's own block number, filled atomically
// with respect to other readers of that number.
func (p *Provider) UpdateCache(header *types.Header, block *Block, config rollup.Config) *L2BlockInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	number := header.Number.Uint64()
	row, ok := p.cache[number]
	if !ok {
		row = &cacheRow{}
		p.cache[number] = row
	}
	row.header = header
	row.block = block
	info := p.deriveInfo(block)
	row.info = info
	row.sysCfg = p.deriveSystemConfig(number, block)
	if number > p.safeNumber {
		p.safeNumber = number
		p.safeHash = header.Hash()
	}
	return info
}

func (p *Provider) cacheBlockLocked(number uint64, block *Block) {
	row, ok := p.cache[number]
	if !ok {
		row = &cacheRow{}
		p.cache[number] = row
	}
	row.block = block
}

// deriveInfo builds an L2BlockInfo from a decoded block. The L1 origin
// and sequence number come from the L1-attributes deposit transaction
// that an op-stack block always carries first; absent that (e.g. a
// synthetic test block), both are left zero.
func (p *Provider) deriveInfo(block *Block) *L2BlockInfo {
	info := &L2BlockInfo{
		Hash:       block.Hash(),
		Number:     block.NumberU64(),
		ParentHash: block.ParentHash(),
		Time:       block.Time(),
	}
	if len(block.Transactions) > 0 {
		if origin, seq, ok := decodeL1Attributes(block.Transactions[0]); ok {
			info.L1Origin = origin
			info.SequenceNumber = seq
		}
	}
	return info
}

// deriveSystemConfig returns a copy of the system config cached for
// number-1, or an empty SystemConfig when none is cached. It does not
// read block: no field of the returned config is taken from the block
// or its L1-attributes transaction.
func (p *Provider) deriveSystemConfig(number uint64, block *Block) *rollup.SystemConfig {
	if prior, ok := p.cache[number-1]; ok && prior.sysCfg != nil {
		cfg := *prior.sysCfg
		return &cfg
	}
	return &rollup.SystemConfig{}
}

// depositTxType is the op-stack deposit transaction type byte (0x7E).
// Vanilla go-ethereum has no constant for it since deposit transactions
// are an op-stack extension to the EIP-2718 envelope that this package
// parses directly rather than through types.Transaction.
const depositTxType = 0x7e

// decodeL1Attributes extracts the L1 origin and sequence number from an
// op-stack L1-attributes deposit transaction's calldata layout. Returns
// ok=false for any transaction that isn't a deposit. The wrapper RLP
// list is [source_hash, from, to, mint, value, gas, is_system_tx, data];
// data is the eighth element.
func decodeL1Attributes(tx RawTx) (rollup.BlockID, uint64, bool) {
	if tx.Type() != depositTxType {
		return rollup.BlockID{}, 0, false
	}
	var elems []rlp.RawValue
	if err := rlp.DecodeBytes(tx[1:], &elems); err != nil || len(elems) < 8 {
		return rollup.BlockID{}, 0, false
	}
	var data []byte
	if err := rlp.DecodeBytes(elems[7], &data); err != nil {
		return rollup.BlockID{}, 0, false
	}
	// selector(4) + number(32) + time(32) + basefee(32) + hash(32) + seq(32) + ...
	const minLen = 4 + 32*5
	if len(data) < minLen {
		return rollup.BlockID{}, 0, false
	}
	l1Number := binary.BigEndian.Uint64(data[4+24 : 4+32])
	l1Hash := common.BytesToHash(data[4+32*3 : 4+32*4])
	seq := binary.BigEndian.Uint64(data[4+32*4+24 : 4+32*5])
	return rollup.BlockID{Hash: l1Hash, Number: l1Number}, seq, true
}

// --- NodeSource / NodeHinter, satisfied by Provider for the trie
// walker used inside BlockByNumber and by the replay client's account
// and storage trie reads. ---

// TrieNodePreimage implements NodeSource.
func (p *Provider) TrieNodePreimage(hash common.Hash) ([]byte, error) {
	key := preimage.KeyFromHash(hash, preimage.Keccak256Type)
	value, err := preimage.Get(p.preimageRW, key)
	if err != nil {
		return nil, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch trie node %s: %w", hash, err))
	}
	return value, nil
}

// BytecodeByHash implements NodeSource. Unlike TrieNodePreimage, whose
// hint is the caller's job (Walker drives it via NodeHinter), no other
// caller hints code ahead of a bytecode fetch, so BytecodeByHash sends
// its own l2-code hint first, the same self-contained pattern
// headerByHashLocked uses for headers.
func (p *Provider) BytecodeByHash(hash common.Hash) ([]byte, error) {
	hint := preimage.NewHint(preimage.HintL2Code, hash.Hex())
	if err := preimage.SendHint(p.hintRW, hint); err != nil {
		return nil, coreerr.New(coreerr.Protocol, fmt.Errorf("send l2-code hint: %w", err))
	}
	key := preimage.KeyFromHash(hash, preimage.Keccak256Type)
	value, err := preimage.Get(p.preimageRW, key)
	if err != nil {
		return nil, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch bytecode %s: %w", hash, err))
	}
	return value, nil
}

// HintTrieNode implements NodeHinter.
func (p *Provider) HintTrieNode(hash common.Hash) error {
	return preimage.SendHint(p.hintRW, preimage.NewHint(preimage.HintL2StateNode, hash.Hex()))
}

// HintAccountProof implements NodeHinter.
func (p *Provider) HintAccountProof(blockNumber uint64, address common.Address) error {
	return preimage.SendHint(p.hintRW, preimage.NewHint(
		preimage.HintL2AccountProof, fmt.Sprintf("%d", blockNumber), address.Hex()))
}

// HintStorageProof implements NodeHinter.
func (p *Provider) HintStorageProof(blockNumber uint64, address common.Address, slot common.Hash) error {
	return preimage.SendHint(p.hintRW, preimage.NewHint(
		preimage.HintL2AccountStorageProof, fmt.Sprintf("%d", blockNumber), address.Hex(), slot.Hex()))
}
