package hinter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
)

// L2Source fetches L2 data on demand from an op-geth node's standard
// and debug namespaces.
type L2Source struct {
	client *ethclient.Client
	rpc    *rpc.Client
}

// NewL2Source wraps an already-dialed L2 client.
func NewL2Source(client *ethclient.Client) *L2Source {
	return &L2Source{client: client, rpc: client.Client()}
}

// HeaderRLP fetches and RLP-encodes the L2 header with the given hash.
func (s *L2Source) HeaderRLP(hash common.Hash) ([]byte, error) {
	header, err := withRetry(func() (*types.Header, error) {
		return s.client.HeaderByHash(context.Background(), hash)
	})
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(header)
}

// TransactionTrie fetches the raw transaction envelopes of the L2
// block at hash via debug_getRawTransaction-by-block and rebuilds the
// transactions trie over them. Raw envelopes are used rather than
// ethclient's typed Transaction because op-stack deposit transactions
// are not a type vanilla go-ethereum's decoder recognizes.
func (s *L2Source) TransactionTrie(hash common.Hash) (nodes [][]byte, leaves [][]byte, err error) {
	var rawTxs []hexutil.Bytes
	if _, err := withRetry(func() (struct{}, error) {
		return struct{}{}, s.rpc.CallContext(context.Background(), &rawTxs, "debug_getRawTransactions", hash)
	}); err != nil {
		return nil, nil, fmt.Errorf("debug_getRawTransactions: %w", err)
	}

	leaves = make([][]byte, len(rawTxs))
	for i, tx := range rawTxs {
		leaves[i] = tx
	}
	nodes, _ = buildTrie(leaves)
	return nodes, leaves, nil
}

// CodeByHash fetches contract bytecode directly by its codehash via
// the debug namespace's content-addressed key/value lookup, the same
// surface op-program relies on rather than eth_getCode (which is keyed
// by address, not hash).
func (s *L2Source) CodeByHash(hash common.Hash) ([]byte, error) {
	return s.debugDBGet(hash)
}

// TrieNode fetches a state/storage trie node directly by its hash.
func (s *L2Source) TrieNode(hash common.Hash) ([]byte, error) {
	return s.debugDBGet(hash)
}

func (s *L2Source) debugDBGet(key common.Hash) ([]byte, error) {
	var result hexutil.Bytes
	if _, err := withRetry(func() (struct{}, error) {
		return struct{}{}, s.rpc.CallContext(context.Background(), &result, "debug_dbGet", key)
	}); err != nil {
		return nil, fmt.Errorf("debug_dbGet %s: %w", key, err)
	}
	return result, nil
}

// proofResult mirrors the eth_getProof response shape.
type proofResult struct {
	AccountProof []hexutil.Bytes `json:"accountProof"`
	StorageProof []struct {
		Proof []hexutil.Bytes `json:"proof"`
	} `json:"storageProof"`
}

// AccountProof fetches the Merkle proof for address's account at
// blockNumber and returns every branch node on the path.
func (s *L2Source) AccountProof(blockNumber uint64, address common.Address) ([][]byte, error) {
	proof, err := s.getProof(blockNumber, address, nil)
	if err != nil {
		return nil, err
	}
	return hexBytesToSlices(proof.AccountProof), nil
}

// StorageProof fetches the Merkle proof for address's storage at slot
// at blockNumber, returning both the account branch and the storage
// branch nodes.
func (s *L2Source) StorageProof(blockNumber uint64, address common.Address, slot common.Hash) ([][]byte, error) {
	proof, err := s.getProof(blockNumber, address, []common.Hash{slot})
	if err != nil {
		return nil, err
	}
	nodes := hexBytesToSlices(proof.AccountProof)
	if len(proof.StorageProof) > 0 {
		nodes = append(nodes, hexBytesToSlices(proof.StorageProof[0].Proof)...)
	}
	return nodes, nil
}

func (s *L2Source) getProof(blockNumber uint64, address common.Address, slots []common.Hash) (*proofResult, error) {
	blockTag := hexutil.EncodeBig(new(big.Int).SetUint64(blockNumber))
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = slot.Hex()
	}
	return withRetry(func() (*proofResult, error) {
		var result proofResult
		if err := s.rpc.CallContext(context.Background(), &result, "eth_getProof", address, keys, blockTag); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

// OutputAtRoot resolves the L2 output preimage committing to root. The
// replay client only ever asks for roots corresponding to blocks the
// rollup node itself can name (the boot struct's prestate/poststate),
// so this proxies to the rollup node's output RPC rather than
// performing a generic reverse lookup.
func (s *L2Source) OutputAtRoot(root common.Hash) ([]byte, error) {
	var result hexutil.Bytes
	if _, err := withRetry(func() (struct{}, error) {
		return struct{}{}, s.rpc.CallContext(context.Background(), &result, "optimism_outputByRoot", root)
	}); err != nil {
		return nil, fmt.Errorf("optimism_outputByRoot: %w", err)
	}
	return result, nil
}

func hexBytesToSlices(in []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = b
	}
	return out
}
