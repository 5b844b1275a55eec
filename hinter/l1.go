package hinter

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
)

// L1Source fetches L1 data on demand, retrying transient RPC failures
// since the core itself never retries a failed fetch.
type L1Source struct {
	client *ethclient.Client
}

// NewL1Source wraps an already-dialed L1 client.
func NewL1Source(client *ethclient.Client) *L1Source {
	return &L1Source{client: client}
}

// HeaderRLP fetches and RLP-encodes the L1 header with the given hash.
func (s *L1Source) HeaderRLP(hash common.Hash) ([]byte, error) {
	header, err := withRetry(func() (*types.Header, error) {
		return s.client.HeaderByHash(context.Background(), hash)
	})
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(header)
}

// TransactionTrie fetches the L1 block at hash and rebuilds its
// transactions trie, returning every trie node plus each transaction's
// raw binary encoding.
func (s *L1Source) TransactionTrie(hash common.Hash) (nodes [][]byte, leaves [][]byte, err error) {
	block, err := withRetry(func() (*types.Block, error) {
		return s.client.BlockByHash(context.Background(), hash)
	})
	if err != nil {
		return nil, nil, err
	}
	return buildTransactionTrie(block.Transactions())
}

// ReceiptTrie fetches every receipt for the L1 block at hash and
// rebuilds the receipts trie.
func (s *L1Source) ReceiptTrie(hash common.Hash) (nodes [][]byte, leaves [][]byte, err error) {
	block, err := withRetry(func() (*types.Block, error) {
		return s.client.BlockByHash(context.Background(), hash)
	})
	if err != nil {
		return nil, nil, err
	}

	receipts := make(types.Receipts, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		txHash := tx.Hash()
		receipt, err := withRetry(func() (*types.Receipt, error) {
			return s.client.TransactionReceipt(context.Background(), txHash)
		})
		if err != nil {
			return nil, nil, err
		}
		receipts = append(receipts, receipt)
	}
	return buildReceiptTrie(receipts)
}
