package hinter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// buildTrie feeds index-keyed RLP leaves through a StackTrie, capturing
// every node it writes. This reproduces the exact trie go-ethereum
// derives a block's transactions/receipts root from, so the captured
// nodes are byte-identical to what the replay client's trie walker
// will need to re-derive the same root from the oracle alone.
func buildTrie(leaves [][]byte) (nodes [][]byte, root common.Hash) {
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		nodes = append(nodes, append([]byte(nil), blob...))
	})
	insert := func(i int) {
		key, _ := rlp.EncodeToBytes(uint64(i))
		st.Update(key, leaves[i])
	}
	// A StackTrie takes keys in ascending order, the same order
	// types.DeriveSha uses: RLP(1..127) < RLP(0)=0x80 < RLP(128+).
	for i := 1; i < len(leaves) && i <= 0x7f; i++ {
		insert(i)
	}
	if len(leaves) > 0 {
		insert(0)
	}
	for i := 0x80; i < len(leaves); i++ {
		insert(i)
	}
	return nodes, st.Hash()
}

// transactionLeaves RLP/binary-encodes each transaction the way it is
// stored in the transactions trie.
func transactionLeaves(txs types.Transactions) [][]byte {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		data, _ := tx.MarshalBinary()
		leaves[i] = data
	}
	return leaves
}

// receiptLeaves encodes each receipt the way it is stored in the
// receipts trie.
func receiptLeaves(receipts types.Receipts) [][]byte {
	leaves := make([][]byte, len(receipts))
	for i, r := range receipts {
		data, _ := r.MarshalBinary()
		leaves[i] = data
	}
	return leaves
}

// buildTransactionTrie returns the trie nodes and raw tx leaves for a
// transaction list.
func buildTransactionTrie(txs types.Transactions) (nodes [][]byte, leaves [][]byte, err error) {
	leaves = transactionLeaves(txs)
	nodes, _ = buildTrie(leaves)
	return nodes, leaves, nil
}

// buildReceiptTrie returns the trie nodes and raw receipt leaves for a
// receipt list.
func buildReceiptTrie(receipts types.Receipts) (nodes [][]byte, leaves [][]byte, err error) {
	leaves = receiptLeaves(receipts)
	nodes, _ = buildTrie(leaves)
	return nodes, leaves, nil
}
