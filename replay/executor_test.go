package replay

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	gotrie "github.com/ethereum/go-ethereum/trie"

	"github.com/succinctlabs/op-succinct-go/rollup"
)

// fakeStateSource is an in-memory StateSource backed by plain maps,
// standing in for an oracle-backed l2provider.Provider in a test that
// only exercises touchBatchState's own walking/hinting logic.
type fakeStateSource struct {
	nodes map[common.Hash][]byte
	code  map[common.Hash][]byte

	accountHints []common.Address
	storageHints []common.Hash
}

func (f *fakeStateSource) TrieNodePreimage(hash common.Hash) ([]byte, error) {
	v, ok := f.nodes[hash]
	if !ok {
		return nil, fmt.Errorf("fakeStateSource: no node for %s", hash)
	}
	return v, nil
}

func (f *fakeStateSource) BytecodeByHash(hash common.Hash) ([]byte, error) {
	v, ok := f.code[hash]
	if !ok {
		return nil, fmt.Errorf("fakeStateSource: no code for %s", hash)
	}
	return v, nil
}

func (f *fakeStateSource) HintTrieNode(hash common.Hash) error { return nil }

func (f *fakeStateSource) HintAccountProof(blockNumber uint64, address common.Address) error {
	f.accountHints = append(f.accountHints, address)
	return nil
}

func (f *fakeStateSource) HintStorageProof(blockNumber uint64, address common.Address, slot common.Hash) error {
	f.storageHints = append(f.storageHints, slot)
	return nil
}

// buildSingleLeafTrie commits a one-entry trie and returns its sole
// node (keyed by its own hash) plus the resulting root — the shape a
// real state or storage trie takes with exactly one entry.
func buildSingleLeafTrie(key, value []byte) (map[common.Hash][]byte, common.Hash) {
	nodes := make(map[common.Hash][]byte)
	st := gotrie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		nodes[hash] = append([]byte(nil), blob...)
	})
	st.Update(key, value)
	return nodes, st.Hash()
}

func TestTouchBatchStateDrivesWalkerAndHints(t *testing.T) {
	chainID := big.NewInt(10)

	contractAddr := common.HexToAddress("0x0000000000000000000000000000000000c0de")
	code := []byte{0x60, 0x00, 0x60, 0x00}
	codeHash := crypto.Keccak256Hash(code)
	slot := common.HexToHash("0x01")
	slotValue := []byte("storage-value")

	storageNodes, storageRoot := buildSingleLeafTrie(crypto.Keccak256(slot.Bytes()), slotValue)

	acct := stateAccount{Nonce: 0, Balance: big.NewInt(0), Root: storageRoot, CodeHash: codeHash.Bytes()}
	acctRLP, err := rlp.EncodeToBytes(acct)
	if err != nil {
		t.Fatalf("encode account: %v", err)
	}
	accountNodes, accountRoot := buildSingleLeafTrie(crypto.Keccak256(contractAddr.Bytes()), acctRLP)

	nodes := make(map[common.Hash][]byte)
	for h, n := range accountNodes {
		nodes[h] = n
	}
	for h, n := range storageNodes {
		nodes[h] = n
	}

	state := &fakeStateSource{
		nodes: nodes,
		code:  map[common.Hash][]byte{codeHash: code},
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	txdata := &types.AccessListTx{
		ChainID:  chainID,
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      100_000,
		To:       &contractAddr,
		Value:    big.NewInt(0),
		AccessList: types.AccessList{
			{Address: contractAddr, StorageKeys: []common.Hash{slot}},
		},
	}
	signedTx, err := types.SignNewTx(key, types.NewEIP2930Signer(chainID), txdata)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}

	parent := &types.Header{Number: big.NewInt(100), Root: accountRoot}
	config := rollup.Config{L2ChainID: chainID.Uint64()}

	if err := touchBatchState(state, parent, config, [][]byte{rawTx}); err != nil {
		t.Fatalf("touchBatchState: %v", err)
	}

	found := false
	for _, addr := range state.accountHints {
		if addr == contractAddr {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an account-proof hint for %s, got %v", contractAddr, state.accountHints)
	}
	if len(state.storageHints) != 1 || state.storageHints[0] != slot {
		t.Fatalf("storage hints = %v, want [%s]", state.storageHints, slot)
	}
}

func TestTouchBatchStateSkipsUndecodableTransactions(t *testing.T) {
	state := &fakeStateSource{nodes: map[common.Hash][]byte{}, code: map[common.Hash][]byte{}}
	parent := &types.Header{Number: big.NewInt(1), Root: common.Hash{}}
	config := rollup.Config{L2ChainID: 10}

	depositTx := []byte{depositTxType, 0xc0}
	if err := touchBatchState(state, parent, config, [][]byte{depositTx}); err != nil {
		t.Fatalf("touchBatchState: %v", err)
	}
	if len(state.accountHints) != 0 {
		t.Fatalf("expected no account hints for an undecodable tx, got %v", state.accountHints)
	}
}
