package l2provider

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/succinctlabs/op-succinct-go/preimage"
	"github.com/succinctlabs/op-succinct-go/rollup"
)

// serveFakeHost answers hint frames with a bare ack (hints are advisory
// and this fixture needs no upstream fetch behind them) and preimage
// `get` requests straight out of values, until ch closes.
func serveFakeHost(t *testing.T, ch *preimage.Channel, values map[preimage.Key][]byte) {
	t.Helper()
	go func() {
		for {
			h, err := preimage.ReadHint(ch.HintHost)
			if err != nil {
				return
			}
			_ = h
			if err := preimage.WriteHintAck(ch.HintHost); err != nil {
				return
			}
		}
	}()
	go func() {
		for {
			key, err := preimage.ReadKeyRequest(ch.PreimageHost)
			if err != nil {
				return
			}
			value, ok := values[key]
			if !ok {
				return
			}
			if err := preimage.WritePreimageResponse(ch.PreimageHost, value); err != nil {
				return
			}
		}
	}()
}

func encodeHeader(t *testing.T, h *types.Header) []byte {
	t.Helper()
	raw, err := rlp.EncodeToBytes(h)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	return raw
}

func TestAnchorAndHeaderByNumberWalksParents(t *testing.T) {
	genesis := &types.Header{Number: big.NewInt(10), Time: 100}
	genesisRaw := encodeHeader(t, genesis)
	genesisHash := genesis.Hash()

	child := &types.Header{Number: big.NewInt(11), Time: 102, ParentHash: genesisHash}
	childRaw := encodeHeader(t, child)
	childHash := child.Hash()

	preRoot := common.HexToHash("0xaa")
	var outputPreimage [128]byte
	copy(outputPreimage[96:128], childHash.Bytes())

	values := map[preimage.Key][]byte{
		preimage.KeyFromHash(preRoot, preimage.GlobalGenericType): outputPreimage[:],
		preimage.Keccak256Key(childRaw):                          childRaw,
		preimage.Keccak256Key(genesisRaw):                        genesisRaw,
	}

	ch := preimage.NewChannel()
	defer ch.Close()
	serveFakeHost(t, ch, values)

	p := New(ch.HintClient, ch.PreimageClient, rollup.Config{})
	if err := p.Anchor(preRoot); err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if p.SafeNumber() != 11 {
		t.Fatalf("SafeNumber = %d, want 11", p.SafeNumber())
	}
	if p.SafeHash() != childHash {
		t.Fatalf("SafeHash = %s, want %s", p.SafeHash(), childHash)
	}

	got, err := p.HeaderByNumber(10)
	if err != nil {
		t.Fatalf("HeaderByNumber: %v", err)
	}
	if got.Hash() != genesisHash {
		t.Fatalf("HeaderByNumber(10) = %s, want %s", got.Hash(), genesisHash)
	}
}

func TestHeaderByNumberRejectsPastSafeHead(t *testing.T) {
	head := &types.Header{Number: big.NewInt(5), Time: 50}
	headRaw := encodeHeader(t, head)
	headHash := head.Hash()

	preRoot := common.HexToHash("0xbb")
	var outputPreimage [128]byte
	copy(outputPreimage[96:128], headHash.Bytes())

	values := map[preimage.Key][]byte{
		preimage.KeyFromHash(preRoot, preimage.GlobalGenericType): outputPreimage[:],
		preimage.Keccak256Key(headRaw):                          headRaw,
	}

	ch := preimage.NewChannel()
	defer ch.Close()
	serveFakeHost(t, ch, values)

	p := New(ch.HintClient, ch.PreimageClient, rollup.Config{})
	if err := p.Anchor(preRoot); err != nil {
		t.Fatalf("Anchor: %v", err)
	}

	if _, err := p.HeaderByNumber(6); err == nil {
		t.Fatal("expected error for block past safe head")
	}
}

func TestUpdateCacheAdvancesSafeHead(t *testing.T) {
	p := New(nil, nil, rollup.Config{})

	header := &types.Header{Number: big.NewInt(1), Time: 10}
	block := &Block{Header: header}
	info := p.UpdateCache(header, block, rollup.Config{})

	if info.Number != 1 {
		t.Fatalf("info.Number = %d, want 1", info.Number)
	}
	if p.SafeNumber() != 1 {
		t.Fatalf("SafeNumber = %d, want 1", p.SafeNumber())
	}
	if p.SafeHash() != header.Hash() {
		t.Fatalf("SafeHash = %s, want %s", p.SafeHash(), header.Hash())
	}

	// A lower block number must not regress the safe head.
	lower := &types.Header{Number: big.NewInt(0), Time: 5}
	p.UpdateCache(lower, &Block{Header: lower}, rollup.Config{})
	if p.SafeNumber() != 1 {
		t.Fatalf("SafeNumber regressed to %d", p.SafeNumber())
	}
}
