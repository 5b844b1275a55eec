package hinter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

func TestHandleL1PrecompileStoresOutput(t *testing.T) {
	store := oracle.New()
	h := New(store, nil, nil, nil, nil)

	identity := "0x0000000000000000000000000000000000000004"
	input := "0x68656c6c6f" // "hello"
	hint := preimage.NewHint(preimage.HintL1Precompile, identity, input)

	if err := h.Handle(hint); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	key := preimage.PrecompileKey(
		common.HexToAddress(identity),
		bytesFromHex(t, input),
	)
	value, ok, err := store.Get(key)
	if err != nil || !ok {
		t.Fatalf("store.Get: ok=%v err=%v", ok, err)
	}
	if string(value) != "hello" {
		t.Fatalf("stored output = %q, want %q", value, "hello")
	}
}

func TestHandleUnrecognizedTagIsIgnored(t *testing.T) {
	store := oracle.New()
	h := New(store, nil, nil, nil, nil)

	if err := h.Handle(preimage.NewHint(preimage.HintTag("not-a-real-tag"))); err != nil {
		t.Fatalf("Handle: expected unrecognized tags to be ignored, got %v", err)
	}
}

func TestHandleL1BlobRejectsMalformedCommitment(t *testing.T) {
	store := oracle.New()
	h := New(store, nil, nil, nil, nil)

	hint := preimage.NewHint(preimage.HintL1Blob, "0x1234", "0")
	if err := h.Handle(hint); err == nil {
		t.Fatal("expected error for undersized commitment")
	}
}

func bytesFromHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hexArg(s)
	if err != nil {
		t.Fatalf("hexArg(%q): %v", s, err)
	}
	return b
}
