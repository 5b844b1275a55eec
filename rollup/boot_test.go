package rollup

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBootInfoRoundTrip(t *testing.T) {
	b := BootInfo{
		L1Head:        common.HexToHash("0x1111"),
		L2PreRoot:     common.HexToHash("0x2222"),
		L2PostRoot:    common.HexToHash("0x3333"),
		L2BlockNumber: 4_200_000,
		ChainID:       10,
	}

	encoded := b.ABIEncode()
	if len(encoded) != BootInfoSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), BootInfoSize)
	}

	decoded, err := DecodeBootInfo(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, b)
	}
}

func TestDecodeBootInfoRejectsWrongSize(t *testing.T) {
	if _, err := DecodeBootInfo([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for undersized input")
	}
}
