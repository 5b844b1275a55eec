package hinter

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRunPrecompileIdentity(t *testing.T) {
	identity := common.HexToAddress("0x0000000000000000000000000000000000000004")
	input := []byte("hello precompile")

	out, err := RunPrecompile(identity, input)
	if err != nil {
		t.Fatalf("RunPrecompile: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("identity output = %q, want %q", out, input)
	}
}

func TestRunPrecompileUnknownAddress(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000001234")
	if _, err := RunPrecompile(addr, nil); err == nil {
		t.Fatal("expected error for non-precompile address")
	}
}
