package hinter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
)

// RunPrecompile executes the precompile at addr against input locally,
// using go-ethereum's own precompiled-contract implementations so the
// result is bit-identical to what the guest program's EVM would
// compute, without needing a live call to L1.
func RunPrecompile(addr common.Address, input []byte) ([]byte, error) {
	contract, ok := vm.PrecompiledContractsBerlin[addr]
	if !ok {
		return nil, fmt.Errorf("hinter: %s is not a known precompile", addr)
	}
	output, err := contract.Run(input)
	if err != nil {
		return nil, fmt.Errorf("hinter: precompile %s: %w", addr, err)
	}
	return output, nil
}
