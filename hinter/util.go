package hinter

import "github.com/ethereum/go-ethereum/common/hexutil"

// hexArg decodes a "0x..."-prefixed hint argument into raw bytes.
func hexArg(s string) ([]byte, error) {
	return hexutil.Decode(s)
}
