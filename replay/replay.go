package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/l2provider"
	"github.com/succinctlabs/op-succinct-go/preimage"
	"github.com/succinctlabs/op-succinct-go/rollup"
)

// outputRootVersion is the first 32-byte word of the bedrock output-root preimage
// (version 0, the only version this rollup's output oracle has ever
// used).
var outputRootVersion common.Hash

// computeOutputRoot reproduces the op-stack L2 output root formula:
// keccak256(version || stateRoot || withdrawalStorageRoot ||
// latestBlockHash).
func computeOutputRoot(stateRoot, withdrawalStorageRoot, blockHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(outputRootVersion[:], stateRoot[:], withdrawalStorageRoot[:], blockHash[:])
}

// Run drives one complete witness-generation replay: reads the boot
// struct and rollup config, anchors the L2 provider, derives and
// executes L2 payloads from L1 batch data until the claimed block
// number is reached, and verifies the output root. It takes a logger on
// top of host.ReplayFunc's parameters, so an Orchestrator runs it
// through a closure that binds the logger.
func Run(ctx context.Context, hintRW, preimageRW io.ReadWriter, logger log.Logger) error {
	if logger == nil {
		logger = log.Root()
	}

	bootRaw, err := preimage.Get(preimageRW, preimage.BootKey)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch boot struct: %w", err))
	}
	boot, err := rollup.DecodeBootInfo(bootRaw)
	if err != nil {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf("decode boot struct: %w", err))
	}

	cfgRaw, err := preimage.Get(preimageRW, preimage.RollupConfigKey)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch rollup config: %w", err))
	}
	config, err := rollup.ParseConfig(cfgRaw)
	if err != nil {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf("decode rollup config: %w", err))
	}

	provider := l2provider.New(hintRW, preimageRW, config)
	if err := provider.Anchor(boot.L2PreRoot); err != nil {
		return err
	}

	if boot.L2BlockNumber <= provider.SafeNumber() {
		return finish(provider, boot)
	}

	safeInfo, err := provider.L2BlockInfoByNumber(provider.SafeNumber())
	if err != nil {
		return err
	}

	l1 := newL1Reader(hintRW, preimageRW)
	batches, err := deriveBatches(l1, config.BatchInboxAddr, boot.L1Head, safeInfo.L1Origin.Hash)
	if err != nil {
		return err
	}
	logger.Info("derived batches", "count", len(batches), "from", safeInfo.L1Origin.Number, "to_l1_head", boot.L1Head)

	executor := NewExecutor()
	current := provider.SafeNumber()
	batchIdx := 0
	for current < boot.L2BlockNumber {
		if err := ctx.Err(); err != nil {
			return coreerr.New(coreerr.Timeout, err)
		}
		if batchIdx >= len(batches) {
			return coreerr.New(coreerr.OutOfRange, fmt.Errorf(
				"replay: ran out of l1 batch data at block %d, want %d", current, boot.L2BlockNumber))
		}
		batch := batches[batchIdx]
		batchIdx++

		parent, err := provider.HeaderByNumber(current)
		if err != nil {
			return err
		}
		header, block, err := executor.Execute(parent, batch, config, provider)
		if err != nil {
			return coreerr.New(coreerr.Internal, fmt.Errorf("execute block %d: %w", current+1, err))
		}
		info := provider.UpdateCache(header, block, config)
		current = info.Number
	}

	return finish(provider, boot)
}

// finish resolves the final header and verifies its output root matches
// the claimed poststate.
func finish(provider *l2provider.Provider, boot rollup.BootInfo) error {
	head, err := provider.HeaderByNumber(boot.L2BlockNumber)
	if err != nil {
		return err
	}
	got := computeOutputRoot(head.Root, common.Hash{}, head.Hash())
	if got != boot.L2PostRoot {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf(
			"replay: executed head output root %s does not match claimed poststate %s", got, boot.L2PostRoot))
	}
	return nil
}
