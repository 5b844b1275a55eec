package host

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/hinter"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

// InProcessDeadline bounds a run started in the same process as the
// gateway. An external-process run has its own, shorter
// ExternalProcessDeadline; this package only implements the in-process
// variant, since nothing in this design forks a child process for the
// replay client.
const (
	InProcessDeadline     = 60 * time.Second
	ExternalProcessDeadline = 40 * time.Second
)

// ReplayFunc runs the replay client (C6) to completion over the client
// ends of a channel, returning once it has derived and executed every
// block up to the claimed L2 block number.
type ReplayFunc func(ctx context.Context, hintRW, preimageRW io.ReadWriter) error

// Orchestrator is the host orchestrator (C7): for one witness-generation
// run it wires a fresh channel, starts the preimage server and hint
// handler on the host end, runs the replay client to completion on the
// client end, and tears the whole thing down once the replay client
// returns.
type Orchestrator struct {
	hint *hinter.Handler
	log  log.Logger
}

// NewOrchestrator builds an orchestrator around a hint handler already
// wired to its upstream sources.
func NewOrchestrator(hint *hinter.Handler, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Root()
	}
	return &Orchestrator{hint: hint, log: logger}
}

// Run drives one complete witness-generation run: it allocates the
// channel, starts the host-side server and hint handler, invokes
// replay against the client-side ends, and leaves every preimage
// served along the way in the caller's store. The host-side goroutines have no natural
// termination signal of their own (they serve until the channel
// closes), so Run cancels them itself once replay returns, whether it
// succeeded or failed.
func (o *Orchestrator) Run(ctx context.Context, store *oracle.Store, replay ReplayFunc) error {
	ctx, cancel := context.WithTimeout(ctx, InProcessDeadline)
	defer cancel()

	ch := preimage.NewChannel()
	defer ch.Close()

	server := NewServer(store, o.hint, ch.PreimageHost, ch.HintHost, o.log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.ServeHints(groupCtx)
	})
	group.Go(func() error {
		return server.ServePreimages(groupCtx)
	})

	replayErr := replay(groupCtx, ch.HintClient, ch.PreimageClient)

	// The server goroutines block on reads from the client end; closing
	// the channel is what unblocks them once replay is done with it.
	ch.Close()
	cancel()

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		o.log.Warn("host server goroutine returned unexpectedly", "err", err)
	}

	if replayErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return coreerr.New(coreerr.Timeout, fmt.Errorf("witness generation exceeded %s: %w", InProcessDeadline, replayErr))
		}
		return replayErr
	}
	return nil
}
