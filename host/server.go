// Package host implements the preimage server (C5) and the orchestrator
// (C7) that runs it alongside the hint handler and the replay client
// for one witness-generation run.
package host

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/hinter"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

// Server is the preimage server (C5): it answers get(key) frames from
// the replay client's preimage channel, reading from the oracle store
// that the hint handler populates concurrently. A miss blocks until a
// concurrent Handle call inserts the key or the run's deadline expires.
type Server struct {
	store   *oracle.Store
	hint    *hinter.Handler
	preimRW io.ReadWriter
	hintRW  io.ReadWriter
	log     log.Logger
}

// NewServer builds a preimage server over one run's channel host ends.
func NewServer(store *oracle.Store, hint *hinter.Handler, preimageRW, hintRW io.ReadWriter, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	return &Server{store: store, hint: hint, preimRW: preimageRW, hintRW: hintRW, log: logger}
}

// ServeHints reads hint frames from the host end of the hint channel
// until ctx is cancelled or the client end closes, dispatching each to
// the hint handler and acking once it has run (successfully or not —
// a hint is advisory, so the client does not need to learn it failed;
// the eventual `get` will surface the real error).
func (s *Server) ServeHints(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		hint, err := preimage.ReadHint(s.hintRW)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return coreerr.New(coreerr.Protocol, fmt.Errorf("read hint frame: %w", err))
		}
		if err := s.hint.Handle(hint); err != nil {
			s.log.Warn("hint handler failed", "tag", hint.Tag, "err", err)
		}
		if err := preimage.WriteHintAck(s.hintRW); err != nil {
			return coreerr.New(coreerr.Protocol, fmt.Errorf("write hint ack: %w", err))
		}
	}
}

// ServePreimages reads get(key) frames from the host end of the
// preimage channel until ctx is cancelled or the client end closes,
// answering each from the oracle store.
func (s *Server) ServePreimages(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		key, err := preimage.ReadKeyRequest(s.preimRW)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return coreerr.New(coreerr.Protocol, fmt.Errorf("read key request: %w", err))
		}

		value, err := s.store.WaitFor(ctx, key)
		if err != nil {
			return coreerr.New(coreerr.Timeout, fmt.Errorf("wait for preimage %x: %w", key.Bytes()[:8], err))
		}
		if err := preimage.WritePreimageResponse(s.preimRW, value); err != nil {
			return coreerr.New(coreerr.Protocol, fmt.Errorf("write preimage response: %w", err))
		}
	}
}
