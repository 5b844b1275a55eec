package host

import (
	"context"
	"io"
	"testing"

	"github.com/succinctlabs/op-succinct-go/hinter"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

func TestOrchestratorRunServesPrepopulatedKey(t *testing.T) {
	store := oracle.New()
	value := []byte("hello preimage")
	key := preimage.Keccak256Key(value)
	if err := store.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}

	handler := hinter.New(store, nil, nil, nil, nil)
	orch := NewOrchestrator(handler, nil)

	replay := func(ctx context.Context, hintRW, preimageRW io.ReadWriter) error {
		got, err := preimage.Get(preimageRW, key)
		if err != nil {
			return err
		}
		if string(got) != string(value) {
			t.Fatalf("got %q, want %q", got, value)
		}
		return nil
	}

	if err := orch.Run(context.Background(), store, replay); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestOrchestratorRunPropagatesReplayError(t *testing.T) {
	store := oracle.New()
	handler := hinter.New(store, nil, nil, nil, nil)
	orch := NewOrchestrator(handler, nil)

	wantErr := io.ErrUnexpectedEOF
	replay := func(ctx context.Context, hintRW, preimageRW io.ReadWriter) error {
		return wantErr
	}

	err := orch.Run(context.Background(), store, replay)
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}
