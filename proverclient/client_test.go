package proverclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/proofs"
)

func TestRequestProof(t *testing.T) {
	var gotAuth string
	var gotMode proofModeWire
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body requestProofBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		gotMode = body.Mode
		json.NewEncoder(w).Encode(map[string]string{"proof_id": "proof-123"})
	}))
	defer srv.Close()

	c := New(srv.URL, "supersecret", nil)
	id, err := c.RequestProof(context.Background(), []byte("elf"), []byte("stdin"), proofs.Plonk)
	if err != nil {
		t.Fatalf("RequestProof: %v", err)
	}
	if id != "proof-123" {
		t.Fatalf("proof id = %q, want proof-123", id)
	}
	if gotAuth != "Bearer supersecret" {
		t.Fatalf("Authorization header = %q", gotAuth)
	}
	if gotMode != modePlonk {
		t.Fatalf("mode = %q, want %q", gotMode, modePlonk)
	}
}

func TestRequestProofUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	_, err := c.RequestProof(context.Background(), nil, nil, proofs.Compressed)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := coreerr.KindOf(err); got != coreerr.Upstream {
		t.Fatalf("kind = %q, want upstream", got)
	}
}

func TestGetProofStatusFulfilled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/proof_status/proof-123" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": StatusFulfilled,
			"proof":  []byte("the-proof"),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	status, proof, err := c.GetProofStatus(context.Background(), "proof-123", proofs.Compressed)
	if err != nil {
		t.Fatalf("GetProofStatus: %v", err)
	}
	if status != StatusFulfilled {
		t.Fatalf("status = %q", status)
	}
	if string(proof) != "the-proof" {
		t.Fatalf("proof = %q", proof)
	}
}

func TestGetProofStatusPlonkUsesOnchainProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":        StatusFulfilled,
			"proof":         []byte("the-full-proof"),
			"onchain_proof": []byte("the-onchain-proof"),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	_, proof, err := c.GetProofStatus(context.Background(), "proof-123", proofs.Plonk)
	if err != nil {
		t.Fatalf("GetProofStatus: %v", err)
	}
	if string(proof) != "the-onchain-proof" {
		t.Fatalf("proof = %q, want the-onchain-proof", proof)
	}
}

func TestGetProofStatusPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": StatusRequested})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	status, proof, err := c.GetProofStatus(context.Background(), "proof-123", proofs.Compressed)
	if err != nil {
		t.Fatalf("GetProofStatus: %v", err)
	}
	if status != StatusRequested {
		t.Fatalf("status = %q", status)
	}
	if proof != nil {
		t.Fatalf("expected nil proof while pending, got %q", proof)
	}
}

func TestGetProofStatusCorruptResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	_, _, err := c.GetProofStatus(context.Background(), "proof-123", proofs.Compressed)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := coreerr.KindOf(err); got != coreerr.Corrupt {
		t.Fatalf("kind = %q, want corrupt", got)
	}
}
