// Package proverclient implements the request/poll contract the remote
// proving cluster exposes. Only this interface is consumed — everything
// about how the cluster actually proves is out of scope.
package proverclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/proofs"
)

// Status is the proof-network job status, mirrored from the cluster's
// own vocabulary rather than invented here.
type Status string

const (
	StatusRequested  Status = "PROOF_REQUESTED"
	StatusFulfilled  Status = "PROOF_FULFILLED"
	StatusUnspecified Status = "PROOF_UNSPECIFIED"
)

// statusPollTimeout bounds a single /status round trip, independent of
// and much shorter than the witness-generation deadline.
const statusPollTimeout = 10 * time.Second

// Client is the HTTP binding to the remote proving cluster.
type Client struct {
	baseURL    string
	privateKey string
	httpClient *http.Client
	log        log.Logger
}

// New builds a Client against baseURL, authenticating requests with
// privateKey (the SP1_PRIVATE_KEY environment value).
func New(baseURL, privateKey string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Root()
	}
	return &Client{
		baseURL:    baseURL,
		privateKey: privateKey,
		httpClient: &http.Client{},
		log:        logger,
	}
}

type requestProofBody struct {
	ELF    []byte          `json:"elf"`
	Stdin  []byte          `json:"stdin"`
	Mode   proofModeWire   `json:"mode"`
}

type proofModeWire string

const (
	modeCompressed proofModeWire = "compressed"
	modePlonk      proofModeWire = "plonk"
)

// RequestProof submits a proving job and returns the identifier the
// caller polls via GetProofStatus. No retries happen here — per the
// error handling design, retrying a dispatched job is the caller's
// responsibility, not the core's.
func (c *Client) RequestProof(ctx context.Context, elf, stdin []byte, mode proofs.ProofMode) (string, error) {
	wireMode := modeCompressed
	if mode == proofs.Plonk {
		wireMode = modePlonk
	}
	body, err := json.Marshal(requestProofBody{ELF: elf, Stdin: stdin, Mode: wireMode})
	if err != nil {
		return "", coreerr.New(coreerr.Internal, fmt.Errorf("proverclient: encode request: %w", err))
	}

	var resp struct {
		ProofID string `json:"proof_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/request_proof", body, &resp); err != nil {
		return "", err
	}
	return resp.ProofID, nil
}

// GetProofStatus polls the cluster once for id's status, bounded by a
// 10-second ceiling independent of ctx's own deadline. The bytes
// returned depend on mode: a compressed (span) proof is re-serialized
// in full, since it is only ever consumed by a later aggregation job
// that needs the whole recursion proof; a plonk (aggregate) proof is
// trimmed to the cluster's onchain_proof slice, the only bytes an
// onchain verifier contract actually checks.
func (c *Client) GetProofStatus(ctx context.Context, id string, mode proofs.ProofMode) (Status, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, statusPollTimeout)
	defer cancel()

	var resp struct {
		Status       Status `json:"status"`
		Proof        []byte `json:"proof,omitempty"`
		OnchainProof []byte `json:"onchain_proof,omitempty"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/proof_status/"+id, nil, &resp); err != nil {
		return "", nil, err
	}
	if resp.Status != StatusFulfilled {
		return resp.Status, nil, nil
	}
	if mode == proofs.Plonk {
		return resp.Status, resp.OnchainProof, nil
	}
	return resp.Status, resp.Proof, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return coreerr.New(coreerr.Internal, fmt.Errorf("proverclient: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.privateKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.privateKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("proverclient: %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("proverclient: read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("proverclient: %s %s: status %d: %s", method, path, resp.StatusCode, respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return coreerr.New(coreerr.Corrupt, fmt.Errorf("proverclient: decode response: %w", err))
	}
	return nil
}
