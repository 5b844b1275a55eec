// Package gateway implements the request gateway (C9): the thin HTTP
// front end that turns a span or aggregation proof request into a
// witness-generation run plus a dispatch to the remote proving
// network, and answers status polls against that network.
//
// Routing follows net/http's 1.22+ pattern-based ServeMux, a REST
// dispatch table keyed on method and path instead of a JSON-RPC
// method name.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/hinter"
	"github.com/succinctlabs/op-succinct-go/host"
	"github.com/succinctlabs/op-succinct-go/metrics"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
	"github.com/succinctlabs/op-succinct-go/proofs"
	"github.com/succinctlabs/op-succinct-go/proverclient"
	"github.com/succinctlabs/op-succinct-go/replay"
	"github.com/succinctlabs/op-succinct-go/rollup"
)

// witnessTimeout bounds the whole request_span_proof/request_agg_proof
// handler, one layer above the orchestrator's own InProcessDeadline so
// the HTTP response always has a chance to report a Timeout cleanly.
const witnessTimeout = host.InProcessDeadline + 10*time.Second

// Server is the HTTP front end wiring together the witness-generation
// pipeline (C1-C7), the proof-input assembler (C8), and the proving
// network client.
type Server struct {
	rollupConfig rollup.Config

	l1Client *ethclient.Client
	l2Client *ethclient.Client
	beacon   string

	rangeELF       []byte
	aggregationELF []byte
	rangeVKey      proofs.VKeyDigest

	cold oracle.ColdStore

	prover  *proverclient.Client
	metrics *metrics.Metrics
	log     log.Logger

	mux *http.ServeMux

	proofModesMu sync.Mutex
	proofModes   map[string]proofs.ProofMode
}

// New builds a gateway over already-dialed L1/L2 clients and a beacon
// node base URL. cold is the disk-backed oracle layer preimages warm
// into across runs; pass nil to keep every run's oracle memory-only.
func New(rollupConfig rollup.Config, l1Client, l2Client *ethclient.Client, beaconURL string, rangeELF, aggregationELF []byte, cold oracle.ColdStore, prover *proverclient.Client, m *metrics.Metrics, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	s := &Server{
		rollupConfig:   rollupConfig,
		l1Client:       l1Client,
		l2Client:       l2Client,
		beacon:         beaconURL,
		rangeELF:       rangeELF,
		aggregationELF: aggregationELF,
		rangeVKey:      proofs.DeriveVKeyDigest(rangeELF),
		cold:           cold,
		prover:         prover,
		metrics:        m,
		log:            logger,
		proofModes:     make(map[string]proofs.ProofMode),
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /request_span_proof", s.handleRequestSpanProof)
	s.mux.HandleFunc("POST /request_agg_proof", s.handleRequestAggProof)
	s.mux.HandleFunc("GET /status/{id}", s.handleStatus)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", m.Handler())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type spanProofRequest struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

type aggProofRequest struct {
	SubProofs []string `json:"subproofs"`
	Head      string   `json:"head"`
}

type proofIDResponse struct {
	ProofID string `json:"proof_id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Proof  []byte `json:"proof"`
}

func (s *Server) handleRequestSpanProof(w http.ResponseWriter, r *http.Request) {
	var req spanProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "request_span_proof", coreerr.New(coreerr.BadRequest, fmt.Errorf("decode body: %w", err)))
		return
	}
	if req.End <= req.Start {
		s.writeError(w, "request_span_proof", coreerr.New(coreerr.BadRequest, fmt.Errorf("end %d must be greater than start %d", req.End, req.Start)))
		return
	}

	s.metrics.ProofRequestsInFlight.Inc()
	defer s.metrics.ProofRequestsInFlight.Dec()
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), witnessTimeout)
	defer cancel()

	proofID, err := s.runSpanProof(ctx, req.Start, req.End)
	s.metrics.WitnessDuration.WithLabelValues("span").Observe(time.Since(started).Seconds())
	if err != nil {
		s.writeError(w, "request_span_proof", err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("request_span_proof", "ok").Inc()
	s.writeJSON(w, http.StatusOK, proofIDResponse{ProofID: proofID})
}

func (s *Server) runSpanProof(ctx context.Context, start, end uint64) (string, error) {
	boot, err := s.assembleBootInfo(ctx, start, end)
	if err != nil {
		return "", err
	}

	store := oracle.NewWithCold(s.cold)
	if err := store.Put(preimage.BootKey, boot.ABIEncode()); err != nil {
		return "", coreerr.New(coreerr.Internal, err)
	}
	rollupJSON, err := json.Marshal(s.rollupConfig)
	if err != nil {
		return "", coreerr.New(coreerr.Internal, fmt.Errorf("marshal rollup config: %w", err))
	}
	if err := store.Put(preimage.RollupConfigKey, rollupJSON); err != nil {
		return "", coreerr.New(coreerr.Internal, err)
	}

	hintHandler := hinter.New(store, hinter.NewL1Source(s.l1Client), hinter.NewL2Source(s.l2Client), hinter.NewBeaconSource(s.beacon), s.log)
	orchestrator := host.NewOrchestrator(hintHandler, s.log)
	if err := orchestrator.Run(ctx, store, func(ctx context.Context, hintRW, preimageRW io.ReadWriter) error {
		return replay.Run(ctx, hintRW, preimageRW, s.log)
	}); err != nil {
		return "", err
	}
	s.metrics.OracleSize.Observe(float64(store.Len()))

	stdin, err := proofs.AssembleSpan(store)
	if err != nil {
		return "", err
	}
	proofID, err := s.prover.RequestProof(ctx, s.rangeELF, stdin, proofs.Compressed)
	if err != nil {
		return "", err
	}
	s.rememberMode(proofID, proofs.Compressed)
	return proofID, nil
}

func (s *Server) handleRequestAggProof(w http.ResponseWriter, r *http.Request) {
	var req aggProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "request_agg_proof", coreerr.New(coreerr.BadRequest, fmt.Errorf("decode body: %w", err)))
		return
	}
	if !strings.HasPrefix(req.Head, "0x") || len(req.Head) != 66 {
		s.writeError(w, "request_agg_proof", coreerr.New(coreerr.BadRequest, fmt.Errorf("head must be a 32-byte hex hash")))
		return
	}
	head := common.HexToHash(req.Head)

	s.metrics.ProofRequestsInFlight.Inc()
	defer s.metrics.ProofRequestsInFlight.Dec()
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), witnessTimeout)
	defer cancel()

	proofID, err := s.runAggProof(ctx, req.SubProofs, head)
	s.metrics.WitnessDuration.WithLabelValues("aggregate").Observe(time.Since(started).Seconds())
	if err != nil {
		s.writeError(w, "request_agg_proof", err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("request_agg_proof", "ok").Inc()
	s.writeJSON(w, http.StatusOK, proofIDResponse{ProofID: proofID})
}

func (s *Server) runAggProof(ctx context.Context, encoded []string, head common.Hash) (string, error) {
	subProofs := make([]proofs.SubProof, 0, len(encoded))
	for i, b64 := range encoded {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", coreerr.New(coreerr.BadRequest, fmt.Errorf("sub-proof %d: decode base64: %w", i, err))
		}
		if len(raw) < rollup.BootInfoSize {
			return "", coreerr.New(coreerr.BadRequest, fmt.Errorf("sub-proof %d: public values shorter than boot info", i))
		}
		boot, err := rollup.DecodeBootInfo(raw[:rollup.BootInfoSize])
		if err != nil {
			return "", coreerr.New(coreerr.BadRequest, fmt.Errorf("sub-proof %d: %w", i, err))
		}
		subProofs = append(subProofs, proofs.SubProof{Mode: proofs.Compressed, Boot: boot, Bytes: raw[rollup.BootInfoSize:]})
	}

	chain, err := s.l1HeaderChain(ctx, head, subProofs)
	if err != nil {
		return "", err
	}

	stdin, err := proofs.AssembleAggregate(subProofs, head, s.rangeVKey, chain)
	if err != nil {
		return "", err
	}
	proofID, err := s.prover.RequestProof(ctx, s.aggregationELF, stdin, proofs.Plonk)
	if err != nil {
		return "", err
	}
	s.rememberMode(proofID, proofs.Plonk)
	return proofID, nil
}

// rememberMode records which recursion mode a dispatched proof job was
// requested under, so a later status poll knows how to translate the
// cluster's raw proof bytes for that id.
func (s *Server) rememberMode(proofID string, mode proofs.ProofMode) {
	s.proofModesMu.Lock()
	defer s.proofModesMu.Unlock()
	s.proofModes[proofID] = mode
}

// modeFor returns the recursion mode proofID was dispatched under,
// defaulting to Compressed for an id this process never dispatched
// (e.g. after a restart) since that is the more conservative
// translation — the full proof, not a trimmed on-chain slice.
func (s *Server) modeFor(proofID string) proofs.ProofMode {
	s.proofModesMu.Lock()
	defer s.proofModesMu.Unlock()
	mode, ok := s.proofModes[proofID]
	if !ok {
		return proofs.Compressed
	}
	return mode
}

// l1HeaderChain walks L1 headers backward from head until every
// sub-proof's L1 head is covered, per the chain-closure contract C8
// enforces.
func (s *Server) l1HeaderChain(ctx context.Context, head common.Hash, subProofs []proofs.SubProof) ([]rollup.L1HeaderLink, error) {
	need := make(map[common.Hash]bool, len(subProofs))
	for _, sp := range subProofs {
		need[sp.Boot.L1Head] = true
	}

	var chain []rollup.L1HeaderLink
	cursor := head
	const maxWalk = 100_000
	for i := 0; i < maxWalk; i++ {
		header, err := s.l1Client.HeaderByHash(ctx, cursor)
		if err != nil {
			return nil, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 header %s: %w", cursor, err))
		}
		chain = append(chain, rollup.L1HeaderLink{Hash: header.Hash(), ParentHash: header.ParentHash, Number: header.Number.Uint64()})
		delete(need, header.Hash())
		if len(need) == 0 {
			return chain, nil
		}
		cursor = header.ParentHash
	}
	return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("l1 header chain did not cover every sub-proof head within %d blocks", maxWalk))
}

// assembleBootInfo derives the boot struct for a span request from the
// rollup node's own output-root RPC: the prestate output commits to
// start-1, the poststate output to end.
func (s *Server) assembleBootInfo(ctx context.Context, start, end uint64) (rollup.BootInfo, error) {
	if start == 0 {
		return rollup.BootInfo{}, coreerr.New(coreerr.BadRequest, fmt.Errorf("start block must be >= 1"))
	}

	preRoot, err := s.outputAtBlock(ctx, start-1)
	if err != nil {
		return rollup.BootInfo{}, err
	}
	postRoot, err := s.outputAtBlock(ctx, end)
	if err != nil {
		return rollup.BootInfo{}, err
	}

	l1Head, err := s.l1Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return rollup.BootInfo{}, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 head: %w", err))
	}
	chainID, err := s.l2Client.ChainID(ctx)
	if err != nil {
		return rollup.BootInfo{}, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 chain id: %w", err))
	}

	return rollup.BootInfo{
		L1Head:        l1Head.Hash(),
		L2PreRoot:     preRoot,
		L2PostRoot:    postRoot,
		L2BlockNumber: end,
		ChainID:       chainID.Uint64(),
	}, nil
}

// outputAtBlock asks the L2 rollup node for the output root committing
// to the state after executing blockNumber, mirroring the hint
// handler's optimism_outputByRoot call but keyed by number, the way a
// real proposer driver resolves output roots before any witness
// generation begins.
func (s *Server) outputAtBlock(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	var result struct {
		OutputRoot common.Hash `json:"outputRoot"`
	}
	rpcClient := s.l2Client.Client()
	if err := rpcClient.CallContext(ctx, &result, "optimism_outputAtBlock", hexBig(blockNumber)); err != nil {
		return common.Hash{}, coreerr.New(coreerr.Upstream, fmt.Errorf("optimism_outputAtBlock %d: %w", blockNumber, err))
	}
	return result.OutputRoot, nil
}

func hexBig(n uint64) string {
	return "0x" + new(big.Int).SetUint64(n).Text(16)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, proof, err := s.prover.GetProofStatus(r.Context(), id, s.modeFor(id))
	if err != nil {
		s.writeError(w, "status", err)
		return
	}
	s.metrics.RequestsTotal.WithLabelValues("status", "ok").Inc()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: string(status), Proof: proof})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "err", err)
	}
}

// writeError maps every coreerr.Kind to a 500 with a stringified
// cause, per the error handling design: the core propagates one opaque
// error and the gateway does not fan it out into kind-specific status
// codes.
func (s *Server) writeError(w http.ResponseWriter, endpoint string, err error) {
	s.metrics.RequestsTotal.WithLabelValues(endpoint, string(coreerr.KindOf(err))).Inc()
	s.log.Warn("request failed", "endpoint", endpoint, "kind", coreerr.KindOf(err), "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
