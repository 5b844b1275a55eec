package hinter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
)

// fieldElementsPerBlob matches the EIP-4844 blob layout: 4096 32-byte
// field elements.
const fieldElementsPerBlob = 4096

// kzgOpeningPoints is the number of field elements the l1-blob hint
// asks for alongside the full body, one per point the KZG opening
// proof touches.
const kzgOpeningPoints = 6

// BeaconSource fetches EIP-4844 blob sidecars from a consensus-layer
// beacon node's REST API.
type BeaconSource struct {
	baseURL string
	client  *http.Client
}

// NewBeaconSource points at a beacon node's base REST URL (no trailing
// slash), e.g. "http://localhost:5052".
func NewBeaconSource(baseURL string) *BeaconSource {
	return &BeaconSource{baseURL: baseURL, client: http.DefaultClient}
}

type blobSidecar struct {
	Index         string         `json:"index"`
	Blob          hexutil.Bytes  `json:"blob"`
	KZGCommitment kzg4844.Commitment `json:"kzg_commitment"`
}

type blobSidecarsResponse struct {
	Data []blobSidecar `json:"data"`
}

// Blob fetches the sidecar whose commitment matches, identified by its
// slot, and returns the full blob body plus a fixed-size sample of its
// field elements.
func (b *BeaconSource) Blob(commitment [48]byte, slot uint64) (body []byte, fieldElements [][]byte, err error) {
	url := fmt.Sprintf("%s/eth/v1/beacon/blob_sidecars/%d", b.baseURL, slot)
	sidecars, err := fetchJSON[blobSidecarsResponse](context.Background(), b.client, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch blob sidecars for slot %d: %w", slot, err)
	}

	for _, sc := range sidecars.Data {
		if [48]byte(sc.KZGCommitment) == commitment {
			blob := []byte(sc.Blob)
			elements := sampleFieldElements(blob, kzgOpeningPoints)
			return blob, elements, nil
		}
	}
	return nil, nil, fmt.Errorf("no sidecar for commitment %x at slot %d", commitment, slot)
}

// sampleFieldElements returns n field elements spread evenly across
// the blob, the subset an EIP-4844 point-evaluation opening touches.
func sampleFieldElements(blob []byte, n int) [][]byte {
	elements := make([][]byte, 0, n)
	stride := fieldElementsPerBlob / n
	for i := 0; i < n; i++ {
		idx := i * stride
		start := idx * 32
		end := start + 32
		if end > len(blob) {
			break
		}
		elements = append(elements, blob[start:end])
	}
	return elements
}

func fetchJSON[T any](ctx context.Context, client *http.Client, url string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
