package preimage

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Duplex is one end of a bidirectional in-process byte stream. Reads and
// writes are backed by independent io.Pipe halves, so a Duplex can be
// read from and written to concurrently without the two directions
// blocking each other. Closing a Duplex propagates to whichever end is
// blocked on the other side.
type Duplex struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *Duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *Duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

// Close closes both halves of this end. The peer's blocked Read/Write
// calls unblock with io.ErrClosedPipe / the peer's own EOF.
func (d *Duplex) Close() error {
	werr := d.w.Close()
	rerr := d.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// NewDuplexPair returns two Duplex values wired to each other: writes to
// one are readable from the other and vice versa.
func NewDuplexPair() (a, b *Duplex) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &Duplex{r: ar, w: aw}, &Duplex{r: br, w: bw}
}

// Channel is the full C1 channel pair for one witness-generation run: a
// hint channel and a preimage channel, each with a host end and a
// client end. FIFO, exactly-once delivery is a property of the
// underlying io.Pipe; frames across the two channels are unordered
// relative to each other, as specified.
type Channel struct {
	HintHost        *Duplex
	HintClient      *Duplex
	PreimageHost    *Duplex
	PreimageClient  *Duplex
}

// NewChannel allocates a fresh channel pair for one run.
func NewChannel() *Channel {
	hintHost, hintClient := NewDuplexPair()
	preimageHost, preimageClient := NewDuplexPair()
	return &Channel{
		HintHost:       hintHost,
		HintClient:     hintClient,
		PreimageHost:   preimageHost,
		PreimageClient: preimageClient,
	}
}

// Close tears down all four Duplex ends. Like io.Pipe's own Close it is
// safe to call more than once; the host orchestrator closes a Channel
// explicitly once replay returns and again from a deferred call.
func (c *Channel) Close() {
	c.HintHost.Close()
	c.HintClient.Close()
	c.PreimageHost.Close()
	c.PreimageClient.Close()
}

// --- Hint frame wire format: uint32-BE length prefix, ASCII payload,
// followed by a single ack byte written by whichever side receives the
// hint. ---

// WriteHint writes one hint frame: a uint32-BE length followed by the
// hint's wire form.
func WriteHint(w io.Writer, h Hint) error {
	payload := []byte(h.String())
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write hint length: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write hint payload: %w", err)
		}
	}
	return nil
}

// ReadHint reads one hint frame. Returns io.EOF only when the peer
// closed cleanly between frames.
func ReadHint(r io.Reader) (Hint, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Hint{}, io.EOF
		}
		return Hint{}, fmt.Errorf("read hint length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Hint{}, fmt.Errorf("read hint payload: %w", err)
		}
	}
	return ParseHint(string(payload))
}

// WriteHintAck writes the single-byte acknowledgement the client waits
// on after sending a hint, before issuing the `get` it was advisory for.
func WriteHintAck(w io.Writer) error {
	_, err := w.Write([]byte{0})
	return err
}

// ReadHintAck blocks until the host has finished acting on the last
// hint sent.
func ReadHintAck(r io.Reader) error {
	var ack [1]byte
	_, err := io.ReadFull(r, ack[:])
	return err
}

// --- Preimage frame wire format: a 32-byte key request, answered with
// a uint64-BE length followed by the value. ---

// WriteKeyRequest sends a `get(key)` request.
func WriteKeyRequest(w io.Writer, key Key) error {
	_, err := w.Write(key.Bytes())
	return err
}

// ReadKeyRequest reads a `get(key)` request.
func ReadKeyRequest(r io.Reader) (Key, error) {
	var key Key
	if _, err := io.ReadFull(r, key[:]); err != nil {
		if err == io.EOF {
			return Key{}, io.EOF
		}
		return Key{}, fmt.Errorf("read preimage key: %w", err)
	}
	return key, nil
}

// WritePreimageResponse answers a key request with its value.
func WritePreimageResponse(w io.Writer, value []byte) error {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(value)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write preimage length: %w", err)
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return fmt.Errorf("write preimage value: %w", err)
		}
	}
	return nil
}

// ReadPreimageResponse reads the value for a previously sent key
// request.
func ReadPreimageResponse(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read preimage length: %w", err)
	}
	length := binary.BigEndian.Uint64(lenBuf[:])
	value := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("read preimage value: %w", err)
		}
	}
	return value, nil
}

// Get is the client-side round trip: send a key request, block for the
// response. This is the only operation the replay client's oracle
// adapter needs from the preimage channel.
func Get(rw io.ReadWriter, key Key) ([]byte, error) {
	if err := WriteKeyRequest(rw, key); err != nil {
		return nil, err
	}
	return ReadPreimageResponse(rw)
}

// SendHint is the client-side round trip for a hint: write the frame,
// wait for the host's ack.
func SendHint(rw io.ReadWriter, h Hint) error {
	if err := WriteHint(rw, h); err != nil {
		return err
	}
	return ReadHintAck(rw)
}
