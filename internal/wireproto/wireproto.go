// Package wireproto implements the sync wire protocol of spec §4.8: a
// length-delimited stream of typed messages over an ordered,
// bytes-reliable transport. Framing is transport-agnostic
// (ReadFrame/WriteFrame work over any io.Reader/io.Writer); SendWS/RecvWS
// adapt the same frames to a *websocket.Conn for internal/syncroom and
// its clients.
//
// Grounded on internal/wsproto/codec.go's envelope idea (magic + version
// + type byte prefix, msgpack payload) but reworked around spec §4.8's
// three message kinds instead of syftmsg's event catalog.
package wireproto

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/diaryxhq/diaryx/internal/crdt"
)

// MsgType identifies which of the three spec §4.8 message kinds a Frame
// carries.
type MsgType uint8

const (
	// MsgSyncStep1 carries a msgpack-encoded crdt.StateVector: "here is
	// what I already have."
	MsgSyncStep1 MsgType = iota + 1
	// MsgSyncStep2 carries a diff produced by crdt.EncodeDiff against the
	// state vector from a peer's SyncStep1.
	MsgSyncStep2
	// MsgUpdate carries an unsolicited delta to be applied and
	// rebroadcast.
	MsgUpdate
)

func (t MsgType) String() string {
	switch t {
	case MsgSyncStep1:
		return "sync_step1"
	case MsgSyncStep2:
		return "sync_step2"
	case MsgUpdate:
		return "update"
	default:
		return fmt.Sprintf("msgtype(%d)", t)
	}
}

// Frame is one wire message: a type tag and its opaque payload bytes.
// Payload encoding is the caller's concern (crdt.WorkspaceCrdt/BodyDoc
// already msgpack-encode their state vectors, diffs, and updates).
type Frame struct {
	Type    MsgType
	Payload []byte
}

// maxFrameLen bounds a single frame's payload to guard against a
// corrupt or hostile length prefix forcing an unbounded allocation.
const maxFrameLen = 64 << 20 // 64 MiB

// WriteFrame writes f as "varint(type) || varint(len) || payload" to w.
func WriteFrame(w io.Writer, f Frame) error {
	var header [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(header[:], uint64(f.Type))
	n += binary.PutUvarint(header[n:], uint64(len(f.Payload)))
	if _, err := w.Write(header[:n]); err != nil {
		return fmt.Errorf("wireproto: write header: %w", err)
	}
	if len(f.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(f.Payload); err != nil {
		return fmt.Errorf("wireproto: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r, as written by WriteFrame.
func ReadFrame(r io.ByteReader) (Frame, error) {
	typ, err := binary.ReadUvarint(r)
	if err != nil {
		return Frame{}, err
	}
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return Frame{}, fmt.Errorf("wireproto: read length: %w", err)
	}
	if length > maxFrameLen {
		return Frame{}, fmt.Errorf("wireproto: frame length %d exceeds max %d", length, maxFrameLen)
	}
	payload := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return Frame{}, fmt.Errorf("wireproto: read payload: %w", err)
		}
		payload[i] = b
	}
	return Frame{Type: MsgType(typ), Payload: payload}, nil
}

// NewFrameReader wraps r (which need not implement io.ByteReader, e.g. a
// raw net.Conn) so ReadFrame can be used against it.
func NewFrameReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// SendWS writes f as a single binary websocket message.
func SendWS(ctx context.Context, conn *websocket.Conn, f Frame) error {
	var buf []byte
	w := byteSliceWriter{&buf}
	if err := WriteFrame(&w, f); err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, buf)
}

// RecvWS reads one binary websocket message and parses it as a Frame.
func RecvWS(ctx context.Context, conn *websocket.Conn) (Frame, error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	if typ != websocket.MessageBinary {
		return Frame{}, fmt.Errorf("wireproto: expected binary message, got %v", typ)
	}
	br := bufio.NewReader(&byteSliceReader{data: data})
	return ReadFrame(br)
}

// EncodeStateVector msgpack-encodes sv as a SyncStep1 payload.
func EncodeStateVector(sv crdt.StateVector) ([]byte, error) {
	return msgpack.Marshal(sv)
}

// DecodeStateVector decodes a SyncStep1 payload back into a StateVector.
func DecodeStateVector(data []byte) (crdt.StateVector, error) {
	var sv crdt.StateVector
	if err := msgpack.Unmarshal(data, &sv); err != nil {
		return nil, fmt.Errorf("wireproto: decode state vector: %w", err)
	}
	return sv, nil
}

type byteSliceWriter struct {
	buf *[]byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

type byteSliceReader struct {
	data []byte
	pos  int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
