package finchan

import (
	"bytes"
	"encoding/binary"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
)

func TestWriteFrame_WireFormat(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("2|42|0||")

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	wire := buf.Bytes()
	if len(wire) != frameHeaderSize+len(payload) {
		t.Fatalf("wire length = %d, want %d", len(wire), frameHeaderSize+len(payload))
	}

	length := binary.BigEndian.Uint32(wire[:frameHeaderSize])
	if int(length) != len(payload) {
		t.Errorf("declared length = %d, want %d", length, len(payload))
	}

	if !bytes.Equal(wire[frameHeaderSize:], payload) {
		t.Errorf("payload on wire = %q, want %q", wire[frameHeaderSize:], payload)
	}
}

func TestReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("1|100.5||OK")

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, err := ReadFrame(&buf, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame = %q, want %q", got, payload)
	}
}

func TestReadFrame_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, err := ReadFrame(&buf, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("payload length = %d, want 0", len(got))
	}
}

// TestReadFrame_ShortReads forces the transport to deliver one byte per
// Read call, the worst case a stream socket can produce.
func TestReadFrame_ShortReads(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("finance"), 100)

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, err := ReadFrame(iotest.OneByteReader(&buf), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if !bytes.Equal(got, payload) {
		t.Error("payload corrupted across short reads")
	}
}

func TestReadFrame_Oversize(t *testing.T) {
	const limit = 64

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], limit+1)

	_, err := ReadFrame(bytes.NewReader(header[:]), limit)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

// A declared length just under the limit must still be accepted.
func TestReadFrame_AtLimit(t *testing.T) {
	const limit = 64

	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("x"), limit)
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got, err := ReadFrame(&buf, limit)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got) != limit {
		t.Errorf("payload length = %d, want %d", len(got), limit)
	}
}

func TestReadFrame_CleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultMaxFrameSize)
	if !errors.Is(err, ErrPeerClosed) {
		t.Errorf("expected ErrPeerClosed, got %v", err)
	}
}

func TestReadFrame_TruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultMaxFrameSize)
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
	if errors.Is(err, ErrPeerClosed) {
		t.Error("truncated header must not be reported as a clean close")
	}
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString("short")

	_, err := ReadFrame(&buf, DefaultMaxFrameSize)
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
