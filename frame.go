package finchan

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// frameHeaderSize is the size of the length prefix carried by every frame.
const frameHeaderSize = 4

// DefaultMaxFrameSize is the default upper bound on a single frame's
// declared payload length (1MB).
const DefaultMaxFrameSize = 1024 * 1024

// Errors returned by the framing layer.
var (
	// ErrFrameTooLarge is returned when a frame header declares a payload
	// larger than the configured maximum. The payload is never read.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrPeerClosed is returned when the remote end closed the connection
	// cleanly between frames.
	ErrPeerClosed = errors.New("peer closed connection")
)

// WriteFrame writes one length-prefixed frame to w: a 4-byte big-endian
// payload length followed by the payload itself, with no terminator.
// For stream sockets the io.Writer contract already retries partial writes,
// so a returned error means the frame must be considered undelivered.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "write frame payload")
	}
	return nil
}

// ReadFrame reads exactly one frame from r and returns its payload.
//
// The 4-byte header is read in full before anything else; a clean EOF at
// that point means the peer hung up between frames and is reported as
// ErrPeerClosed. A declared length above maxSize is rejected with
// ErrFrameTooLarge before any payload byte is read or buffered, so a
// misbehaving peer cannot force an oversized allocation.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, ErrPeerClosed
		}
		return nil, errors.Wrap(err, "read frame header")
	}

	length := binary.BigEndian.Uint32(header[:])
	if int64(length) > int64(maxSize) {
		return nil, errors.Wrapf(ErrFrameTooLarge, "declared %d bytes, limit %d", length, maxSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "read frame payload")
	}
	return payload, nil
}
