// Package finchan implements a point-to-point request/response channel over
// TCP for structured finance operations. Each logical message travels as one
// length-prefixed frame; Request and Response records are encoded into those
// frames as delimited text. A channel is strictly half-duplex: one request
// round at a time, owned by a single goroutine.
package finchan

import (
	"bufio"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrChannelClosed is returned when operating on a closed channel.
var ErrChannelClosed = errors.New("channel closed")

// Channel is one established connection plus its framing and codec
// operations. It owns the underlying socket for its lifetime and is not
// safe for use by more than one goroutine at a time.
type Channel struct {
	rawConn *net.TCPConn
	reader  *bufio.Reader
	logger  Logger
	limiter *rate.Limiter

	opts options

	// id tags log lines so rounds on different channels can be told apart.
	id string
	// peer is the remote "ip:port", resolved once at establishment.
	peer string

	closed atomic.Bool
}

func newChannel(conn *net.TCPConn, opts options) *Channel {
	c := &Channel{
		rawConn: conn,
		reader:  bufio.NewReader(conn),
		logger:  opts.logger,
		opts:    opts,
		id:      uuid.NewString(),
		peer:    conn.RemoteAddr().String(),
	}
	if opts.rateLimit > 0 {
		c.limiter = rate.NewLimiter(opts.rateLimit, opts.rateBurst)
	}
	return c
}

// Dial establishes a client channel to host:port. The host may be a literal
// IPv4 address or the alias "localhost"; hostname resolution beyond that is
// not supported. A failure to parse the address or connect is returned as a
// *SetupError and no channel exists afterwards.
func Dial(host string, port int, opt ...Option) (*Channel, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	ip, err := resolveHost(host)
	if err != nil {
		return nil, &SetupError{Op: "dial", Err: err}
	}

	conn, err := net.DialTCP("tcp", nil, &net.TCPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, &SetupError{Op: "dial", Err: err}
	}
	_ = conn.SetNoDelay(true)

	c := newChannel(conn, opts)
	c.logger.Info("connected", "peer", c.peer, "channel_id", c.id)
	return c, nil
}

// ID returns the channel's diagnostic identifier.
func (c *Channel) ID() string {
	return c.id
}

// PeerAddress returns the remote "ip:port", cached at establishment time.
func (c *Channel) PeerAddress() string {
	return c.peer
}

// NetConn exposes the underlying connection for diagnostics.
func (c *Channel) NetConn() net.Conn {
	return c.rawConn
}

// Close releases the underlying socket. Safe to call multiple times; the
// descriptor is closed exactly once.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.logger.Info("channel closed", "peer", c.peer, "channel_id", c.id)
	return c.rawConn.Close()
}

// IsClosed returns true if the channel has been closed locally.
func (c *Channel) IsClosed() bool {
	return c.closed.Load()
}

// WriteFrame sends one length-prefixed frame carrying payload.
func (c *Channel) WriteFrame(payload []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	return WriteFrame(c.rawConn, payload)
}

// ReadFrame blocks until one complete frame arrives and returns its payload.
// A frame declaring more than the channel's maximum size fails with
// ErrFrameTooLarge; a clean disconnect between frames fails with
// ErrPeerClosed.
func (c *Channel) ReadFrame() ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrChannelClosed
	}
	return ReadFrame(c.reader, c.opts.maxFrameSize)
}

// SendRequest performs one client round: encode and send req as a frame,
// then block until the matching Response frame arrives and decode it.
//
// Errors keep their kind: a disconnect surfaces ErrPeerClosed, an oversized
// reply ErrFrameTooLarge, a bad payload ErrMalformedMessage, and transport
// failures carry the underlying cause.
func (c *Channel) SendRequest(req *Request) (*Response, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if err := c.WriteFrame(payload); err != nil {
		return nil, errors.Wrap(err, "send request")
	}

	reply, err := c.ReadFrame()
	if err != nil {
		return nil, errors.Wrap(err, "receive response")
	}
	return DecodeResponse(reply)
}

// ReceiveRequest blocks until one Request frame arrives and decodes it.
// ErrPeerClosed signals that the client hung up and the serving loop should
// end; other errors are genuine faults.
func (c *Channel) ReceiveRequest() (*Request, error) {
	payload, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeRequest(payload)
}

// SendResponse encodes resp and sends it as one frame.
func (c *Channel) SendResponse(resp *Response) error {
	payload, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.WriteFrame(payload)
}
