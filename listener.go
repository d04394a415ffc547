package finchan

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// Listener is a server-side channel factory: it only accepts connections,
// it never carries frames itself. Channels it produces inherit its options
// (frame size limit, logger, rate limit).
type Listener struct {
	listener *net.TCPListener
	logger   Logger
	opts     options
}

// Listen binds a listening socket to bindAddr:port. An empty bindAddr means
// all interfaces; otherwise it must be a literal IPv4 address. The Go
// runtime sets SO_REUSEADDR on TCP listeners, and the accept backlog is
// kernel-managed. Any failure is returned as a *SetupError and is fatal to
// construction.
func Listen(bindAddr string, port int, opt ...Option) (*Listener, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	var ip net.IP
	if bindAddr != "" {
		var err error
		if ip, err = resolveHost(bindAddr); err != nil {
			return nil, &SetupError{Op: "listen", Err: err}
		}
	}

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, &SetupError{Op: "listen", Err: err}
	}

	l := &Listener{
		listener: listener,
		logger:   opts.logger,
		opts:     opts,
	}
	l.logger.Info("listening", "addr", listener.Addr())
	return l, nil
}

// Accept blocks until a peer connects and returns an established channel
// wrapping the accepted socket, with the peer address already resolved.
// Accept failures are returned to the caller, who may retry; they do not
// poison the listener.
func (l *Listener) Accept() (*Channel, error) {
	conn, err := l.listener.AcceptTCP()
	if err != nil {
		return nil, errors.Wrap(err, "accept")
	}
	_ = conn.SetNoDelay(true)

	c := newChannel(conn, l.opts)
	l.logger.Debug("accepted connection", "peer", c.peer, "channel_id", c.id)
	return c, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Port returns the bound port, useful when listening on port 0.
func (l *Listener) Port() int {
	return l.listener.Addr().(*net.TCPAddr).Port
}

// SetDeadline sets the deadline for pending and future Accept calls.
func (l *Listener) SetDeadline(t time.Time) error {
	return l.listener.SetDeadline(t)
}

// Close releases the listening socket. Blocked Accept calls return an error.
func (l *Listener) Close() error {
	return l.listener.Close()
}
