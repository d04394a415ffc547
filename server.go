package finchan

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Handler is the interface for serving accepted channels.
// Handle is called on its own goroutine for each accepted channel and is
// responsible for the channel's lifecycle, including closing it.
type Handler interface {
	Handle(ch *Channel)
}

// HandlerFunc computes the Response for one decoded Request. It is the
// business-logic hook invoked between ReceiveRequest and SendResponse.
type HandlerFunc func(req *Request) *Response

// Server accepts connections on a Listener and dispatches each resulting
// channel to a Handler, one goroutine per channel.
type Server struct {
	listener        *Listener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server will wait up to this duration
// before closing the listener, giving in-flight rounds time to finish.
// Default is 0 (immediate shutdown). Call Close() to bypass the timeout.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// NewServer wraps an already-bound Listener.
func NewServer(l *Listener, opts ...ServerOption) *Server {
	s := &Server{
		listener:    l,
		logger:      l.logger,
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve accepts connections and dispatches each channel to the handler on
// its own goroutine. It blocks until the context is canceled or an
// unrecoverable accept error occurs, then waits for all handler goroutines
// to return before returning itself.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	// Unblock Accept when the context is canceled, optionally after the
	// graceful shutdown timeout.
	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.SetDeadline(time.Now())
	}()

	group := new(errgroup.Group)
	defer group.Wait()

	for {
		ch, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			// Transient accept failures are retried here.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		group.Go(func() error {
			handler.Handle(ch)
			return nil
		})
	}
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining
// timeout. Any blocked Accept calls will return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
		// Channel already has a signal or no one is listening.
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// RequestHandler adapts a per-request function into a Handler that runs the
// standard request loop on each accepted channel and closes it afterwards.
func RequestHandler(fn HandlerFunc) Handler {
	return requestHandler{fn: fn}
}

type requestHandler struct {
	fn HandlerFunc
}

func (h requestHandler) Handle(ch *Channel) {
	defer ch.Close()
	if err := ch.ServeRequests(context.Background(), h.fn); err != nil {
		ch.logger.Warn("request loop ended", "peer", ch.peer, "channel_id", ch.id, "error", err)
	}
}

// ServeRequests runs the server side of a channel: one round at a time, it
// decodes a Request, hands it to fn, and sends back the resulting Response.
// The loop ends cleanly on a Quit request or a peer disconnect, and with an
// error on anything else. If the channel has a rate limiter, over-rate
// rounds are answered with a failure Response without reaching fn.
func (c *Channel) ServeRequests(ctx context.Context, fn HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := c.ReceiveRequest()
		if err != nil {
			if errors.Is(err, ErrPeerClosed) {
				c.logger.Debug("peer disconnected", "peer", c.peer, "channel_id", c.id)
				return nil
			}
			return err
		}

		if req.Type == Quit {
			c.logger.Debug("quit requested", "peer", c.peer, "channel_id", c.id)
			return nil
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded", "peer", c.peer, "channel_id", c.id)
			if err := c.SendResponse(&Response{Success: false, Message: "rate limit exceeded"}); err != nil {
				return err
			}
			continue
		}

		resp := fn(req)
		if resp == nil {
			resp = &Response{Success: false, Message: "no response from handler"}
		}
		if err := c.SendResponse(resp); err != nil {
			return err
		}
	}
}
