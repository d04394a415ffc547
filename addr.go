package finchan

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// SetupError reports a failure to establish a channel or listener.
// It is fatal to construction: no partially usable channel is ever returned
// alongside one, and nothing is retried internally.
type SetupError struct {
	Op  string // "listen" or "dial"
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("connection setup (%s): %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// resolveHost turns a host string into an IPv4 address. The only name
// resolved is the "localhost" alias; everything else must be a literal
// IPv4 address. General DNS resolution is out of scope.
func resolveHost(host string) (net.IP, error) {
	if host == "localhost" {
		host = "127.0.0.1"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.Errorf("not a literal IP address: %q", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, errors.Errorf("not an IPv4 address: %q", host)
	}
	return ip4, nil
}
