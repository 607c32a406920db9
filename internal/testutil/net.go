package testutil

import (
	"net"
	"strconv"
	"testing"
)

// Listen opens a TCP listener on a free loopback port and closes it when
// the test ends.
func Listen(t testing.TB) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	MustNoErr(t, err, "listen")
	t.Cleanup(func() { ln.Close() })
	return ln
}

// HostPort splits a listener address into host and numeric port.
func HostPort(t testing.TB, addr net.Addr) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr.String())
	MustNoErr(t, err, "split address")
	port, err := strconv.Atoi(portStr)
	MustNoErr(t, err, "parse port")
	return host, port
}

// ClosedAddr returns a loopback address that nothing is listening on.
func ClosedAddr(t testing.TB) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	MustNoErr(t, err, "listen")
	addr := ln.Addr()
	ln.Close()
	return addr
}
