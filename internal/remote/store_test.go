package remote

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/wire"
)

// fakeServer accepts connections and hands each one to handle.
func fakeServer(t *testing.T, handle func(net.Conn)) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	return newTestClient(t, ln.Addr().String(), Config{ReadTimeout: 2 * time.Second})
}

func newTestClient(t *testing.T, addr string, cfg Config) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port, _ := strconv.Atoi(portStr)
	cfg.Host = host
	cfg.Port = port
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{Port: 5500}},
		{"zero port", Config{Host: "localhost"}},
		{"port too large", Config{Host: "localhost", Port: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSearch_RoundTrip(t *testing.T) {
	rows := []query.ClassSummary{
		{ClassID: 10, Department: "COS", CourseNumber: "126", Area: "QR", Title: "Intro"},
	}
	reqs := make(chan wire.Request, 1)
	c := fakeServer(t, func(conn net.Conn) {
		req, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}
		reqs <- req
		_ = wire.WriteResponse(conn, wire.SearchSuccess(rows))
	})

	criteria := query.SearchCriteria{Department: "COS", Title: "C_S"}
	got, err := c.Search(context.Background(), criteria)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("summaries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wire.SearchRequest(criteria), <-reqs); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestDetail_RemoteNotFound(t *testing.T) {
	c := fakeServer(t, func(conn net.Conn) {
		if _, err := wire.ReadRequest(conn); err != nil {
			return
		}
		_ = wire.WriteResponse(conn, wire.FailureResponse(wire.KindNotFound, "no class with class id 99999 exists"))
	})

	_, err := c.Detail(context.Background(), 99999)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
	if re.Kind != wire.KindNotFound {
		t.Errorf("Kind = %q, want %q", re.Kind, wire.KindNotFound)
	}
	if re.Error() != "no class with class id 99999 exists" {
		t.Errorf("message = %q", re.Error())
	}
}

func TestDetail_TruncatedResponse(t *testing.T) {
	c := fakeServer(t, func(conn net.Conn) {
		if _, err := wire.ReadRequest(conn); err != nil {
			return
		}
		enc := wire.NewEncoder(conn)
		_ = enc.Encode(wire.TagSuccess, true)
		_ = enc.Flush()
		// Close without sending the payload.
	})

	_, err := c.Detail(context.Background(), 1)
	var ce *CommunicationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommunicationError, got %v", err)
	}
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected wrapped *wire.ProtocolError, got %v", err)
	}
	if !errors.Is(err, wire.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestSearch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := newTestClient(t, addr, Config{DialTimeout: time.Second})
	_, err = c.Search(context.Background(), query.SearchCriteria{})
	var ce *CommunicationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommunicationError, got %v", err)
	}
	if ce.Op != "connect" {
		t.Errorf("Op = %q, want connect", ce.Op)
	}
}

func TestSearch_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := fakeServer(t, func(conn net.Conn) {
		_, _ = wire.ReadRequest(conn)
		<-release
	})
	c.readTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Search(context.Background(), query.SearchCriteria{})
	var ce *CommunicationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommunicationError, got %v", err)
	}
	if !ce.Timeout() {
		t.Errorf("Timeout() = false for %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("read timeout took %v", elapsed)
	}
}

func TestSearch_ContextCancelUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := fakeServer(t, func(conn net.Conn) {
		_, _ = wire.ReadRequest(conn)
		<-release
	})
	c.readTimeout = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Search(ctx, query.SearchCriteria{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
