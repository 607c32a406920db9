// Package remote provides the client side of the regcat wire protocol.
// Each call opens its own TCP connection, sends one request, blocks until the
// whole response has arrived, and closes the connection. Calls block, so UI
// code must run them on a background goroutine (see internal/bridge).
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/wire"
)

// Client issues requests to a regcat server.
type Client struct {
	addr           string
	dialTimeout    time.Duration
	readTimeout    time.Duration
	requestTimeout time.Duration
}

// Config holds configuration for creating a client.
type Config struct {
	Host           string
	Port           int
	DialTimeout    time.Duration // 0 means 5s
	ReadTimeout    time.Duration // bound on waiting for the response; 0 disables
	RequestTimeout time.Duration // overall per-call deadline; 0 disables
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("server host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Port)
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	return &Client{
		addr:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		dialTimeout:    dialTimeout,
		readTimeout:    cfg.ReadTimeout,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// Addr returns the server address the client dials.
func (c *Client) Addr() string {
	return c.addr
}

// CommunicationError reports that a round trip could not be completed:
// the server was unreachable, the connection broke, a timeout expired, or
// the response was malformed.
type CommunicationError struct {
	Addr string
	Op   string
	Err  error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiring.
func (e *CommunicationError) Timeout() bool {
	var ne net.Error
	return (errors.As(e.Err, &ne) && ne.Timeout()) || errors.Is(e.Err, context.DeadlineExceeded)
}

// RemoteError is a failure answered by the server.
type RemoteError struct {
	Kind    wire.Kind
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Search runs a search on the server.
func (c *Client) Search(ctx context.Context, criteria query.SearchCriteria) ([]query.ClassSummary, error) {
	resp, err := c.roundTrip(ctx, wire.SearchRequest(criteria), wire.ReadSearchResponse)
	if err != nil {
		return nil, err
	}
	return resp.Summaries, nil
}

// Detail fetches one class from the server.
func (c *Client) Detail(ctx context.Context, classID int64) (*query.ClassDetail, error) {
	resp, err := c.roundTrip(ctx, wire.DetailRequest(classID), wire.ReadDetailResponse)
	if err != nil {
		return nil, err
	}
	return resp.Detail, nil
}

func (c *Client) roundTrip(ctx context.Context, req wire.Request, read func(io.Reader) (wire.Response, error)) (wire.Response, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return wire.Response{}, &CommunicationError{Addr: c.addr, Op: "connect", Err: err}
	}
	defer conn.Close()

	// Set before the AfterFunc below so it can never push back a deadline
	// forced by cancellation.
	if c.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return wire.Response{}, &CommunicationError{Addr: c.addr, Op: "receive", Err: err}
		}
	}

	// Unblock any pending read or write once ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := wire.WriteRequest(conn, req); err != nil {
		return wire.Response{}, &CommunicationError{Addr: c.addr, Op: "send", Err: ctxErr(ctx, err)}
	}

	resp, err := read(conn)
	if err != nil {
		return wire.Response{}, &CommunicationError{Addr: c.addr, Op: "receive", Err: ctxErr(ctx, err)}
	}
	if !resp.Success {
		return wire.Response{}, &RemoteError{Kind: resp.Failure.Kind, Message: resp.Failure.Message}
	}
	return resp, nil
}

// ctxErr prefers the context's error when the context ended, since the I/O
// error is then just a side effect of the forced deadline.
func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
