package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/query/querytest"
	"github.com/wesm/regcat/internal/remote"
	"github.com/wesm/regcat/internal/store"
	"github.com/wesm/regcat/internal/testutil"
	"github.com/wesm/regcat/internal/testutil/dbtest"
	"github.com/wesm/regcat/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startServer runs a server on a loopback port until the test ends.
func startServer(t *testing.T, opts Options, open Opener) (*Server, *remote.Client) {
	t.Helper()
	ln := testutil.Listen(t)

	srv := New(opts, open, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	host, port := testutil.HostPort(t, ln.Addr())
	client, err := remote.New(remote.Config{Host: host, Port: port, ReadTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	return srv, client
}

func TestServer_Search(t *testing.T) {
	rows := []query.ClassSummary{
		{ClassID: 10, Department: "COS", CourseNumber: "126", Area: "QR", Title: "Intro"},
	}
	conds := make(chan query.Condition, 1)
	eng := &querytest.MockEngine{
		SummariesFunc: func(_ context.Context, c query.Condition) ([]query.ClassSummary, error) {
			conds <- c
			return rows, nil
		},
	}
	srv, client := startServer(t, Options{}, eng.Opener())

	got, err := client.Search(context.Background(), query.NewSearchCriteria("cos", "", "", ""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	cond := <-conds
	if want := []any{"%cos%"}; !cmp.Equal(cond.Args, want) {
		t.Errorf("condition args = %v, want %v", cond.Args, want)
	}
	if eng.Closed() != 1 {
		t.Errorf("engine closed %d times, want 1", eng.Closed())
	}
	if st := srv.Stats(); st.Searches != 1 {
		t.Errorf("Searches = %d, want 1", st.Searches)
	}
}

func TestServer_DetailNotFound(t *testing.T) {
	eng := &querytest.MockEngine{}
	srv, client := startServer(t, Options{}, eng.Opener())

	_, err := client.Detail(context.Background(), 4242)
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *remote.RemoteError", err)
	}
	if re.Kind != wire.KindNotFound {
		t.Errorf("Kind = %q, want %q", re.Kind, wire.KindNotFound)
	}
	if re.Message != "no class with class id 4242 exists" {
		t.Errorf("Message = %q", re.Message)
	}
	if st := srv.Stats(); st.NotFound != 1 || st.Failures != 0 {
		t.Errorf("stats = %+v, want one not-found and no failures", st)
	}
}

func TestServer_InternalErrorIsSanitized(t *testing.T) {
	eng := &querytest.MockEngine{
		SummariesFunc: func(context.Context, query.Condition) ([]query.ClassSummary, error) {
			return nil, errors.New("no such table: classes at /secret/path")
		},
	}
	_, client := startServer(t, Options{}, eng.Opener())

	_, err := client.Search(context.Background(), query.SearchCriteria{})
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *remote.RemoteError", err)
	}
	if re.Kind != wire.KindServiceError || re.Message != wire.ServiceErrorMessage {
		t.Errorf("got (%q, %q), want generic service error", re.Kind, re.Message)
	}
	if strings.Contains(re.Message, "secret") {
		t.Error("internal detail leaked to client")
	}
}

func TestServer_NilDetailIsServiceError(t *testing.T) {
	eng := &querytest.MockEngine{
		DetailFunc: func(context.Context, int64) (*query.ClassDetail, error) {
			return nil, nil
		},
	}
	srv, client := startServer(t, Options{}, eng.Opener())

	_, err := client.Detail(context.Background(), 7)
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *remote.RemoteError", err)
	}
	if re.Kind != wire.KindServiceError {
		t.Errorf("Kind = %q, want %q", re.Kind, wire.KindServiceError)
	}
	if got := srv.Stats().Failures; got != 1 {
		t.Errorf("Failures = %d, want 1", got)
	}
}

func TestServer_InvalidUTF8ResultIsServiceError(t *testing.T) {
	eng := &querytest.MockEngine{
		SummaryRows: []query.ClassSummary{
			{ClassID: 1, Department: "COS", CourseNumber: "101", Title: "Broken \xff title"},
		},
	}
	_, client := startServer(t, Options{}, eng.Opener())

	_, err := client.Search(context.Background(), query.SearchCriteria{})
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *remote.RemoteError", err)
	}
	if re.Message != wire.ServiceErrorMessage {
		t.Errorf("Message = %q, want generic service error", re.Message)
	}
}

func TestServer_OpenFailure(t *testing.T) {
	open := func(context.Context) (query.Engine, error) {
		return nil, errors.New("unable to open database file")
	}
	_, client := startServer(t, Options{}, open)

	_, err := client.Detail(context.Background(), 1)
	var re *remote.RemoteError
	if !errors.As(err, &re) || re.Message != wire.ServiceErrorMessage {
		t.Fatalf("error = %v, want generic service error", err)
	}
}

func TestServer_PanicIsContained(t *testing.T) {
	eng := &querytest.MockEngine{
		DetailFunc: func(_ context.Context, id int64) (*query.ClassDetail, error) {
			if id == 1 {
				panic("boom")
			}
			return &query.ClassDetail{ClassID: id}, nil
		},
	}
	srv, client := startServer(t, Options{}, eng.Opener())

	_, err := client.Detail(context.Background(), 1)
	var re *remote.RemoteError
	if !errors.As(err, &re) || re.Kind != wire.KindServiceError {
		t.Fatalf("error = %v, want service error", err)
	}

	d, err := client.Detail(context.Background(), 2)
	if err != nil {
		t.Fatalf("server stopped answering after panic: %v", err)
	}
	if d.ClassID != 2 {
		t.Errorf("ClassID = %d, want 2", d.ClassID)
	}
	if srv.Stats().Panics != 1 {
		t.Errorf("Panics = %d, want 1", srv.Stats().Panics)
	}
}

func TestServer_MalformedRequest(t *testing.T) {
	eng := &querytest.MockEngine{}
	srv, client := startServer(t, Options{}, eng.Opener())

	conn, err := net.Dial("tcp", client.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("this is not a frame\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	resp, err := wire.ReadSearchResponse(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Success || resp.Failure == nil || resp.Failure.Message != wire.ServiceErrorMessage {
		t.Errorf("response = %+v, want generic failure", resp)
	}
	if srv.Stats().Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", srv.Stats().Malformed)
	}

	if _, err := client.Search(context.Background(), query.SearchCriteria{}); err != nil {
		t.Errorf("server stopped answering after malformed request: %v", err)
	}
}

func TestServer_ClientHangsUp(t *testing.T) {
	eng := &querytest.MockEngine{}
	_, client := startServer(t, Options{}, eng.Opener())

	conn, err := net.Dial("tcp", client.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	if _, err := client.Search(context.Background(), query.SearchCriteria{}); err != nil {
		t.Errorf("Search after hang-up: %v", err)
	}
}

func TestServer_SlowRequestDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	eng := &querytest.MockEngine{
		SummariesFunc: func(ctx context.Context, _ query.Condition) ([]query.ClassSummary, error) {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []query.ClassSummary{{ClassID: 1}}, nil
		},
		Classes: map[int64]*query.ClassDetail{7: {ClassID: 7}},
	}
	_, client := startServer(t, Options{}, eng.Opener())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := client.Search(context.Background(), query.SearchCriteria{}); err != nil {
			t.Errorf("slow search: %v", err)
		}
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := client.Detail(ctx, 7)
	if err != nil {
		t.Fatalf("detail while search in flight: %v", err)
	}
	if d.ClassID != 7 {
		t.Errorf("ClassID = %d, want 7", d.ClassID)
	}

	close(release)
	wg.Wait()
}

func TestServer_DelayAppliesPerRequest(t *testing.T) {
	eng := &querytest.MockEngine{}
	const delay = 150 * time.Millisecond
	_, client := startServer(t, Options{Delay: delay}, eng.Opener())

	start := time.Now()
	if _, err := client.Search(context.Background(), query.SearchCriteria{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("response after %v, want at least %v", elapsed, delay)
	}
}

func TestServer_ShutdownReturnsNil(t *testing.T) {
	ln := testutil.Listen(t)
	srv := New(Options{}, (&querytest.MockEngine{}).Opener(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestConsumeCPU(t *testing.T) {
	start := time.Now()
	consumeCPU(context.Background(), 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	consumeCPU(ctx, time.Hour)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled consumeCPU ran for %v", elapsed)
	}
}

func TestServer_AgainstCatalog(t *testing.T) {
	tdb := dbtest.NewFileDB(t, "../store/schema.sql")
	tdb.SeedStandardDataSet()

	open := func(context.Context) (query.Engine, error) {
		return store.OpenEngine(tdb.Path)
	}
	_, client := startServer(t, Options{MaxConcurrent: 4}, open)
	ctx := context.Background()

	rows, err := client.Search(ctx, query.NewSearchCriteria("", "", "", "c_s"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 || rows[0].ClassID != dbtest.ClassUnderscore {
		t.Errorf("rows = %+v, want only class %d", rows, dbtest.ClassUnderscore)
	}

	d, err := client.Detail(ctx, dbtest.ClassAdvProg)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if d.Title != "Advanced Programming Techniques" {
		t.Errorf("Title = %q", d.Title)
	}
}
