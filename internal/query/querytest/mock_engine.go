// Package querytest provides shared test doubles for the query.Engine interface.
package querytest

import (
	"context"
	"sync/atomic"

	"github.com/wesm/regcat/internal/query"
)

// MockEngine implements query.Engine for testing. Each method delegates to an
// optional function field; when the field is nil, the canned data is used.
type MockEngine struct {
	SummaryRows []query.ClassSummary
	Classes     map[int64]*query.ClassDetail

	// Optional overrides for per-test behavior.
	SummariesFunc func(context.Context, query.Condition) ([]query.ClassSummary, error)
	DetailFunc    func(context.Context, int64) (*query.ClassDetail, error)

	closed atomic.Int32
}

// Compile-time check.
var _ query.Engine = (*MockEngine)(nil)

func (m *MockEngine) Summaries(ctx context.Context, cond query.Condition) ([]query.ClassSummary, error) {
	if m.SummariesFunc != nil {
		return m.SummariesFunc(ctx, cond)
	}
	if m.SummaryRows == nil {
		return []query.ClassSummary{}, nil
	}
	return m.SummaryRows, nil
}

func (m *MockEngine) Detail(ctx context.Context, classID int64) (*query.ClassDetail, error) {
	if m.DetailFunc != nil {
		return m.DetailFunc(ctx, classID)
	}
	if d, ok := m.Classes[classID]; ok {
		return d, nil
	}
	return nil, &query.NotFoundError{ClassID: classID}
}

func (m *MockEngine) Close() error {
	m.closed.Add(1)
	return nil
}

// Closed reports how many times Close was called.
func (m *MockEngine) Closed() int {
	return int(m.closed.Load())
}

// Opener returns an opener func that always hands out m.
func (m *MockEngine) Opener() func(context.Context) (query.Engine, error) {
	return func(context.Context) (query.Engine, error) { return m, nil }
}
