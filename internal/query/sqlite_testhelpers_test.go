package query

import (
	"context"
	"testing"

	"github.com/wesm/regcat/internal/testutil/dbtest"
)

// testEnv encapsulates the DB, Engine, and Context setup for tests.
type testEnv struct {
	*dbtest.TestDB
	Engine *SQLiteEngine
	Ctx    context.Context
}

// newTestEnv creates a test environment with an in-memory SQLite database and test data.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tdb := dbtest.NewTestDB(t, "../store/schema.sql")
	tdb.SeedStandardDataSet()
	return &testEnv{
		TestDB: tdb,
		Engine: NewSQLiteEngine(tdb.DB),
		Ctx:    context.Background(),
	}
}

// MustSearch builds a condition from c, runs Summaries, and fails the test on error.
func (e *testEnv) MustSearch(c SearchCriteria) []ClassSummary {
	e.T.Helper()
	results, err := e.Engine.Summaries(e.Ctx, BuildCondition(c))
	if err != nil {
		e.T.Fatalf("Summaries(%v): %v", c, err)
	}
	return results
}

// MustDetail calls Detail and fails the test on error.
func (e *testEnv) MustDetail(classID int64) *ClassDetail {
	e.T.Helper()
	d, err := e.Engine.Detail(e.Ctx, classID)
	if err != nil {
		e.T.Fatalf("Detail(%d): %v", classID, err)
	}
	return d
}

// classIDs extracts class ids in result order.
func classIDs(rows []ClassSummary) []int64 {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ClassID
	}
	return ids
}
