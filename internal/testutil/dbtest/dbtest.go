// Package dbtest provides shared database test helpers for seeding and querying
// test catalogs. It is designed to be importable from any test package without
// circular dependency issues (it does not import internal/query or internal/store).
package dbtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// TestDB wraps a *sql.DB with builder helpers for seeding catalog data.
type TestDB struct {
	DB   *sql.DB
	T    testing.TB
	Path string // empty for in-memory databases

	nextCourseID int64
	nextClassID  int64
	nextProfID   int64
}

// NewTestDB creates an in-memory SQLite database with the production schema loaded.
// schemaPath is the path to schema.sql (e.g. "../store/schema.sql" from the caller's package).
func NewTestDB(t testing.TB, schemaPath string) *TestDB {
	t.Helper()
	return newTestDB(t, schemaPath, ":memory:", "")
}

// NewFileDB creates an on-disk catalog in a temp directory, so it can be
// reopened read-only through the store package.
func NewFileDB(t testing.TB, schemaPath string) *TestDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reg.sqlite")
	return newTestDB(t, schemaPath, path, path)
}

func newTestDB(t testing.TB, schemaPath, dsn, path string) *TestDB {
	t.Helper()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema.sql: %v", err)
	}

	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	return &TestDB{
		DB:           db,
		T:            t,
		Path:         path,
		nextCourseID: 1000,
		nextClassID:  10000,
		nextProfID:   1000,
	}
}

// Standard data set class ids.
const (
	ClassIntroCS    int64 = 10 // COS 126
	ClassIntroCS2   int64 = 11 // COS 126, second section
	ClassAdvProg    int64 = 20 // COS 333 / ELE 206
	ClassUnderscore int64 = 30 // A_B 101, title "C_S Literal Underscore Seminar"
	ClassDecoy      int64 = 40 // AXB 101, title "CXS Decoy Seminar"
	ClassPercent    int64 = 50 // ECO 100, title "100% Effort"
	ClassThousand   int64 = 60 // MAT 100, title "1000 Points"
)

// StandardOrder is the class id order of an unfiltered search over the
// standard data set: by department, course number, class id.
var StandardOrder = []int64{
	ClassDecoy,      // AXB 101
	ClassUnderscore, // A_B 101
	ClassIntroCS,    // COS 126
	ClassIntroCS2,   // COS 126
	ClassAdvProg,    // COS 333
	ClassPercent,    // ECO 100
	ClassAdvProg,    // ELE 206
	ClassThousand,   // MAT 100
}

// SeedStandardDataSet inserts six courses, seven classes, seven cross-listings
// and three professors. The data deliberately includes literal wildcard
// characters next to near-miss decoys.
func (tdb *TestDB) SeedStandardDataSet() {
	tdb.T.Helper()

	testData := `
		INSERT INTO courses (courseid, area, title, descrip, prereqs) VALUES
			(1, 'QR', 'Computer Science: An Interdisciplinary Approach', 'Intro to programming.', ''),
			(2, '', 'Advanced Programming Techniques', 'Software engineering practice.', 'COS 217'),
			(3, 'EC', 'C_S Literal Underscore Seminar', 'Underscores.', ''),
			(4, 'LA', 'CXS Decoy Seminar', 'Not underscores.', ''),
			(5, 'SA', '100% Effort', 'Percent signs.', ''),
			(6, 'QR', '1000 Points', 'No percent signs.', '');

		INSERT INTO classes (classid, courseid, days, starttime, endtime, bldg, roomnum) VALUES
			(10, 1, 'MW', '11:00 AM', '12:20 PM', 'MCCOS', '10'),
			(11, 1, 'TTh', '11:00 AM', '12:20 PM', 'MCCOS', '10'),
			(20, 2, 'TTh', '1:30 PM', '2:50 PM', 'FRIEN', '101'),
			(30, 3, 'F', '9:00 AM', '10:20 AM', 'EQUAD', 'B205'),
			(40, 4, 'F', '9:00 AM', '10:20 AM', 'EQUAD', 'B206'),
			(50, 5, 'M', '7:30 PM', '10:20 PM', 'JADWN', 'A10'),
			(60, 6, 'W', '7:30 PM', '10:20 PM', 'JADWN', 'A11');

		INSERT INTO crosslistings (courseid, dept, coursenum) VALUES
			(1, 'COS', '126'),
			(2, 'ELE', '206'),
			(2, 'COS', '333'),
			(3, 'A_B', '101'),
			(4, 'AXB', '101'),
			(5, 'ECO', '100'),
			(6, 'MAT', '100');

		INSERT INTO profs (profid, profname) VALUES
			(1, 'Robert Dondero'),
			(2, 'Brian Kernighan'),
			(3, 'Adam Finkelstein');

		INSERT INTO coursesprofs (courseid, profid) VALUES
			(1, 3),
			(2, 1),
			(2, 2);
	`
	if _, err := tdb.DB.Exec(testData); err != nil {
		tdb.T.Fatalf("seed standard data set: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Builder helpers
// ---------------------------------------------------------------------------

// CourseOpts configures a course to insert.
type CourseOpts struct {
	Area          string
	Title         string
	Description   string
	Prerequisites string
	CrossListings [][2]string // (dept, coursenum) pairs
	Professors    []string
}

// AddCourse inserts a course with its cross-listings and professors and
// returns the course ID.
func (tdb *TestDB) AddCourse(opts CourseOpts) int64 {
	tdb.T.Helper()
	id := tdb.nextCourseID
	tdb.nextCourseID++

	_, err := tdb.DB.Exec(`INSERT INTO courses (courseid, area, title, descrip, prereqs) VALUES (?, ?, ?, ?, ?)`,
		id, opts.Area, opts.Title, opts.Description, opts.Prerequisites)
	if err != nil {
		tdb.T.Fatalf("insert course: %v", err)
	}
	for _, cl := range opts.CrossListings {
		if _, err := tdb.DB.Exec(`INSERT INTO crosslistings (courseid, dept, coursenum) VALUES (?, ?, ?)`,
			id, cl[0], cl[1]); err != nil {
			tdb.T.Fatalf("insert crosslisting: %v", err)
		}
	}
	for _, name := range opts.Professors {
		profID := tdb.nextProfID
		tdb.nextProfID++
		if _, err := tdb.DB.Exec(`INSERT INTO profs (profid, profname) VALUES (?, ?)`, profID, name); err != nil {
			tdb.T.Fatalf("insert prof: %v", err)
		}
		if _, err := tdb.DB.Exec(`INSERT INTO coursesprofs (courseid, profid) VALUES (?, ?)`, id, profID); err != nil {
			tdb.T.Fatalf("insert coursesprofs: %v", err)
		}
	}
	return id
}

// ClassOpts configures a class to insert.
type ClassOpts struct {
	CourseID  int64
	Days      string
	StartTime string
	EndTime   string
	Building  string
	Room      string
}

// AddClass inserts a class section and returns the class ID.
func (tdb *TestDB) AddClass(opts ClassOpts) int64 {
	tdb.T.Helper()
	id := tdb.nextClassID
	tdb.nextClassID++

	_, err := tdb.DB.Exec(`INSERT INTO classes (classid, courseid, days, starttime, endtime, bldg, roomnum) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, opts.CourseID, opts.Days, opts.StartTime, opts.EndTime, opts.Building, opts.Room)
	if err != nil {
		tdb.T.Fatalf("insert class: %v", err)
	}
	return id
}
