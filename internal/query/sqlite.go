package query

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
)

// SQLiteEngine implements Engine using direct SQLite queries.
type SQLiteEngine struct {
	db *sql.DB
}

// NewSQLiteEngine creates a new SQLite-backed query engine.
func NewSQLiteEngine(db *sql.DB) *SQLiteEngine {
	return &SQLiteEngine{db: db}
}

// Close is a no-op for SQLiteEngine since it doesn't own the connection.
func (e *SQLiteEngine) Close() error {
	return nil
}

const summariesQuery = `
	SELECT classes.classid, crosslistings.dept, crosslistings.coursenum,
		COALESCE(courses.area, ''), COALESCE(courses.title, '')
	FROM classes
	JOIN courses ON courses.courseid = classes.courseid
	JOIN crosslistings ON crosslistings.courseid = courses.courseid
	WHERE 1 = 1`

const summariesOrder = `
	ORDER BY crosslistings.dept ASC, crosslistings.coursenum ASC, classes.classid ASC`

// Summaries returns the classes matching cond, one row per cross-listing,
// ordered by department, course number and class id.
func (e *SQLiteEngine) Summaries(ctx context.Context, cond Condition) ([]ClassSummary, error) {
	rows, err := e.db.QueryContext(ctx, summariesQuery+cond.Where()+summariesOrder, cond.Args...)
	if err != nil {
		return nil, eris.Wrap(err, "query summaries")
	}
	defer rows.Close()

	summaries := []ClassSummary{}
	for rows.Next() {
		var s ClassSummary
		if err := rows.Scan(&s.ClassID, &s.Department, &s.CourseNumber, &s.Area, &s.Title); err != nil {
			return nil, eris.Wrap(err, "scan summary")
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate summaries")
	}
	return summaries, nil
}

// Detail retrieves the full record for a class.
func (e *SQLiteEngine) Detail(ctx context.Context, classID int64) (*ClassDetail, error) {
	d := ClassDetail{ClassID: classID}
	err := e.db.QueryRowContext(ctx, `
		SELECT courseid, COALESCE(days, ''), COALESCE(starttime, ''),
			COALESCE(endtime, ''), COALESCE(bldg, ''), COALESCE(roomnum, '')
		FROM classes WHERE classid = ?
	`, classID).Scan(&d.CourseID, &d.Days, &d.StartTime, &d.EndTime, &d.Building, &d.Room)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ClassID: classID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get class %d", classID)
	}

	if err := e.fetchCrossListings(ctx, &d); err != nil {
		return nil, err
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COALESCE(area, ''), COALESCE(title, ''), COALESCE(descrip, ''), COALESCE(prereqs, '')
		FROM courses WHERE courseid = ?
	`, d.CourseID).Scan(&d.Area, &d.Title, &d.Description, &d.Prerequisites)
	if err != nil {
		// A class row pointing at a missing course is a catalog integrity problem,
		// not a lookup miss.
		return nil, eris.Wrapf(err, "get course %d", d.CourseID)
	}

	if err := e.fetchProfessors(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (e *SQLiteEngine) fetchCrossListings(ctx context.Context, d *ClassDetail) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT dept, coursenum FROM crosslistings
		WHERE courseid = ?
		ORDER BY dept ASC, coursenum ASC
	`, d.CourseID)
	if err != nil {
		return eris.Wrap(err, "query crosslistings")
	}
	defer rows.Close()

	d.CrossListings = []CrossListing{}
	for rows.Next() {
		var cl CrossListing
		if err := rows.Scan(&cl.Department, &cl.CourseNumber); err != nil {
			return eris.Wrap(err, "scan crosslisting")
		}
		d.CrossListings = append(d.CrossListings, cl)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "iterate crosslistings")
	}
	return nil
}

func (e *SQLiteEngine) fetchProfessors(ctx context.Context, d *ClassDetail) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT profs.profname
		FROM coursesprofs
		JOIN profs ON profs.profid = coursesprofs.profid
		WHERE coursesprofs.courseid = ?
		ORDER BY profs.profname ASC
	`, d.CourseID)
	if err != nil {
		return eris.Wrap(err, "query professors")
	}
	defer rows.Close()

	d.Professors = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return eris.Wrap(err, "scan professor")
		}
		d.Professors = append(d.Professors, name)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "iterate professors")
	}
	return nil
}
