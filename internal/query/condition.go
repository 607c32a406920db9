package query

import "strings"

// LikeEscape is the escape character declared in every LIKE clause built here.
const LikeEscape = '\\'

// Condition is a parameterized filter over the catalog join. Clause holds
// zero or more "<column> LIKE ? ESCAPE '\'" terms joined with AND; Args holds
// one bound pattern per placeholder, in order.
type Condition struct {
	Clause string
	Args   []any
}

// Where returns the clause ready to append after an existing WHERE predicate,
// or "" when the condition is empty.
func (c Condition) Where() string {
	if c.Clause == "" {
		return ""
	}
	return " AND " + c.Clause
}

// searchColumns maps each criteria field to the column it filters, in clause order.
var searchColumns = []struct {
	column string
	value  func(SearchCriteria) string
}{
	{"crosslistings.dept", func(c SearchCriteria) string { return c.Department }},
	{"crosslistings.coursenum", func(c SearchCriteria) string { return c.Number }},
	{"courses.area", func(c SearchCriteria) string { return c.Area }},
	{"courses.title", func(c SearchCriteria) string { return c.Title }},
}

// BuildCondition turns criteria into a substring-match condition. Empty fields
// contribute neither a term nor a bound value.
func BuildCondition(c SearchCriteria) Condition {
	var terms []string
	var args []any
	for _, col := range searchColumns {
		v := col.value(c)
		if v == "" {
			continue
		}
		terms = append(terms, col.column+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+EscapeLike(v)+"%")
	}
	return Condition{Clause: strings.Join(terms, " AND "), Args: args}
}

// EscapeLike prefixes every LIKE wildcard (_ and %) and the escape character
// itself with LikeEscape so they match literally. The input is scanned once,
// byte by byte, into a fresh buffer; all three characters are ASCII so
// multi-byte sequences pass through untouched.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '_', '%', LikeEscape:
			b.WriteByte(LikeEscape)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
