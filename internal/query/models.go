// Package query provides the read-only catalog query layer for regcat.
// It builds parameterized LIKE conditions from search criteria and executes
// them against the catalog database, returning class summaries for list
// views and full class details for the detail view.
package query

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SearchCriteria describes a course search. Each field is an optional
// substring filter; an empty field places no constraint on the results.
type SearchCriteria struct {
	Department string `json:"dept"`
	Number     string `json:"number"`
	Area       string `json:"area"`
	Title      string `json:"title"`
}

// NewSearchCriteria builds criteria from raw user input. Values are
// normalized to NFC so composed and decomposed input match the same stored text.
func NewSearchCriteria(dept, number, area, title string) SearchCriteria {
	return SearchCriteria{
		Department: norm.NFC.String(dept),
		Number:     norm.NFC.String(number),
		Area:       norm.NFC.String(area),
		Title:      norm.NFC.String(title),
	}
}

// IsEmpty reports whether no field carries a filter.
func (c SearchCriteria) IsEmpty() bool {
	return c == SearchCriteria{}
}

func (c SearchCriteria) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", c.Department, c.Number, c.Area, c.Title)
}

// ClassSummary is one row of a search result.
type ClassSummary struct {
	ClassID      int64  `json:"class_id"`
	Department   string `json:"dept"`
	CourseNumber string `json:"course_num"`
	Area         string `json:"area"`
	Title        string `json:"title"`
}

// CrossListing is a (department, course number) pair under which a course is offered.
type CrossListing struct {
	Department   string `json:"dept"`
	CourseNumber string `json:"course_num"`
}

// ClassDetail holds everything known about a single class.
type ClassDetail struct {
	ClassID       int64          `json:"class_id"`
	CourseID      int64          `json:"course_id"`
	Days          string         `json:"days"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Building      string         `json:"bldg"`
	Room          string         `json:"room"`
	CrossListings []CrossListing `json:"crosslistings"` // ordered by dept, course number
	Area          string         `json:"area"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Prerequisites string         `json:"prereqs"`
	Professors    []string       `json:"professors"` // ordered by name
}

// String renders the detail as the multi-section text block shown to users.
func (d *ClassDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course Id: %d\n\n", d.CourseID)
	fmt.Fprintf(&b, "Days: %s\n", d.Days)
	fmt.Fprintf(&b, "Start time: %s\n", d.StartTime)
	fmt.Fprintf(&b, "End time: %s\n", d.EndTime)
	fmt.Fprintf(&b, "Building: %s\n", d.Building)
	fmt.Fprintf(&b, "Room: %s\n\n", d.Room)
	for _, cl := range d.CrossListings {
		fmt.Fprintf(&b, "Dept and Number: %s %s\n", cl.Department, cl.CourseNumber)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Area: %s\n\n", d.Area)
	fmt.Fprintf(&b, "Title: %s\n\n", d.Title)
	fmt.Fprintf(&b, "Description: %s\n\n", d.Description)
	fmt.Fprintf(&b, "Prerequisites: %s\n\n", d.Prerequisites)
	for _, p := range d.Professors {
		fmt.Fprintf(&b, "Professor: %s\n", p)
	}
	return b.String()
}

// NotFoundError is returned when a detail lookup names a class that does not exist.
type NotFoundError struct {
	ClassID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no class with class id %d exists", e.ClassID)
}
