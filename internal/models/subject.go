package models

import "time"

// SubjectType classifies how a subject is delivered.
type SubjectType string

const (
	SubjectTypeTheory    SubjectType = "theory"
	SubjectTypePractical SubjectType = "practical"
	SubjectTypeLab       SubjectType = "lab"
)

// SubjectTypes lists the accepted types in display order.
var SubjectTypes = []SubjectType{SubjectTypeTheory, SubjectTypePractical, SubjectTypeLab}

// Valid reports whether t is a known subject type.
func (t SubjectType) Valid() bool {
	for _, known := range SubjectTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Subject represents a course offered by a department.
type Subject struct {
	ID            string      `db:"id" json:"id"`
	Code          string      `db:"subject_code" json:"subject_code"`
	Name          string      `db:"subject_name" json:"subject_name"`
	Credits       int         `db:"credits" json:"credits"`
	DurationHours int         `db:"duration_hours" json:"duration_hours"`
	Type          SubjectType `db:"type" json:"type"`
	Department    string      `db:"department" json:"department"`
	Semester      int         `db:"semester" json:"semester"`
	YearLevel     int         `db:"year_level" json:"year_level"`
	Prerequisites string      `db:"prerequisites" json:"prerequisites"`
	Description   string      `db:"description" json:"description"`
	Syllabus      string      `db:"syllabus" json:"syllabus"`
	IsActive      bool        `db:"is_active" json:"is_active"`
	CreatedBy     *string     `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy     *string     `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// SubjectListItem is a subject row enriched with its active faculty count.
type SubjectListItem struct {
	Subject
	FacultyCount int `db:"faculty_count" json:"faculty_count"`
}

// Subject status filter values.
const (
	SubjectStatusActive   = "active"
	SubjectStatusInactive = "inactive"
)

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Department string
	Type       string
	YearLevel  int
	Semester   int
	Status     string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// SubjectDependents counts rows that reference a subject.
type SubjectDependents struct {
	ActiveAssignments int `db:"active_assignments" json:"active_assignments"`
	Enrollments       int `db:"enrollments" json:"enrollments"`
	TimetableEntries  int `db:"timetable_entries" json:"timetable_entries"`
}

// Blocking reports whether any dependent prevents permanent deletion.
func (d SubjectDependents) Blocking() bool {
	return d.ActiveAssignments > 0 || d.Enrollments > 0 || d.TimetableEntries > 0
}

// SubjectDetail is the read model behind the subject detail and delete confirmation pages.
type SubjectDetail struct {
	Subject     Subject                 `json:"subject"`
	Assignments []FacultyAssignmentView `json:"assignments"`
	Dependents  SubjectDependents       `json:"dependents"`
}

// SubjectStatistics aggregates the subject catalogue.
type SubjectStatistics struct {
	Total          int       `db:"total" json:"total"`
	Active         int       `db:"active" json:"active"`
	Inactive       int       `db:"inactive" json:"inactive"`
	Theory         int       `db:"theory" json:"theory"`
	Practical      int       `db:"practical" json:"practical"`
	Lab            int       `db:"lab" json:"lab"`
	Departments    int       `db:"departments" json:"departments"`
	WithFaculty    int       `db:"with_faculty" json:"with_faculty"`
	AverageCredits float64   `db:"average_credits" json:"average_credits"`
	GeneratedAt    time.Time `db:"-" json:"generated_at"`
}

// Bulk actions accepted by the subject manager.
const (
	BulkActionActivate   = "activate"
	BulkActionDeactivate = "deactivate"
	BulkActionDelete     = "delete"
)

// BulkResult summarises a completed bulk action.
type BulkResult struct {
	Action   string   `json:"action"`
	Affected int      `json:"affected"`
	IDs      []string `json:"ids"`
}
