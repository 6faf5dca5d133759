package models

import "time"

// FacultyAssignment links a faculty member to a subject they teach.
type FacultyAssignment struct {
	ID          string    `db:"id" json:"id"`
	FacultyID   string    `db:"faculty_id" json:"faculty_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	AssignedBy  *string   `db:"assigned_by" json:"assigned_by,omitempty"`
	Notes       string    `db:"notes" json:"notes"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	AssignedAt  time.Time `db:"assigned_at" json:"assigned_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyAssignmentView joins an assignment with faculty and subject details.
type FacultyAssignmentView struct {
	FacultyAssignment
	FacultyName       string `db:"faculty_name" json:"faculty_name"`
	FacultyEmail      string `db:"faculty_email" json:"faculty_email"`
	FacultyDepartment string `db:"faculty_department" json:"faculty_department"`
	SubjectCode       string `db:"subject_code" json:"subject_code"`
	SubjectName       string `db:"subject_name" json:"subject_name"`
	SubjectDepartment string `db:"subject_department" json:"subject_department"`
	Credits           int    `db:"credits" json:"credits"`
	SubjectType       string `db:"subject_type" json:"subject_type"`
}

// FacultyAssignmentFilter captures supported filters for listing assignments.
type FacultyAssignmentFilter struct {
	Department string
	FacultyID  string
	SubjectID  string
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
}
