package dto

import (
	"net/url"
	"strings"

	"github.com/noah-isme/timetable-admin/internal/models"
)

// AssignmentInput creates a faculty assignment.
type AssignmentInput struct {
	FacultyID   string `json:"faculty_id" validate:"required,uuid"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	MaxStudents int    `json:"max_students" validate:"min=1,max=200"`
	Notes       string `json:"notes" validate:"max=500"`
}

// AssignmentUpdateInput edits the mutable fields of an assignment.
type AssignmentUpdateInput struct {
	MaxStudents int    `json:"max_students" validate:"min=1,max=200"`
	Notes       string `json:"notes" validate:"max=500"`
}

// AssignmentForm is the raw HTML form submission for assignments.
type AssignmentForm struct {
	FacultyID   string `form:"faculty_id"`
	SubjectID   string `form:"subject_id"`
	MaxStudents string `form:"max_students"`
	Notes       string `form:"notes"`
}

// Input converts the form.
func (f AssignmentForm) Input() AssignmentInput {
	return AssignmentInput{
		FacultyID:   strings.TrimSpace(f.FacultyID),
		SubjectID:   strings.TrimSpace(f.SubjectID),
		MaxStudents: atoi(f.MaxStudents),
		Notes:       f.Notes,
	}
}

// UpdateInput converts the form for an edit.
func (f AssignmentForm) UpdateInput() AssignmentUpdateInput {
	return AssignmentUpdateInput{MaxStudents: atoi(f.MaxStudents), Notes: f.Notes}
}

// AssignmentListQuery is the query string of the assignment list page.
type AssignmentListQuery struct {
	Department string `form:"department"`
	FacultyID  string `form:"faculty_id"`
	SubjectID  string `form:"subject_id"`
	Status     string `form:"status"`
	Search     string `form:"search"`
	Page       string `form:"page"`
}

// Filter converts the query into a repository filter. Only active assignments are listed unless
// status is "all".
func (q AssignmentListQuery) Filter(pageSize int) models.FacultyAssignmentFilter {
	return models.FacultyAssignmentFilter{
		Department: strings.TrimSpace(q.Department),
		FacultyID:  strings.TrimSpace(q.FacultyID),
		SubjectID:  strings.TrimSpace(q.SubjectID),
		ActiveOnly: strings.TrimSpace(q.Status) != "all",
		Search:     strings.TrimSpace(q.Search),
		Page:       atoi(q.Page),
		PageSize:   pageSize,
	}
}

// Values renders the non-empty filters back into a query string.
func (q AssignmentListQuery) Values() url.Values {
	v := url.Values{}
	for key, value := range map[string]string{
		"department": q.Department,
		"faculty_id": q.FacultyID,
		"subject_id": q.SubjectID,
		"status":     q.Status,
		"search":     q.Search,
		"page":       q.Page,
	} {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	return v
}

// AssignmentListQueryFrom restores filters carried in a hidden form field.
func AssignmentListQueryFrom(raw string) AssignmentListQuery {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return AssignmentListQuery{}
	}
	return AssignmentListQuery{
		Department: v.Get("department"),
		FacultyID:  v.Get("faculty_id"),
		SubjectID:  v.Get("subject_id"),
		Status:     v.Get("status"),
		Search:     v.Get("search"),
		Page:       v.Get("page"),
	}
}
