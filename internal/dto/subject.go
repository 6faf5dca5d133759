package dto

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/timetable-admin/internal/models"
)

// SubjectInput carries the editable subject fields.
type SubjectInput struct {
	Code          string `json:"subject_code" validate:"required,subject_code"`
	Name          string `json:"subject_name" validate:"required,min=3,max=150"`
	Credits       int    `json:"credits" validate:"min=1,max=6"`
	DurationHours int    `json:"duration_hours" validate:"min=1,max=8"`
	Type          string `json:"type" validate:"required,oneof=theory practical lab"`
	Department    string `json:"department" validate:"required,max=100"`
	Semester      int    `json:"semester" validate:"min=1,max=12"`
	YearLevel     int    `json:"year_level" validate:"min=1,max=6"`
	Prerequisites string `json:"prerequisites" validate:"max=255"`
	Description   string `json:"description"`
	Syllabus      string `json:"syllabus"`
}

// SubjectForm is the raw HTML form submission. Numeric fields stay strings so that whatever the
// user typed can be echoed back when the form is re-rendered.
type SubjectForm struct {
	Code          string `form:"subject_code"`
	Name          string `form:"subject_name"`
	Credits       string `form:"credits"`
	DurationHours string `form:"duration_hours"`
	Type          string `form:"type"`
	Department    string `form:"department"`
	Semester      string `form:"semester"`
	YearLevel     string `form:"year_level"`
	Prerequisites string `form:"prerequisites"`
	Description   string `form:"description"`
	Syllabus      string `form:"syllabus"`
}

// Input converts the form. Unparsable numbers become 0 and fail range validation.
func (f SubjectForm) Input() SubjectInput {
	return SubjectInput{
		Code:          f.Code,
		Name:          f.Name,
		Credits:       atoi(f.Credits),
		DurationHours: atoi(f.DurationHours),
		Type:          f.Type,
		Department:    f.Department,
		Semester:      atoi(f.Semester),
		YearLevel:     atoi(f.YearLevel),
		Prerequisites: f.Prerequisites,
		Description:   f.Description,
		Syllabus:      f.Syllabus,
	}
}

// SubjectFormFrom pre-fills the edit form from a stored subject.
func SubjectFormFrom(s *models.Subject) SubjectForm {
	return SubjectForm{
		Code:          s.Code,
		Name:          s.Name,
		Credits:       strconv.Itoa(s.Credits),
		DurationHours: strconv.Itoa(s.DurationHours),
		Type:          string(s.Type),
		Department:    s.Department,
		Semester:      strconv.Itoa(s.Semester),
		YearLevel:     strconv.Itoa(s.YearLevel),
		Prerequisites: s.Prerequisites,
		Description:   s.Description,
		Syllabus:      s.Syllabus,
	}
}

// BulkActionRequest applies one action to many subjects.
type BulkActionRequest struct {
	Action string   `json:"action" form:"action" validate:"required,oneof=activate deactivate delete"`
	IDs    []string `json:"ids" form:"ids" validate:"required,min=1,dive,required"`
}

// SubjectListQuery is the query string of the subject list page. It survives redirects.
type SubjectListQuery struct {
	Department string `form:"department"`
	Type       string `form:"type"`
	YearLevel  string `form:"year_level"`
	Semester   string `form:"semester"`
	Status     string `form:"status"`
	Search     string `form:"search"`
	Page       string `form:"page"`
	SortBy     string `form:"sort"`
	SortOrder  string `form:"order"`
}

// Filter converts the query into a repository filter.
func (q SubjectListQuery) Filter(pageSize int) models.SubjectFilter {
	return models.SubjectFilter{
		Department: strings.TrimSpace(q.Department),
		Type:       strings.TrimSpace(q.Type),
		YearLevel:  atoi(q.YearLevel),
		Semester:   atoi(q.Semester),
		Status:     strings.TrimSpace(q.Status),
		Search:     strings.TrimSpace(q.Search),
		Page:       atoi(q.Page),
		PageSize:   pageSize,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}
}

// Values renders the non-empty filters back into a query string.
func (q SubjectListQuery) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	set("department", q.Department)
	set("type", q.Type)
	set("year_level", q.YearLevel)
	set("semester", q.Semester)
	set("status", q.Status)
	set("search", q.Search)
	set("page", q.Page)
	set("sort", q.SortBy)
	set("order", q.SortOrder)
	return v
}

// SubjectListQueryFrom restores filters carried in a hidden form field.
func SubjectListQueryFrom(raw string) SubjectListQuery {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return SubjectListQuery{}
	}
	return SubjectListQuery{
		Department: v.Get("department"),
		Type:       v.Get("type"),
		YearLevel:  v.Get("year_level"),
		Semester:   v.Get("semester"),
		Status:     v.Get("status"),
		Search:     v.Get("search"),
		Page:       v.Get("page"),
		SortBy:     v.Get("sort"),
		SortOrder:  v.Get("order"),
	}
}

func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
