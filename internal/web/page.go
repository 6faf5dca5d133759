package web

import (
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
)

// Navigation keys.
const (
	navDashboard   = "dashboard"
	navSubjects    = "subjects"
	navAssignments = "assignments"
	navTeaching    = "teaching"
	navAccount     = "account"
)

// Page is everything a template sees: the shared chrome plus page specific Data.
type Page struct {
	Title     string
	Nav       string
	Identity  *models.Identity
	Flashes   []session.Message
	CSRFToken string

	// Error is a page level message; Errors holds per-field messages keyed by input name.
	Error    string
	Errors   map[string]string
	Problems []string

	Data interface{}
}

// FieldError returns the message recorded for field.
func (p Page) FieldError(field string) string {
	return p.Errors[field]
}

// IsAdmin reports whether the viewer is an administrator.
func (p Page) IsAdmin() bool {
	return p.Identity.HasRole(models.RoleAdmin)
}

// IsFaculty reports whether the viewer is a faculty member.
func (p Page) IsFaculty() bool {
	return p.Identity.HasRole(models.RoleFaculty)
}
