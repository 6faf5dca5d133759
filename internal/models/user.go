package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleFaculty UserRole = "FACULTY"
	RoleStudent UserRole = "STUDENT"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// Label returns a human readable role name.
func (r UserRole) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleFaculty:
		return "Faculty"
	case RoleStudent:
		return "Student"
	}
	return string(r)
}

// User represents an application user stored in the users table.
type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	FullName        string     `db:"full_name" json:"full_name"`
	Role            UserRole   `db:"role" json:"role"`
	Department      string     `db:"department" json:"department"`
	Active          bool       `db:"active" json:"active"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	LastLogin       *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EmailVerified reports whether the user confirmed their address.
func (u *User) EmailVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// FacultyProfile holds faculty specific registration fields.
type FacultyProfile struct {
	UserID      string `db:"user_id" json:"user_id"`
	EmployeeID  string `db:"employee_id" json:"employee_id"`
	Designation string `db:"designation" json:"designation"`
	Phone       string `db:"phone" json:"phone"`
}

// StudentProfile holds student specific registration fields.
type StudentProfile struct {
	UserID        string `db:"user_id" json:"user_id"`
	StudentNumber string `db:"student_number" json:"student_number"`
	YearLevel     int    `db:"year_level" json:"year_level"`
	Semester      int    `db:"semester" json:"semester"`
}

// FacultyOption is a faculty member offered in assignment forms.
type FacultyOption struct {
	ID                string `db:"id" json:"id"`
	FullName          string `db:"full_name" json:"full_name"`
	Email             string `db:"email" json:"email"`
	Department        string `db:"department" json:"department"`
	EmployeeID        string `db:"employee_id" json:"employee_id"`
	ActiveAssignments int    `db:"active_assignments" json:"active_assignments"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TotalPages returns the number of pages needed for TotalCount.
func (p *Pagination) TotalPages() int {
	if p == nil || p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}
