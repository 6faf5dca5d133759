package web

import (
	"context"
	"strconv"
	"strings"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/service"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/export"
)

func subjectNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
}

type fakeSubjects struct {
	rows       []*models.Subject
	deps       map[string]models.SubjectDependents
	lastFilter models.SubjectFilter
	createErr  error
	deleteErr  error
	bulkErr    error
}

func newFakeSubjects() *fakeSubjects {
	return &fakeSubjects{deps: map[string]models.SubjectDependents{}}
}

func (f *fakeSubjects) add(code string) *models.Subject {
	s := &models.Subject{
		ID:            "subj-" + strings.ToLower(code),
		Code:          code,
		Name:          "Subject " + code,
		Credits:       3,
		DurationHours: 3,
		Type:          models.SubjectTypeTheory,
		Department:    "CS",
		Semester:      1,
		YearLevel:     1,
		IsActive:      true,
	}
	f.rows = append(f.rows, s)
	return s
}

func (f *fakeSubjects) find(id string) *models.Subject {
	for _, s := range f.rows {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeSubjects) List(_ context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, *models.Pagination, error) {
	f.lastFilter = filter
	var items []models.SubjectListItem
	for _, s := range f.rows {
		if filter.Status == models.SubjectStatusActive && !s.IsActive {
			continue
		}
		if filter.Status == models.SubjectStatusInactive && s.IsActive {
			continue
		}
		items = append(items, models.SubjectListItem{Subject: *s})
	}
	return items, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(items)}, nil
}

func (f *fakeSubjects) Get(_ context.Context, id string) (*models.Subject, error) {
	s := f.find(id)
	if s == nil {
		return nil, subjectNotFound()
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubjects) Detail(ctx context.Context, id string) (*models.SubjectDetail, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SubjectDetail{Subject: *s, Dependents: f.deps[id]}, nil
}

func (f *fakeSubjects) check(input dto.SubjectInput, exclude string) error {
	var fields []appErrors.FieldError
	if strings.TrimSpace(input.Name) == "" {
		fields = append(fields, appErrors.FieldError{Field: "subject_name", Message: "Subject name is required"})
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	for _, s := range f.rows {
		if s.IsActive && s.Code == code && s.ID != exclude {
			fields = append(fields, appErrors.FieldError{Field: "subject_code", Message: service.MessageDuplicateSubjectCode})
		}
	}
	if len(fields) > 0 {
		return appErrors.Validation("", fields...)
	}
	return nil
}

func (f *fakeSubjects) Create(_ context.Context, input dto.SubjectInput, _ models.Actor) (*models.Subject, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if err := f.check(input, ""); err != nil {
		return nil, err
	}
	s := f.add(strings.ToUpper(strings.TrimSpace(input.Code)))
	s.Name = input.Name
	s.Department = input.Department
	return s, nil
}

func (f *fakeSubjects) Update(_ context.Context, id string, input dto.SubjectInput, _ models.Actor) (*models.Subject, error) {
	s := f.find(id)
	if s == nil {
		return nil, subjectNotFound()
	}
	if err := f.check(input, id); err != nil {
		return nil, err
	}
	s.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	s.Name = input.Name
	return s, nil
}

func (f *fakeSubjects) Delete(_ context.Context, id string, _ models.Actor, permanent bool) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	s := f.find(id)
	if s == nil {
		return subjectNotFound()
	}
	if !permanent {
		s.IsActive = false
		return nil
	}
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeSubjects) BulkAction(_ context.Context, req dto.BulkActionRequest, _ models.Actor) (*models.BulkResult, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	for _, id := range req.IDs {
		if s := f.find(id); s != nil {
			s.IsActive = req.Action == models.BulkActionActivate
		}
	}
	return &models.BulkResult{Action: req.Action, Affected: len(req.IDs), IDs: req.IDs}, nil
}

func (f *fakeSubjects) Statistics(context.Context) (*models.SubjectStatistics, error) {
	stats := &models.SubjectStatistics{Total: len(f.rows)}
	for _, s := range f.rows {
		if s.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}

func (f *fakeSubjects) Departments(context.Context) ([]string, error) {
	return []string{"CS", "MATH"}, nil
}

func (f *fakeSubjects) ExportTable(_ context.Context, filter models.SubjectFilter, _ models.Actor) (export.Table, error) {
	f.lastFilter = filter
	table := export.Table{Title: "Subjects", Headers: []string{"Code", "Name", "Credits"}}
	for _, s := range f.rows {
		table.Rows = append(table.Rows, []string{s.Code, s.Name, strconv.Itoa(s.Credits)})
	}
	return table, nil
}

type fakeAssignments struct {
	rows      []models.FacultyAssignmentView
	assignErr error
	updateErr error
	removed   []string
}

func (f *fakeAssignments) List(_ context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, *models.Pagination, error) {
	return f.rows, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.rows)}, nil
}

func (f *fakeAssignments) ListForFaculty(_ context.Context, facultyID string) ([]models.FacultyAssignmentView, error) {
	var out []models.FacultyAssignmentView
	for _, a := range f.rows {
		if a.FacultyID == facultyID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssignments) FacultyOptions(context.Context, string) ([]models.FacultyOption, error) {
	return []models.FacultyOption{{ID: "fac-1", FullName: "Ada Lovelace", Department: "CS"}}, nil
}

func (f *fakeAssignments) Assign(_ context.Context, input dto.AssignmentInput, _ models.Actor) (*models.FacultyAssignment, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	a := models.FacultyAssignment{ID: "asg-" + strconv.Itoa(len(f.rows)+1), FacultyID: input.FacultyID, SubjectID: input.SubjectID, MaxStudents: input.MaxStudents, IsActive: true}
	f.rows = append(f.rows, models.FacultyAssignmentView{FacultyAssignment: a})
	return &a, nil
}

func (f *fakeAssignments) Update(_ context.Context, id string, input dto.AssignmentUpdateInput, _ models.Actor) (*models.FacultyAssignment, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].MaxStudents = input.MaxStudents
			f.rows[i].Notes = input.Notes
			a := f.rows[i].FacultyAssignment
			return &a, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
}

func (f *fakeAssignments) Remove(_ context.Context, id string, _ models.Actor) error {
	f.removed = append(f.removed, id)
	return nil
}

type fakeAuth struct {
	users       map[string]*models.User
	password    string
	registered  []dto.RegisterRequest
	registerErr error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]*models.User{}, password: "correct-horse"}
}

func (f *fakeAuth) add(email string, role models.UserRole) *models.User {
	u := &models.User{ID: "user-" + strings.ToLower(string(role)), Email: email, FullName: "Grace Hopper", Role: role, Active: true}
	f.users[email] = u
	return u
}

func (f *fakeAuth) Login(_ context.Context, req dto.LoginRequest, _ models.Actor) (*models.User, error) {
	u, ok := f.users[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || req.Password != f.password {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	return u, nil
}

func (f *fakeAuth) Logout(context.Context, models.Actor) {}

func (f *fakeAuth) Register(_ context.Context, req dto.RegisterRequest, _ models.Actor) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, req)
	return &models.User{ID: "new-user", Email: req.Email}, nil
}

func (f *fakeAuth) VerifyEmail(context.Context, string, models.Actor) (*models.User, error) {
	return nil, appErrors.Clone(appErrors.ErrInvalidToken, "verification link is invalid")
}

func (f *fakeAuth) ResendVerification(context.Context, dto.ResendVerificationRequest) error {
	return nil
}

func (f *fakeAuth) ForgotPassword(context.Context, dto.ForgotPasswordRequest, models.Actor) error {
	return nil
}

func (f *fakeAuth) ResetPassword(context.Context, dto.ResetPasswordRequest, models.Actor) error {
	return nil
}

func (f *fakeAuth) ChangePassword(context.Context, string, dto.ChangePasswordRequest, models.Actor) error {
	return nil
}
