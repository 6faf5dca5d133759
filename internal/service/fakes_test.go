package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-admin/internal/models"
)

// uuidColumn fails the way postgres does when a uuid column is compared with malformed text.
func uuidColumn(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
			return &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid: \"" + id + "\""}
		}
	}
	return nil
}

// restorable stores can roll back to a snapshot when a fake transaction fails.
type restorable interface {
	snapshot() func()
}

type memTx struct {
	stores []restorable
	calls  int
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	restores := make([]func(), 0, len(t.stores))
	for _, s := range t.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type memAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *memAudit) Create(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type memSubjects struct {
	rows      map[string]*models.Subject
	deps      map[string]models.SubjectDependents
	createErr error
	statsHits int
	deptHits  int
}

func newMemSubjects() *memSubjects {
	return &memSubjects{rows: map[string]*models.Subject{}, deps: map[string]models.SubjectDependents{}}
}

func (m *memSubjects) snapshot() func() {
	saved := make(map[string]models.Subject, len(m.rows))
	for id, s := range m.rows {
		saved[id] = *s
	}
	return func() {
		m.rows = make(map[string]*models.Subject, len(saved))
		for id, s := range saved {
			s := s
			m.rows[id] = &s
		}
	}
}

func (m *memSubjects) add(code string, active bool) *models.Subject {
	s := &models.Subject{
		ID:            uuid.NewString(),
		Code:          code,
		Name:          "Subject " + code,
		Credits:       3,
		DurationHours: 3,
		Type:          models.SubjectTypeTheory,
		Department:    "CS",
		Semester:      1,
		YearLevel:     1,
		IsActive:      active,
	}
	m.rows[s.ID] = s
	return s
}

func (m *memSubjects) sorted() []models.Subject {
	out := make([]models.Subject, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *memSubjects) matching(filter models.SubjectFilter) []models.SubjectListItem {
	var items []models.SubjectListItem
	for _, s := range m.sorted() {
		if filter.Department != "" && s.Department != filter.Department {
			continue
		}
		if filter.Status == models.SubjectStatusActive && !s.IsActive {
			continue
		}
		if filter.Status == models.SubjectStatusInactive && s.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Code+" "+s.Name), strings.ToLower(filter.Search)) {
			continue
		}
		items = append(items, models.SubjectListItem{Subject: s, FacultyCount: m.deps[s.ID].ActiveAssignments})
	}
	return items
}

func (m *memSubjects) List(_ context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, int, error) {
	items := m.matching(filter)
	return items, len(items), nil
}

func (m *memSubjects) ListAll(_ context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, error) {
	return m.matching(filter), nil
}

func (m *memSubjects) FindByID(_ context.Context, id string) (*models.Subject, error) {
	if err := uuidColumn(id); err != nil {
		return nil, err
	}
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSubjects) FindByIDs(_ context.Context, ids []string) ([]models.Subject, error) {
	if err := uuidColumn(ids...); err != nil {
		return nil, err
	}
	var out []models.Subject
	for _, id := range ids {
		if s, ok := m.rows[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSubjects) ExistsActiveCode(_ context.Context, code, excludeID string) (bool, error) {
	for id, s := range m.rows {
		if id != excludeID && s.IsActive && strings.EqualFold(s.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubjects) Create(_ context.Context, subject *models.Subject) error {
	if m.createErr != nil {
		return m.createErr
	}
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	subject.CreatedAt = time.Now().UTC()
	subject.UpdatedAt = subject.CreatedAt
	cp := *subject
	m.rows[subject.ID] = &cp
	return nil
}

func (m *memSubjects) Update(_ context.Context, subject *models.Subject) error {
	if _, ok := m.rows[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *subject
	m.rows[subject.ID] = &cp
	return nil
}

func (m *memSubjects) SetActive(_ context.Context, ids []string, active bool, actorID string) (int64, error) {
	var n int64
	for _, id := range ids {
		if s, ok := m.rows[id]; ok {
			s.IsActive = active
			s.UpdatedBy = optionalString(actorID)
			n++
		}
	}
	return n, nil
}

func (m *memSubjects) Delete(_ context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *memSubjects) Dependents(_ context.Context, id string) (models.SubjectDependents, error) {
	return m.deps[id], nil
}

func (m *memSubjects) Statistics(_ context.Context) (*models.SubjectStatistics, error) {
	m.statsHits++
	stats := &models.SubjectStatistics{}
	for _, s := range m.rows {
		stats.Total++
		if s.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}

func (m *memSubjects) Departments(_ context.Context) ([]string, error) {
	m.deptHits++
	set := map[string]struct{}{}
	for _, s := range m.rows {
		set[s.Department] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

type memAssignments struct {
	rows      map[string]*models.FacultyAssignment
	createErr error
}

func newMemAssignments() *memAssignments {
	return &memAssignments{rows: map[string]*models.FacultyAssignment{}}
}

func (m *memAssignments) snapshot() func() {
	saved := make(map[string]models.FacultyAssignment, len(m.rows))
	for id, a := range m.rows {
		saved[id] = *a
	}
	return func() {
		m.rows = make(map[string]*models.FacultyAssignment, len(saved))
		for id, a := range saved {
			a := a
			m.rows[id] = &a
		}
	}
}

func (m *memAssignments) views(match func(*models.FacultyAssignment) bool) []models.FacultyAssignmentView {
	var out []models.FacultyAssignmentView
	for _, a := range m.rows {
		if match(a) {
			out = append(out, models.FacultyAssignmentView{FacultyAssignment: *a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memAssignments) List(_ context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, int, error) {
	for _, id := range []string{filter.FacultyID, filter.SubjectID} {
		if id == "" {
			continue
		}
		if err := uuidColumn(id); err != nil {
			return nil, 0, err
		}
	}
	out := m.views(func(a *models.FacultyAssignment) bool {
		if filter.ActiveOnly && !a.IsActive {
			return false
		}
		if filter.FacultyID != "" && a.FacultyID != filter.FacultyID {
			return false
		}
		return filter.SubjectID == "" || a.SubjectID == filter.SubjectID
	})
	return out, len(out), nil
}

func (m *memAssignments) ListBySubject(_ context.Context, subjectID string) ([]models.FacultyAssignmentView, error) {
	return m.views(func(a *models.FacultyAssignment) bool { return a.IsActive && a.SubjectID == subjectID }), nil
}

func (m *memAssignments) ListByFaculty(_ context.Context, facultyID string) ([]models.FacultyAssignmentView, error) {
	if err := uuidColumn(facultyID); err != nil {
		return nil, err
	}
	return m.views(func(a *models.FacultyAssignment) bool { return a.IsActive && a.FacultyID == facultyID }), nil
}

func (m *memAssignments) FindByID(_ context.Context, id string) (*models.FacultyAssignment, error) {
	if err := uuidColumn(id); err != nil {
		return nil, err
	}
	a, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *memAssignments) ExistsActive(_ context.Context, facultyID, subjectID string) (bool, error) {
	for _, a := range m.rows {
		if a.IsActive && a.FacultyID == facultyID && a.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAssignments) Create(_ context.Context, assignment *models.FacultyAssignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	cp := *assignment
	m.rows[assignment.ID] = &cp
	return nil
}

func (m *memAssignments) Update(_ context.Context, assignment *models.FacultyAssignment) error {
	if _, ok := m.rows[assignment.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *assignment
	m.rows[assignment.ID] = &cp
	return nil
}

func (m *memAssignments) Deactivate(_ context.Context, id string) error {
	a, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.IsActive = false
	return nil
}

func (m *memAssignments) FacultyOptions(_ context.Context, department string) ([]models.FacultyOption, error) {
	return []models.FacultyOption{{ID: "f1", FullName: "Ada Lovelace", Department: department}}, nil
}

type memUsers struct {
	rows      map[string]*models.User
	faculty   map[string]models.FacultyProfile
	students  map[string]models.StudentProfile
	createErr error
}

func newMemUsers() *memUsers {
	return &memUsers{rows: map[string]*models.User{}, faculty: map[string]models.FacultyProfile{}, students: map[string]models.StudentProfile{}}
}

func (m *memUsers) snapshot() func() {
	saved := make(map[string]models.User, len(m.rows))
	for id, u := range m.rows {
		saved[id] = *u
	}
	faculty := make(map[string]models.FacultyProfile, len(m.faculty))
	for k, v := range m.faculty {
		faculty[k] = v
	}
	students := make(map[string]models.StudentProfile, len(m.students))
	for k, v := range m.students {
		students[k] = v
	}
	return func() {
		m.rows = make(map[string]*models.User, len(saved))
		for id, u := range saved {
			u := u
			m.rows[id] = &u
		}
		m.faculty = faculty
		m.students = students
	}
}

func (m *memUsers) add(u models.User) *models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.rows[u.ID] = &u
	return &u
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.rows {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if err := uuidColumn(id); err != nil {
		return nil, err
	}
	u, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) EmployeeIDExists(_ context.Context, employeeID string) (bool, error) {
	for _, p := range m.faculty {
		if p.EmployeeID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) StudentNumberExists(_ context.Context, number string) (bool, error) {
	for _, p := range m.students {
		if p.StudentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	m.rows[user.ID] = &cp
	return nil
}

func (m *memUsers) CreateFacultyProfile(_ context.Context, profile *models.FacultyProfile) error {
	m.faculty[profile.UserID] = *profile
	return nil
}

func (m *memUsers) CreateStudentProfile(_ context.Context, profile *models.StudentProfile) error {
	m.students[profile.UserID] = *profile
	return nil
}

func (m *memUsers) PromoteAdmin(_ context.Context, id, passwordHash string, ts time.Time) error {
	u, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = models.RoleAdmin
	u.PasswordHash = passwordHash
	u.Active = true
	if u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &ts
	}
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if u, ok := m.rows[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	u, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id string, ts time.Time) (bool, error) {
	u, ok := m.rows[id]
	if !ok || u.EmailVerifiedAt != nil {
		return false, nil
	}
	u.EmailVerifiedAt = &ts
	return true, nil
}

type memResets struct {
	rows map[string]*models.PasswordReset
}

func newMemResets() *memResets {
	return &memResets{rows: map[string]*models.PasswordReset{}}
}

func (m *memResets) snapshot() func() {
	saved := make(map[string]models.PasswordReset, len(m.rows))
	for id, r := range m.rows {
		saved[id] = *r
	}
	return func() {
		m.rows = make(map[string]*models.PasswordReset, len(saved))
		for id, r := range saved {
			r := r
			m.rows[id] = &r
		}
	}
}

func (m *memResets) Create(_ context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	cp := *reset
	m.rows[reset.ID] = &cp
	return nil
}

func (m *memResets) FindByTokenHash(_ context.Context, hash string) (*models.PasswordReset, error) {
	for _, r := range m.rows {
		if r.TokenHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memResets) MarkUsed(_ context.Context, id string, ts time.Time) (bool, error) {
	r, ok := m.rows[id]
	if !ok || r.UsedAt != nil {
		return false, nil
	}
	r.UsedAt = &ts
	return true, nil
}

func (m *memResets) InvalidateForUser(_ context.Context, userID string, ts time.Time) error {
	for _, r := range m.rows {
		if r.UserID == userID && r.UsedAt == nil {
			r.UsedAt = &ts
		}
	}
	return nil
}

func (m *memResets) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, r := range m.rows {
		if r.ExpiresAt.Before(cutoff) || (r.UsedAt != nil && r.UsedAt.Before(cutoff)) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	kind  string
	user  *models.User
	token string
}

type memMailer struct {
	sent []sentMail
}

func (m *memMailer) SendVerification(_ context.Context, user *models.User, token string, _ time.Time) error {
	m.sent = append(m.sent, sentMail{kind: "verify", user: user, token: token})
	return nil
}

func (m *memMailer) SendPasswordReset(_ context.Context, user *models.User, token string, _ time.Time) error {
	m.sent = append(m.sent, sentMail{kind: "reset", user: user, token: token})
	return nil
}

func (m *memMailer) last(kind string) (sentMail, bool) {
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}
