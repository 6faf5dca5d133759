package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/service"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/config"
)

type site struct {
	t           *testing.T
	router      *gin.Engine
	cookies     map[string]*http.Cookie
	subjects    *fakeSubjects
	assignments *fakeAssignments
	auth        *fakeAuth
}

func newSite(t *testing.T) *site {
	gin.SetMode(gin.TestMode)
	renderer, err := NewRenderer()
	require.NoError(t, err)

	s := &site{
		t:           t,
		cookies:     map[string]*http.Cookie{},
		subjects:    newFakeSubjects(),
		assignments: &fakeAssignments{},
		auth:        newFakeAuth(),
	}
	h := NewHandler(renderer, s.auth, s.subjects, s.assignments, nil, nil)

	r := gin.New()
	r.Use(session.Middleware(config.SessionConfig{CookieName: "test_session", Secret: "0123456789abcdef0123456789abcdef", MaxAge: time.Hour}))
	r.Use(middleware.Authenticate(nil))
	r.GET("/test/signin/:role", func(c *gin.Context) {
		role := models.UserRole(strings.ToUpper(c.Param("role")))
		require.NoError(t, session.SignIn(c, models.Identity{UserID: "user-" + c.Param("role"), FullName: "Test User", Role: role}))
		c.Status(http.StatusNoContent)
	})

	guest := r.Group("", middleware.RequireGuest())
	guest.GET("/login", h.LoginForm)
	guest.POST("/login", h.Login)
	guest.GET("/register", h.RegisterForm)
	guest.POST("/register", h.Register)
	r.GET("/verify-email", h.VerifyEmail)

	signedIn := r.Group("", middleware.RequireLogin(middleware.Page))
	signedIn.GET("/dashboard", h.Dashboard)
	signedIn.POST("/logout", h.Logout)

	admin := r.Group("/admin", middleware.RequireRole(middleware.Page, models.RoleAdmin))
	admin.GET("/subjects", h.ListSubjects)
	admin.GET("/subjects/new", h.NewSubject)
	admin.POST("/subjects", h.CreateSubject)
	admin.POST("/subjects/bulk", h.BulkSubjects)
	admin.GET("/subjects/export", h.ExportSubjects)
	admin.GET("/subjects/:id", h.ShowSubject)
	admin.POST("/subjects/:id", h.UpdateSubject)
	admin.GET("/subjects/:id/delete", h.ConfirmDeleteSubject)
	admin.POST("/subjects/:id/delete", h.DeleteSubject)
	admin.GET("/assignments", h.ListAssignments)
	admin.POST("/assignments", h.CreateAssignment)
	admin.POST("/assignments/:id", h.UpdateAssignment)

	faculty := r.Group("/faculty", middleware.RequireRole(middleware.Page, models.RoleFaculty))
	faculty.GET("/subjects", h.FacultySubjects)

	s.router = r
	return s
}

func (s *site) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		s.cookies[c.Name] = c
	}
	return rec
}

func (s *site) get(path string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, nil)
}

func (s *site) post(path string, form url.Values) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, form)
}

func (s *site) signIn(role string) {
	require.Equal(s.t, http.StatusNoContent, s.get("/test/signin/"+role).Code)
}

func subjectForm(code, name string) url.Values {
	return url.Values{
		"subject_code":   {code},
		"subject_name":   {name},
		"credits":        {"3"},
		"duration_hours": {"3"},
		"type":           {"theory"},
		"department":     {"CS"},
		"semester":       {"1"},
		"year_level":     {"1"},
	}
}

func subjectRows(body string) int {
	return strings.Count(body, `<tr data-id="`)
}

func TestCreateSubjectRedirectsToFilteredList(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")

	form := subjectForm("cs101", "Introduction to Programming")
	form.Set("return_query", "department=CS&status=active")
	rec := s.post("/admin/subjects", form)
	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Equal(t, "/admin/subjects?created=CS101&department=CS&status=active", location)

	list := s.get(location)
	require.Equal(t, http.StatusOK, list.Code)
	body := list.Body.String()
	assert.Contains(t, body, "Subject CS101 created.")
	assert.Equal(t, 1, subjectRows(body))
	assert.Contains(t, body, `class="highlight"`)
	assert.Equal(t, "CS", s.subjects.lastFilter.Department)
	assert.Equal(t, models.SubjectStatusActive, s.subjects.lastFilter.Status)

	again := s.get(location)
	assert.NotContains(t, again.Body.String(), "Subject CS101 created.")
}

func TestCreateDuplicateSubjectReRendersForm(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	s.subjects.add("CS101")

	rec := s.post("/admin/subjects", subjectForm("CS101", "Another Name"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, service.MessageDuplicateSubjectCode)
	assert.Contains(t, body, `value="Another Name"`)
	assert.Contains(t, body, `value="CS101"`)
	assert.Len(t, s.subjects.rows, 1)
}

func TestCreateSubjectFailureShowsGenericMessage(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	s.subjects.createErr = appErrors.Internal(errors.New("connection refused"), "failed to create subject")

	rec := s.post("/admin/subjects", subjectForm("CS101", "Kept Name"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, MessageGeneric)
	assert.Contains(t, body, `value="Kept Name"`)
	assert.NotContains(t, body, "connection refused")
}

func TestUpdateSubjectRedirectsWithUpdatedID(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	subject := s.subjects.add("CS101")

	form := subjectForm("CS101", "Renamed Subject")
	form.Set("return_query", "search=intro")
	rec := s.post("/admin/subjects/"+subject.ID, form)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/subjects?search=intro&updated_id="+subject.ID, rec.Header().Get("Location"))
	assert.Equal(t, "Renamed Subject", s.subjects.rows[0].Name)

	missing := s.post("/admin/subjects/ghost", form)
	require.Equal(t, http.StatusFound, missing.Code)
	assert.Equal(t, "/admin/subjects?search=intro", missing.Header().Get("Location"))
	assert.Contains(t, s.get("/admin/subjects").Body.String(), MessageSubjectNotFound)
}

func TestBulkDeactivate(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	a, b, c := s.subjects.add("CS101"), s.subjects.add("CS102"), s.subjects.add("CS103")

	rec := s.post("/admin/subjects/bulk", url.Values{
		"action":       {"deactivate"},
		"ids":          {a.ID, b.ID, c.ID},
		"return_query": {"department=CS"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/subjects?department=CS", rec.Header().Get("Location"))
	for _, subject := range s.subjects.rows {
		assert.False(t, subject.IsActive, subject.Code)
	}
	assert.Contains(t, s.get(rec.Header().Get("Location")).Body.String(), "Deactivated 3 subjects.")
}

func TestBulkFailureKeepsSelection(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	a, b := s.subjects.add("CS101"), s.subjects.add("CS102")
	s.subjects.bulkErr = appErrors.Validation("Bulk delete aborted: 1 of 2 subjects cannot be processed",
		appErrors.FieldError{Field: b.ID, Message: "CS102: still has 1 enrollment"})

	rec := s.post("/admin/subjects/bulk", url.Values{"action": {"delete"}, "ids": {a.ID, b.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bulk delete aborted: 1 of 2 subjects cannot be processed")
	assert.Contains(t, body, "CS102: still has 1 enrollment")
	assert.Contains(t, body, `value="`+a.ID+`" checked`)
	assert.Contains(t, body, `value="delete" selected`)
	assert.Len(t, s.subjects.rows, 2)
}

func TestPermanentDeleteBlockedByDependents(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	subject := s.subjects.add("CS101")
	s.subjects.deps[subject.ID] = models.SubjectDependents{ActiveAssignments: 2}
	s.subjects.deleteErr = appErrors.Clone(appErrors.ErrDependencyConflict, "Cannot permanently delete CS101: it still has 2 active faculty assignments. Deactivate it instead.")

	rec := s.post("/admin/subjects/"+subject.ID+"/delete", url.Values{"permanent": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Cannot permanently delete CS101")
	assert.Contains(t, body, "2 active faculty assignments")
	assert.Len(t, s.subjects.rows, 1)
}

func TestDeleteSubjectKeepsFilters(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	subject := s.subjects.add("CS101")

	confirm := s.get("/admin/subjects/" + subject.ID + "/delete?return=search%3Dintro")
	require.Equal(t, http.StatusOK, confirm.Code)
	assert.Contains(t, confirm.Body.String(), "Nothing references this subject.")

	rec := s.post("/admin/subjects/"+subject.ID+"/delete", url.Values{"return_query": {"search=intro"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/subjects?deleted=CS101&search=intro", rec.Header().Get("Location"))
	assert.False(t, s.subjects.rows[0].IsActive)
	assert.Contains(t, s.get(rec.Header().Get("Location")).Body.String(), "Subject CS101 deactivated.")
}

func TestSubjectPagesAnswerMissingRecords(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")

	rec := s.get("/admin/subjects/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Subject not found")
}

func TestListSubjectsForwardsFilters(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	s.subjects.add("CS101")

	rec := s.get("/admin/subjects?department=CS&type=lab&year_level=2&search=intro&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	filter := s.subjects.lastFilter
	assert.Equal(t, "CS", filter.Department)
	assert.Equal(t, "lab", filter.Type)
	assert.Equal(t, 2, filter.YearLevel)
	assert.Equal(t, "intro", filter.Search)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 20, filter.PageSize)

	body := rec.Body.String()
	assert.Contains(t, body, "department=CS&amp;page=2&amp;search=intro&amp;type=lab&amp;year_level=2")
	assert.Contains(t, body, `<option value="lab" selected>`)
}

func TestExportSubjectsAsCSV(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	s.subjects.add("CS101")

	rec := s.get("/admin/subjects/export?format=csv&department=CS")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="subjects-`))
	assert.Contains(t, rec.Body.String(), "Code,Name,Credits")
	assert.Equal(t, "CS", s.subjects.lastFilter.Department)

	unsupported := s.get("/admin/subjects/export?format=xlsx")
	assert.Equal(t, http.StatusFound, unsupported.Code)
}

func TestAnonymousVisitorIsSentToLogin(t *testing.T) {
	s := newSite(t)

	rec := s.get("/admin/subjects?department=CS")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fsubjects%3Fdepartment%3DCS", rec.Header().Get("Location"))

	login := s.get(rec.Header().Get("Location"))
	require.Equal(t, http.StatusOK, login.Code)
	assert.Contains(t, login.Body.String(), middleware.MessageLoginRequired)
	assert.Contains(t, login.Body.String(), `name="next" value="/admin/subjects?department=CS"`)
}

func TestLoginFlow(t *testing.T) {
	s := newSite(t)
	s.auth.add("grace@uni.test", models.RoleAdmin)

	wrong := s.post("/login", url.Values{"email": {"grace@uni.test"}, "password": {"nope"}})
	require.Equal(t, http.StatusOK, wrong.Code)
	assert.Contains(t, wrong.Body.String(), "Invalid email or password")
	assert.Contains(t, wrong.Body.String(), `value="grace@uni.test"`)
	assert.NotContains(t, wrong.Body.String(), `value="nope"`)

	rec := s.post("/login", url.Values{"email": {"grace@uni.test"}, "password": {s.auth.password}, "next": {"/admin/subjects?department=CS"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/subjects?department=CS", rec.Header().Get("Location"))

	list := s.get("/admin/subjects")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Welcome back, Grace Hopper.")

	assert.Equal(t, http.StatusFound, s.get("/login").Code)

	out := s.post("/logout", url.Values{})
	require.Equal(t, http.StatusFound, out.Code)
	assert.Equal(t, middleware.LoginPath, out.Header().Get("Location"))
	assert.Equal(t, http.StatusFound, s.get("/admin/subjects").Code)
}

func TestLoginIgnoresOffsiteNext(t *testing.T) {
	s := newSite(t)
	s.auth.add("grace@uni.test", models.RoleAdmin)

	rec := s.post("/login", url.Values{"email": {"grace@uni.test"}, "password": {s.auth.password}, "next": {"//evil.example/phish"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, middleware.DashboardPath, rec.Header().Get("Location"))
}

func TestRegisterReRendersWithoutPasswords(t *testing.T) {
	s := newSite(t)
	s.auth.registerErr = appErrors.Validation("registration failed",
		appErrors.FieldError{Field: "email", Message: "Email is already registered"},
		appErrors.FieldError{Field: "employee_id", Message: "Employee ID is required for faculty"})

	rec := s.post("/register", url.Values{
		"role":             {"FACULTY"},
		"full_name":        {"Ada Lovelace"},
		"email":            {"ada@uni.test"},
		"password":         {"secret-pass"},
		"confirm_password": {"secret-pass"},
		"department":       {"CS"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Email is already registered")
	assert.Contains(t, body, "Employee ID is required for faculty")
	assert.Contains(t, body, `value="Ada Lovelace"`)
	assert.Contains(t, body, `value="FACULTY" checked`)
	assert.NotContains(t, body, "secret-pass")

	s.auth.registerErr = nil
	ok := s.post("/register", url.Values{"role": {"STUDENT"}, "email": {"sam@uni.test"}})
	require.Equal(t, http.StatusFound, ok.Code)
	assert.Equal(t, middleware.LoginPath, ok.Header().Get("Location"))
	assert.Contains(t, s.get("/login").Body.String(), MessageRegistered)
}

func TestVerifyEmailWithBadTokenOffersResend(t *testing.T) {
	s := newSite(t)

	rec := s.get("/verify-email?token=garbage")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Verification link is invalid")
	assert.Contains(t, rec.Body.String(), `action="/verify-email/resend"`)
}

func TestAssignmentPages(t *testing.T) {
	s := newSite(t)
	s.signIn("admin")
	s.subjects.add("CS101")

	rec := s.post("/admin/assignments", url.Values{"faculty_id": {"fac-1"}, "subject_id": {"subj-cs101"}, "max_students": {"40"}, "return_query": {"department=CS"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/assignments?department=CS", rec.Header().Get("Location"))
	require.Len(t, s.assignments.rows, 1)

	s.assignments.assignErr = appErrors.Validation("", appErrors.FieldError{Field: "subject_id", Message: service.MessageDuplicateAssignment})
	dup := s.post("/admin/assignments", url.Values{"faculty_id": {"fac-1"}, "subject_id": {"subj-cs101"}, "max_students": {"40"}})
	require.Equal(t, http.StatusOK, dup.Code)
	assert.Contains(t, dup.Body.String(), service.MessageDuplicateAssignment)
	assert.Contains(t, dup.Body.String(), `value="40"`)
	assert.Len(t, s.assignments.rows, 1)

	s.assignments.updateErr = appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is no longer active")
	stale := s.post("/admin/assignments/asg-1", url.Values{"max_students": {"10"}})
	require.Equal(t, http.StatusFound, stale.Code)
	assert.Contains(t, s.get("/admin/assignments").Body.String(), "Assignment is no longer active.")
}

func TestFacultySeesOwnSubjects(t *testing.T) {
	s := newSite(t)
	s.assignments.rows = []models.FacultyAssignmentView{
		{FacultyAssignment: models.FacultyAssignment{ID: "a1", FacultyID: "user-faculty", MaxStudents: 30, IsActive: true}, SubjectCode: "CS101", SubjectName: "Programming", Credits: 3},
		{FacultyAssignment: models.FacultyAssignment{ID: "a2", FacultyID: "someone-else", MaxStudents: 30, IsActive: true}, SubjectCode: "MA201", SubjectName: "Algebra", Credits: 4},
	}
	s.signIn("faculty")

	rec := s.get("/faculty/subjects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CS101")
	assert.NotContains(t, rec.Body.String(), "MA201")

	denied := s.get("/admin/subjects")
	require.Equal(t, http.StatusFound, denied.Code)
	assert.Equal(t, middleware.DashboardPath, denied.Header().Get("Location"))
	assert.Contains(t, s.get("/dashboard").Body.String(), middleware.MessageAccessDenied)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"/admin/subjects?x=1":  "/admin/subjects?x=1",
		"//evil.example":       "",
		"/\\evil.example":      "",
		"https://evil.example": "",
		"dashboard":            "",
	}
	for input, want := range cases {
		assert.Equal(t, want, safeNext(input), input)
	}
}
