package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/export"
	"github.com/noah-isme/timetable-admin/pkg/logger"
)

// MessageGeneric replaces infrastructure failures on rendered pages.
const MessageGeneric = "Something went wrong. Please try again."

type subjectManager interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Subject, error)
	Detail(ctx context.Context, id string) (*models.SubjectDetail, error)
	Create(ctx context.Context, input dto.SubjectInput, actor models.Actor) (*models.Subject, error)
	Update(ctx context.Context, id string, input dto.SubjectInput, actor models.Actor) (*models.Subject, error)
	Delete(ctx context.Context, id string, actor models.Actor, permanent bool) error
	BulkAction(ctx context.Context, req dto.BulkActionRequest, actor models.Actor) (*models.BulkResult, error)
	Statistics(ctx context.Context) (*models.SubjectStatistics, error)
	Departments(ctx context.Context) ([]string, error)
	ExportTable(ctx context.Context, filter models.SubjectFilter, actor models.Actor) (export.Table, error)
}

type assignmentManager interface {
	List(ctx context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, *models.Pagination, error)
	ListForFaculty(ctx context.Context, facultyID string) ([]models.FacultyAssignmentView, error)
	FacultyOptions(ctx context.Context, department string) ([]models.FacultyOption, error)
	Assign(ctx context.Context, input dto.AssignmentInput, actor models.Actor) (*models.FacultyAssignment, error)
	Update(ctx context.Context, id string, input dto.AssignmentUpdateInput, actor models.Actor) (*models.FacultyAssignment, error)
	Remove(ctx context.Context, id string, actor models.Actor) error
}

type authenticator interface {
	Login(ctx context.Context, req dto.LoginRequest, actor models.Actor) (*models.User, error)
	Logout(ctx context.Context, actor models.Actor)
	Register(ctx context.Context, req dto.RegisterRequest, actor models.Actor) (*models.User, error)
	VerifyEmail(ctx context.Context, token string, actor models.Actor) (*models.User, error)
	ResendVerification(ctx context.Context, req dto.ResendVerificationRequest) error
	ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest, actor models.Actor) error
	ResetPassword(ctx context.Context, req dto.ResetPasswordRequest, actor models.Actor) error
	ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest, actor models.Actor) error
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// Handler serves the HTML pages of the portal.
type Handler struct {
	renderer    *Renderer
	auth        authenticator
	subjects    subjectManager
	assignments assignmentManager
	metrics     metricsSnapshotter
	logger      *zap.Logger
	pageSize    int
}

// NewHandler constructs the page controllers.
func NewHandler(renderer *Renderer, auth authenticator, subjects subjectManager, assignments assignmentManager, metrics metricsSnapshotter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		renderer:    renderer,
		auth:        auth,
		subjects:    subjects,
		assignments: assignments,
		metrics:     metrics,
		logger:      logger,
		pageSize:    20,
	}
}

// WithPageSize overrides the number of rows shown per list page.
func (h *Handler) WithPageSize(size int) *Handler {
	if size > 0 {
		h.pageSize = size
	}
	return h
}

// request carries everything a single page request needs. Nothing request scoped lives on Handler.
type request struct {
	h        *Handler
	c        *gin.Context
	identity *models.Identity
}

func (h *Handler) request(c *gin.Context) *request {
	identity, _ := middleware.CurrentIdentity(c)
	return &request{h: h, c: c, identity: identity}
}

func (r *request) ctx() context.Context {
	return r.c.Request.Context()
}

func (r *request) actor() models.Actor {
	return middleware.Actor(r.c)
}

// redirect queues a flash message and answers 302.
func (r *request) redirect(target, kind, message string) {
	if message != "" {
		if err := session.Flash(r.c).Push(kind, message); err != nil {
			r.h.logger.Warn("failed to queue flash message", zap.Error(err))
		}
	}
	r.c.Redirect(http.StatusFound, target)
}

// render fills the shared chrome and writes the page.
func (r *request) render(status int, name string, page Page) {
	page.Identity = r.identity
	page.Flashes = session.Flash(r.c).Pop()
	page.CSRFToken = session.CSRFToken(r.c)

	r.c.Header("Content-Type", "text/html; charset=utf-8")
	r.c.Header("Cache-Control", "no-store")
	r.c.Status(status)
	if err := r.h.renderer.Render(r.c.Writer, name, page); err != nil {
		r.h.logger.Error("render page failed", zap.String("page", name), zap.Error(err))
		r.c.String(http.StatusInternalServerError, MessageGeneric)
	}
}

// failure records err on page and returns the status to render with. Validation problems are
// shown inline next to the fields; other client errors show their message; anything else is
// logged and replaced by the generic message.
func (r *request) failure(err error, page *Page) int {
	appErr := appErrors.FromError(err)
	switch {
	case appErr.IsValidation():
		page.Error = appErr.Message
		page.Errors = appErr.FieldMap()
		for _, f := range appErr.Fields {
			page.Problems = append(page.Problems, f.Message)
		}
		return http.StatusOK
	case appErr.Status >= 400 && appErr.Status < 500:
		page.Error = sentence(appErr.Message)
		return http.StatusOK
	default:
		logger.For(r.c, r.h.logger).Error("page request failed", zap.Error(err))
		page.Error = MessageGeneric
		return http.StatusInternalServerError
	}
}

// notFound answers GET pages whose record is missing or unreadable.
func (r *request) notFound(err error, title string) {
	page := Page{Title: title}
	status := r.failure(err, &page)
	if appErrors.FromError(err).Status == http.StatusNotFound {
		status = http.StatusNotFound
	}
	r.render(status, "error", page)
}

func sentence(message string) string {
	if message == "" {
		return message
	}
	return strings.ToUpper(message[:1]) + message[1:]
}

// safeNext accepts only local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return next
}

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}
