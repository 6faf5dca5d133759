package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/handler"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/service"
	"github.com/noah-isme/timetable-admin/internal/session"
	"github.com/noah-isme/timetable-admin/internal/web"
	"github.com/noah-isme/timetable-admin/pkg/config"
	"github.com/noah-isme/timetable-admin/pkg/logger"
	"github.com/noah-isme/timetable-admin/pkg/middleware/cors"
	"github.com/noah-isme/timetable-admin/pkg/middleware/requestid"
)

// Dependencies are the handlers and services the route table binds.
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Tokens        middleware.TokenValidator
	Pages         *web.Handler
	Auth          *handler.AuthHandler
	Subjects      *handler.SubjectHandler
	Assignments   *handler.FacultyAssignmentHandler
	Observability *handler.MetricsHandler
}

// access is the role policy of a route group.
type access struct {
	guest    bool
	signedIn bool
	roles    []models.UserRole
}

var (
	public   = access{}
	guests   = access{guest: true}
	signedIn = access{signedIn: true}
)

func only(roles ...models.UserRole) access {
	return access{signedIn: true, roles: roles}
}

func (a access) guard(mode middleware.Mode) []gin.HandlerFunc {
	switch {
	case a.guest:
		return []gin.HandlerFunc{middleware.RequireGuest()}
	case len(a.roles) > 0:
		return []gin.HandlerFunc{middleware.RequireRole(mode, a.roles...)}
	case a.signedIn:
		return []gin.HandlerFunc{middleware.RequireLogin(mode)}
	}
	return nil
}

type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

type group struct {
	prefix string
	access access
	routes []route
}

func mount(parent *gin.RouterGroup, mode middleware.Mode, groups []group) {
	for _, g := range groups {
		rg := parent.Group(g.prefix, g.access.guard(mode)...)
		for _, r := range g.routes {
			rg.Handle(r.method, r.path, r.handler)
		}
	}
}

// New builds the HTTP engine: HTML pages at the root and the JSON API under the API prefix.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", deps.Observability.Health)
	r.GET("/metrics", deps.Observability.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	pages := r.Group("", session.Middleware(cfg.Session), middleware.Authenticate(nil), middleware.CSRF(middleware.Page))
	mount(pages, middleware.Page, pageRoutes(deps.Pages))

	api := r.Group(cfg.APIPrefix, session.Middleware(cfg.Session), middleware.Authenticate(deps.Tokens), middleware.CSRF(middleware.API), middleware.WithResponseMeta())
	mount(api, middleware.API, apiRoutes(deps))

	return r
}

func pageRoutes(h *web.Handler) []group {
	return []group{
		{access: public, routes: []route{
			{http.MethodGet, "/", h.Home},
			{http.MethodGet, "/verify-email", h.VerifyEmail},
			{http.MethodPost, "/verify-email/resend", h.ResendVerification},
			{http.MethodGet, "/reset-password", h.ResetPasswordForm},
			{http.MethodPost, "/reset-password", h.ResetPassword},
		}},
		{access: guests, routes: []route{
			{http.MethodGet, "/login", h.LoginForm},
			{http.MethodPost, "/login", h.Login},
			{http.MethodGet, "/register", h.RegisterForm},
			{http.MethodPost, "/register", h.Register},
			{http.MethodGet, "/forgot-password", h.ForgotPasswordForm},
			{http.MethodPost, "/forgot-password", h.ForgotPassword},
		}},
		{access: signedIn, routes: []route{
			{http.MethodGet, "/dashboard", h.Dashboard},
			{http.MethodPost, "/logout", h.Logout},
			{http.MethodGet, "/account/password", h.ChangePasswordForm},
			{http.MethodPost, "/account/password", h.ChangePassword},
		}},
		{prefix: "/admin", access: only(models.RoleAdmin), routes: []route{
			{http.MethodGet, "/subjects", h.ListSubjects},
			{http.MethodGet, "/subjects/new", h.NewSubject},
			{http.MethodPost, "/subjects", h.CreateSubject},
			{http.MethodPost, "/subjects/bulk", h.BulkSubjects},
			{http.MethodGet, "/subjects/export", h.ExportSubjects},
			{http.MethodGet, "/subjects/:id", h.ShowSubject},
			{http.MethodPost, "/subjects/:id", h.UpdateSubject},
			{http.MethodGet, "/subjects/:id/edit", h.EditSubject},
			{http.MethodGet, "/subjects/:id/delete", h.ConfirmDeleteSubject},
			{http.MethodPost, "/subjects/:id/delete", h.DeleteSubject},
			{http.MethodGet, "/assignments", h.ListAssignments},
			{http.MethodPost, "/assignments", h.CreateAssignment},
			{http.MethodPost, "/assignments/:id", h.UpdateAssignment},
			{http.MethodPost, "/assignments/:id/remove", h.RemoveAssignment},
		}},
		{prefix: "/faculty", access: only(models.RoleFaculty), routes: []route{
			{http.MethodGet, "/subjects", h.FacultySubjects},
		}},
	}
}

func apiRoutes(deps Dependencies) []group {
	return []group{
		{prefix: "/auth", access: public, routes: []route{
			{http.MethodPost, "/login", deps.Auth.Login},
		}},
		{prefix: "/auth", access: signedIn, routes: []route{
			{http.MethodGet, "/me", deps.Auth.Me},
		}},
		{prefix: "/subjects", access: only(models.RoleAdmin), routes: []route{
			{http.MethodGet, "", deps.Subjects.List},
			{http.MethodPost, "", deps.Subjects.Create},
			{http.MethodGet, "/statistics", deps.Subjects.Statistics},
			{http.MethodGet, "/departments", deps.Subjects.Departments},
			{http.MethodPost, "/bulk", deps.Subjects.Bulk},
			{http.MethodGet, "/:id", deps.Subjects.Get},
			{http.MethodPut, "/:id", deps.Subjects.Update},
			{http.MethodDelete, "/:id", deps.Subjects.Delete},
		}},
		{prefix: "/assignments", access: only(models.RoleAdmin, models.RoleFaculty), routes: []route{
			{http.MethodGet, "", deps.Assignments.List},
		}},
		{prefix: "/assignments", access: only(models.RoleAdmin), routes: []route{
			{http.MethodPost, "", deps.Assignments.Create},
			{http.MethodPut, "/:id", deps.Assignments.Update},
			{http.MethodDelete, "/:id", deps.Assignments.Delete},
		}},
		{prefix: "/metrics", access: only(models.RoleAdmin), routes: []route{
			{http.MethodGet, "/summary", deps.Observability.Snapshot},
		}},
	}
}
