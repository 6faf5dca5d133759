package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
)

// Flash texts of the authentication flow.
const (
	MessageSignedOut        = "You have been signed out."
	MessageRegistered       = "Registration successful. Check your email for a verification link."
	MessageEmailVerified    = "Email verified. You can now sign in."
	MessageVerificationSent = "If that address still needs verification, a new link is on its way."
	MessageResetSent        = "If an account exists for that address, a password reset link is on its way."
	MessagePasswordReset    = "Password updated. Sign in with your new password."
	MessagePasswordChanged  = "Password changed."
)

type loginData struct {
	Email      string
	Next       string
	Unverified bool
}

type registerData struct {
	Form  dto.RegisterRequest
	Roles []models.UserRole
}

type tokenData struct {
	Token string
	Email string
}

// LoginForm renders the sign-in page.
func (h *Handler) LoginForm(c *gin.Context) {
	r := h.request(c)
	r.render(http.StatusOK, "login", Page{Title: "Sign in", Data: loginData{Next: safeNext(c.Query("next"))}})
}

// Login authenticates the submitted credentials and starts a session.
func (h *Handler) Login(c *gin.Context) {
	r := h.request(c)
	var req dto.LoginRequest
	_ = c.ShouldBind(&req)
	next := safeNext(c.PostForm("next"))

	user, err := h.auth.Login(r.ctx(), req, r.actor())
	if err != nil {
		page := Page{Title: "Sign in"}
		status := r.failure(err, &page)
		data := loginData{Email: req.Email, Next: next}
		data.Unverified = appErrors.FromError(err).Code == appErrors.ErrEmailNotVerified.Code
		page.Data = data
		r.render(status, "login", page)
		return
	}

	if err := session.SignIn(c, models.IdentityFromUser(user)); err != nil {
		h.logger.Error("failed to start session", zap.String("user_id", user.ID), zap.Error(err))
		r.render(http.StatusInternalServerError, "login", Page{Title: "Sign in", Error: MessageGeneric, Data: loginData{Email: req.Email, Next: next}})
		return
	}
	if next == "" {
		next = middleware.DashboardPath
	}
	r.redirect(next, session.FlashSuccess, "Welcome back, "+user.FullName+".")
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	r := h.request(c)
	h.auth.Logout(r.ctx(), r.actor())
	if err := session.SignOut(c); err != nil {
		h.logger.Warn("failed to clear session", zap.Error(err))
	}
	r.redirect(middleware.LoginPath, session.FlashInfo, MessageSignedOut)
}

// RegisterForm renders the self registration page.
func (h *Handler) RegisterForm(c *gin.Context) {
	r := h.request(c)
	form := dto.RegisterRequest{Role: c.DefaultQuery("role", string(models.RoleFaculty))}
	r.render(http.StatusOK, "register", Page{Title: "Register", Data: registerData{Form: form, Roles: registrationRoles}})
}

var registrationRoles = []models.UserRole{models.RoleFaculty, models.RoleStudent}

// Register creates a faculty or student account.
func (h *Handler) Register(c *gin.Context) {
	r := h.request(c)
	var req dto.RegisterRequest
	_ = c.ShouldBind(&req)

	if _, err := h.auth.Register(r.ctx(), req, r.actor()); err != nil {
		page := Page{Title: "Register"}
		status := r.failure(err, &page)
		req.Password, req.ConfirmPassword = "", ""
		page.Data = registerData{Form: req, Roles: registrationRoles}
		r.render(status, "register", page)
		return
	}
	r.redirect(middleware.LoginPath, session.FlashSuccess, MessageRegistered)
}

// VerifyEmail confirms the address behind a verification link.
func (h *Handler) VerifyEmail(c *gin.Context) {
	r := h.request(c)
	if _, err := h.auth.VerifyEmail(r.ctx(), c.Query("token"), r.actor()); err != nil {
		page := Page{Title: "Verify email"}
		status := r.failure(err, &page)
		page.Data = tokenData{}
		r.render(status, "verify_email", page)
		return
	}
	target := middleware.LoginPath
	if r.identity != nil {
		target = middleware.DashboardPath
	}
	r.redirect(target, session.FlashSuccess, MessageEmailVerified)
}

// ResendVerification queues a new verification link.
func (h *Handler) ResendVerification(c *gin.Context) {
	r := h.request(c)
	var req dto.ResendVerificationRequest
	_ = c.ShouldBind(&req)
	if err := h.auth.ResendVerification(r.ctx(), req); err != nil {
		page := Page{Title: "Verify email"}
		status := r.failure(err, &page)
		page.Data = tokenData{Email: req.Email}
		r.render(status, "verify_email", page)
		return
	}
	r.redirect(middleware.LoginPath, session.FlashInfo, MessageVerificationSent)
}

// ForgotPasswordForm renders the reset request page.
func (h *Handler) ForgotPasswordForm(c *gin.Context) {
	r := h.request(c)
	r.render(http.StatusOK, "forgot_password", Page{Title: "Forgot password", Data: tokenData{}})
}

// ForgotPassword issues a reset link.
func (h *Handler) ForgotPassword(c *gin.Context) {
	r := h.request(c)
	var req dto.ForgotPasswordRequest
	_ = c.ShouldBind(&req)
	if err := h.auth.ForgotPassword(r.ctx(), req, r.actor()); err != nil {
		page := Page{Title: "Forgot password"}
		status := r.failure(err, &page)
		page.Data = tokenData{Email: req.Email}
		r.render(status, "forgot_password", page)
		return
	}
	r.redirect(middleware.LoginPath, session.FlashInfo, MessageResetSent)
}

// ResetPasswordForm renders the new password page for a reset link.
func (h *Handler) ResetPasswordForm(c *gin.Context) {
	r := h.request(c)
	page := Page{Title: "Reset password", Data: tokenData{Token: c.Query("token")}}
	if c.Query("token") == "" {
		page.Error = "This reset link is incomplete. Request a new one."
	}
	r.render(http.StatusOK, "reset_password", page)
}

// ResetPassword redeems a reset token.
func (h *Handler) ResetPassword(c *gin.Context) {
	r := h.request(c)
	var req dto.ResetPasswordRequest
	_ = c.ShouldBind(&req)
	if err := h.auth.ResetPassword(r.ctx(), req, r.actor()); err != nil {
		page := Page{Title: "Reset password"}
		status := r.failure(err, &page)
		page.Data = tokenData{Token: req.Token}
		r.render(status, "reset_password", page)
		return
	}
	r.redirect(middleware.LoginPath, session.FlashSuccess, MessagePasswordReset)
}

// ChangePasswordForm renders the account password page.
func (h *Handler) ChangePasswordForm(c *gin.Context) {
	r := h.request(c)
	r.render(http.StatusOK, "change_password", Page{Title: "Change password", Nav: navAccount})
}

// ChangePassword updates the password of the signed-in user.
func (h *Handler) ChangePassword(c *gin.Context) {
	r := h.request(c)
	var req dto.ChangePasswordRequest
	_ = c.ShouldBind(&req)
	if err := h.auth.ChangePassword(r.ctx(), r.identity.UserID, req, r.actor()); err != nil {
		page := Page{Title: "Change password", Nav: navAccount}
		status := r.failure(err, &page)
		r.render(status, "change_password", page)
		return
	}
	r.redirect(middleware.DashboardPath, session.FlashSuccess, MessagePasswordChanged)
}

type dashboardData struct {
	Statistics  *models.SubjectStatistics
	Metrics     *models.SystemMetrics
	Assignments []models.FacultyAssignmentView
}

// Dashboard renders the landing page of the signed-in user's role.
func (h *Handler) Dashboard(c *gin.Context) {
	r := h.request(c)
	page := Page{Title: "Dashboard", Nav: navDashboard}
	var data dashboardData

	switch {
	case r.identity.HasRole(models.RoleAdmin):
		stats, err := h.subjects.Statistics(r.ctx())
		if err != nil {
			r.render(r.failure(err, &page), "dashboard", page)
			return
		}
		data.Statistics = stats
		if h.metrics != nil {
			snapshot := h.metrics.Snapshot()
			data.Metrics = &snapshot
		}
	case r.identity.HasRole(models.RoleFaculty):
		assignments, err := h.assignments.ListForFaculty(r.ctx(), r.identity.UserID)
		if err != nil {
			r.render(r.failure(err, &page), "dashboard", page)
			return
		}
		data.Assignments = assignments
	}
	page.Data = data
	r.render(http.StatusOK, "dashboard", page)
}

// Home sends visitors to their dashboard.
func (h *Handler) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, middleware.DashboardPath)
}
