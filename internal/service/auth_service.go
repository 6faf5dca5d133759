package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/repository"
	"github.com/noah-isme/timetable-admin/pkg/dberrors"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/signer"
)

// PurposeVerifyEmail scopes signed email verification tokens.
const PurposeVerifyEmail = "verify-email"

var authMessages = fieldMessages{
	"email.required":             "Email is required",
	"email.email":                "Enter a valid email address",
	"password.required":          "Password is required",
	"password.min":               "Password must be at least 8 characters",
	"password.max":               "Password must be at most 72 characters",
	"confirm_password.required":  "Confirm your password",
	"confirm_password.eqfield":   "Passwords do not match",
	"full_name":                  "Full name must be between 3 and 150 characters",
	"role":                       "Choose whether you are registering as faculty or student",
	"department.required":        "Department is required",
	"employee_id.required_if":    "Employee ID is required for faculty",
	"student_number.required_if": "Student number is required for students",
	"token":                      "Reset token is missing",
	"current_password":           "Current password is required",
	"new_password.required":      "New password is required",
	"new_password.min":           "New password must be at least 8 characters",
}

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmployeeIDExists(ctx context.Context, employeeID string) (bool, error)
	StudentNumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	CreateFacultyProfile(ctx context.Context, profile *models.FacultyProfile) error
	CreateStudentProfile(ctx context.Context, profile *models.StudentProfile) error
	PromoteAdmin(ctx context.Context, id, passwordHash string, ts time.Time) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string, ts time.Time) (bool, error)
}

type passwordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	FindByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id string, ts time.Time) (bool, error)
	InvalidateForUser(ctx context.Context, userID string, ts time.Time) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type accountMailer interface {
	SendVerification(ctx context.Context, user *models.User, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error
}

type tokenSigner interface {
	Sign(purpose, subject string) (string, time.Time, error)
	Verify(purpose, token string) (string, time.Time, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	JWTSecret            string
	JWTExpiry            time.Duration
	Issuer               string
	ResetTTL             time.Duration
	RequireVerifiedEmail bool
	AllowedEmailDomains  []string
	BcryptCost           int
}

// AuthService provides login, registration and account recovery.
type AuthService struct {
	users     authUserRepository
	resets    passwordResetRepository
	tx        transactor
	audit     auditTrail
	mail      accountMailer
	signer    tokenSigner
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, resets passwordResetRepository, tx transactor, audit auditRecorder, mail accountMailer, tokens tokenSigner, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if tx == nil {
		tx = directTx{}
	}
	if config.JWTExpiry <= 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:     users,
		resets:    resets,
		tx:        tx,
		audit:     auditTrail{repo: audit, logger: logger},
		mail:      mail,
		signer:    tokens,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and returns the account.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest, actor models.Actor) (*models.User, error) {
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload", authMessages)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		s.logger.Error("load user for login failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if s.config.RequireVerifiedEmail && user.Role != models.RoleAdmin && !user.EmailVerified() {
		return nil, appErrors.Clone(appErrors.ErrEmailNotVerified, "verify your email address before signing in")
	}

	now := timeNow()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	user.LastLogin = &now

	actor.UserID = user.ID
	s.audit.record(ctx, actor, models.AuditActionLogin, models.AuditResourceUser, user.ID, nil, map[string]string{"status": "success"})
	return user, nil
}

// Logout records the end of a session.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor) {
	if actor.UserID == "" {
		return
	}
	s.audit.record(ctx, actor, models.AuditActionLogout, models.AuditResourceUser, actor.UserID, nil, nil)
}

// CurrentUser reloads an account, failing when it was removed or deactivated.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	if !isRowID(id) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return user, nil
}

// IssueToken signs an API access token for user.
func (s *AuthService) IssueToken(user *models.User) (*models.AccessToken, error) {
	if s.config.JWTSecret == "" {
		return nil, appErrors.Internal(errors.New("jwt secret not configured"), "failed to create access token")
	}
	issuedAt := timeNow()
	expiresAt := issuedAt.Add(s.config.JWTExpiry)
	identity := models.IdentityFromUser(user)
	claims := &models.JWTClaims{
		UserID:     identity.UserID,
		Role:       identity.Role,
		Email:      identity.Email,
		FullName:   identity.FullName,
		Department: identity.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	return &models.AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.JWTExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        identity,
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Register creates a faculty or student account and sends the verification email.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest, actor models.Actor) (*models.User, error) {
	req = normaliseRegistration(req)
	fields, err := s.registrationFields(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := mergeFields(s.structErrors(req), "invalid registration", fields...); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.UserRole(req.Role),
		Department:   req.Department,
		Active:       true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if user.Role == models.RoleFaculty {
			return s.users.CreateFacultyProfile(ctx, &models.FacultyProfile{
				UserID:      user.ID,
				EmployeeID:  req.EmployeeID,
				Designation: req.Designation,
				Phone:       req.Phone,
			})
		}
		return s.users.CreateStudentProfile(ctx, &models.StudentProfile{
			UserID:        user.ID,
			StudentNumber: req.StudentNumber,
			YearLevel:     atoiOrZero(req.YearLevel),
			Semester:      atoiOrZero(req.Semester),
		})
	})
	if err != nil {
		switch {
		case dberrors.IsUniqueViolation(err, repository.UserEmailConstraint):
			return nil, appErrors.Validation("invalid registration", appErrors.FieldError{Field: "email", Message: "An account with this email already exists"})
		case dberrors.IsUniqueViolation(err, repository.EmployeeIDConstraint):
			return nil, appErrors.Validation("invalid registration", appErrors.FieldError{Field: "employee_id", Message: "Employee ID is already registered"})
		case dberrors.IsUniqueViolation(err, repository.StudentNumberConstraint):
			return nil, appErrors.Validation("invalid registration", appErrors.FieldError{Field: "student_number", Message: "Student number is already registered"})
		}
		s.logger.Error("register user failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create account")
	}

	s.sendVerification(ctx, user)
	actor.UserID = user.ID
	s.audit.record(ctx, actor, models.AuditActionRegister, models.AuditResourceUser, user.ID, nil, map[string]string{"email": user.Email, "role": string(user.Role)})
	return user, nil
}

func normaliseRegistration(req dto.RegisterRequest) dto.RegisterRequest {
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = normaliseEmail(req.Email)
	req.Department = strings.TrimSpace(req.Department)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.Designation = strings.TrimSpace(req.Designation)
	req.Phone = strings.TrimSpace(req.Phone)
	req.StudentNumber = strings.TrimSpace(req.StudentNumber)
	return req
}

func (s *AuthService) structErrors(v interface{}) error {
	if err := s.validator.Struct(v); err != nil {
		return validationError(err, "invalid registration", authMessages)
	}
	return nil
}

// registrationFields checks rules the struct tags cannot express: student ranges, allowed email
// domains and uniqueness.
func (s *AuthService) registrationFields(ctx context.Context, req dto.RegisterRequest) ([]appErrors.FieldError, error) {
	var fields []appErrors.FieldError

	if req.Role == string(models.RoleStudent) {
		if n, err := strconv.Atoi(strings.TrimSpace(req.YearLevel)); err != nil || n < 1 || n > 6 {
			fields = append(fields, appErrors.FieldError{Field: "year_level", Message: "Year level must be between 1 and 6"})
		}
		if n, err := strconv.Atoi(strings.TrimSpace(req.Semester)); err != nil || n < 1 || n > 12 {
			fields = append(fields, appErrors.FieldError{Field: "semester", Message: "Semester must be between 1 and 12"})
		}
	}

	if req.Email != "" && len(s.config.AllowedEmailDomains) > 0 && !emailDomainAllowed(req.Email, s.config.AllowedEmailDomains) {
		fields = append(fields, appErrors.FieldError{Field: "email", Message: "Use your institutional email address"})
	}

	if req.Email != "" {
		exists, err := s.users.EmailExists(ctx, req.Email)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check email")
		}
		if exists {
			fields = append(fields, appErrors.FieldError{Field: "email", Message: "An account with this email already exists"})
		}
	}
	if req.Role == string(models.RoleFaculty) && req.EmployeeID != "" {
		exists, err := s.users.EmployeeIDExists(ctx, req.EmployeeID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check employee id")
		}
		if exists {
			fields = append(fields, appErrors.FieldError{Field: "employee_id", Message: "Employee ID is already registered"})
		}
	}
	if req.Role == string(models.RoleStudent) && req.StudentNumber != "" {
		exists, err := s.users.StudentNumberExists(ctx, req.StudentNumber)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check student number")
		}
		if exists {
			fields = append(fields, appErrors.FieldError{Field: "student_number", Message: "Student number is already registered"})
		}
	}
	return fields, nil
}

func emailDomainAllowed(email string, domains []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, allowed := range domains {
		if strings.EqualFold(domain, strings.TrimPrefix(allowed, "@")) {
			return true
		}
	}
	return false
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	if s.signer == nil || s.mail == nil {
		return
	}
	token, expiresAt, err := s.signer.Sign(PurposeVerifyEmail, user.ID)
	if err != nil {
		s.logger.Error("sign verification token failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.mail.SendVerification(ctx, user, token, expiresAt); err != nil {
		s.logger.Warn("failed to queue verification email", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// VerifyEmail confirms the address encoded in a signed verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, actor models.Actor) (*models.User, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "verification link is invalid")
	}
	userID, _, err := s.signer.Verify(PurposeVerifyEmail, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, signer.ErrExpired) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "verification link has expired, request a new one")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "verification link is invalid")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "verification link is invalid")
		}
		s.logger.Error("load user for verification failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if user.EmailVerified() {
		return user, nil
	}

	now := timeNow()
	if _, err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		s.logger.Error("mark email verified failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to verify email")
	}
	user.EmailVerifiedAt = &now

	actor.UserID = user.ID
	s.audit.record(ctx, actor, models.AuditActionEmailVerify, models.AuditResourceUser, user.ID, nil, map[string]string{"email": user.Email})
	return user, nil
}

// ResendVerification sends a fresh verification link. Unknown or verified addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, req dto.ResendVerificationRequest) error {
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid request", authMessages)
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		s.logger.Error("load user for resend failed", zap.Error(err))
		return appErrors.Internal(err, "failed to load user")
	}
	if !user.Active || user.EmailVerified() {
		return nil
	}
	s.sendVerification(ctx, user)
	return nil
}

// ForgotPassword issues a single use reset token. The outcome is identical whether or not the
// address belongs to an account.
func (s *AuthService) ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest, actor models.Actor) error {
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid forgot password payload", authMessages)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		s.logger.Error("load user for password reset failed", zap.Error(err))
		return appErrors.Internal(err, "failed to start password reset")
	}
	if !user.Active {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return appErrors.Internal(err, "failed to create reset token")
	}
	now := timeNow()
	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.config.ResetTTL),
		CreatedAt: now,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.resets.InvalidateForUser(ctx, user.ID, now); err != nil {
			return err
		}
		return s.resets.Create(ctx, reset)
	})
	if err != nil {
		s.logger.Error("store password reset failed", zap.Error(err))
		return appErrors.Internal(err, "failed to start password reset")
	}

	if s.mail != nil {
		if err := s.mail.SendPasswordReset(ctx, user, token, reset.ExpiresAt); err != nil {
			s.logger.Warn("failed to queue password reset email", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	actor.UserID = user.ID
	s.audit.record(ctx, actor, models.AuditActionPasswordResetRequest, models.AuditResourceUser, user.ID, nil, nil)
	return nil
}

// ResetPassword redeems a reset token and stores the new password.
func (s *AuthService) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest, actor models.Actor) error {
	req.Token = strings.TrimSpace(req.Token)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid reset password payload", authMessages)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}

	var userID string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reset, err := s.resets.FindByTokenHash(ctx, hashToken(req.Token))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidToken, "reset link is invalid")
			}
			return appErrors.Internal(err, "failed to load reset token")
		}
		now := timeNow()
		if !reset.Usable(now) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "reset link is invalid or has expired")
		}
		used, err := s.resets.MarkUsed(ctx, reset.ID, now)
		if err != nil {
			return appErrors.Internal(err, "failed to consume reset token")
		}
		if !used {
			return appErrors.Clone(appErrors.ErrInvalidToken, "reset link is invalid or has expired")
		}
		if err := s.users.UpdatePassword(ctx, reset.UserID, string(hash), now); err != nil {
			return appErrors.Internal(err, "failed to update password")
		}
		if err := s.resets.InvalidateForUser(ctx, reset.UserID, now); err != nil {
			return appErrors.Internal(err, "failed to invalidate reset tokens")
		}
		userID = reset.UserID
		return nil
	})
	if err != nil {
		logFailure(s.logger, "reset password", err)
		return err
	}

	actor.UserID = userID
	s.audit.record(ctx, actor, models.AuditActionPasswordReset, models.AuditResourceUser, userID, nil, nil)
	return nil
}

// ChangePassword replaces the password of a signed in user after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest, actor models.Actor) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid change password payload", authMessages)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Validation("invalid change password payload", appErrors.FieldError{Field: "current_password", Message: "Current password is incorrect"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), timeNow()); err != nil {
		s.logger.Error("update password failed", zap.Error(err))
		return appErrors.Internal(err, "failed to update password")
	}

	actor.UserID = userID
	s.audit.record(ctx, actor, models.AuditActionPasswordChange, models.AuditResourceUser, userID, nil, nil)
	return nil
}

// PurgeExpiredResets deletes reset tokens that can no longer be redeemed.
func (s *AuthService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	purged, err := s.resets.DeleteExpired(ctx, timeNow())
	if err != nil {
		return 0, fmt.Errorf("purge password resets: %w", err)
	}
	if purged > 0 {
		s.logger.Info("purged password resets", zap.Int64("count", purged))
	}
	return purged, nil
}

// SchedulePurge registers PurgeExpiredResets on c using a standard cron spec or descriptor.
func (s *AuthService) SchedulePurge(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := s.PurgeExpiredResets(runCtx); err != nil {
			s.logger.Error("scheduled password reset purge failed", zap.Error(err))
		}
	})
}

// EnsureAdmin creates an administrator, or promotes and resets the account when email exists.
// The boolean reports whether a new account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, fullName string) (*models.User, bool, error) {
	email = normaliseEmail(email)
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = "Administrator"
	}
	var fields []appErrors.FieldError
	if err := s.validator.Var(email, "required,email"); err != nil {
		fields = append(fields, appErrors.FieldError{Field: "email", Message: "Enter a valid email address"})
	}
	if len(password) < 8 || len(password) > 72 {
		fields = append(fields, appErrors.FieldError{Field: "password", Message: "Password must be between 8 and 72 characters"})
	}
	if len(fields) > 0 {
		return nil, false, appErrors.Validation("invalid administrator", fields...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to hash password")
	}
	now := timeNow()

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.PromoteAdmin(ctx, existing.ID, string(hash), now); err != nil {
			return nil, false, appErrors.Internal(err, "failed to promote administrator")
		}
		existing.Role = models.RoleAdmin
		existing.Active = true
		if existing.EmailVerifiedAt == nil {
			existing.EmailVerifiedAt = &now
		}
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, appErrors.Internal(err, "failed to load user")
	}

	admin := &models.User{
		Email:           email,
		PasswordHash:    string(hash),
		FullName:        fullName,
		Role:            models.RoleAdmin,
		Active:          true,
		EmailVerifiedAt: &now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, false, appErrors.Internal(err, "failed to create administrator")
	}
	return admin, true, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
