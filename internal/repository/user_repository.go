package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/database"
)

// Unique indexes guarding registration.
const (
	UserEmailConstraint     = "users_email_key"
	EmployeeIDConstraint    = "faculty_profiles_employee_id_key"
	StudentNumberConstraint = "student_profiles_student_number_key"
)

const userColumns = `id, email, password_hash, full_name, role, department, active, email_verified_at, last_login, created_at, updated_at`

// UserRepository provides database access for user accounts and profiles.
type UserRepository struct {
	db *database.Gateway
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *database.Gateway) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.Get(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.Get(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// EmailExists reports whether any account uses email.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`, email)
}

// EmployeeIDExists reports whether a faculty profile uses employeeID.
func (r *UserRepository) EmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM faculty_profiles WHERE employee_id = $1 LIMIT 1`, employeeID)
}

// StudentNumberExists reports whether a student profile uses number.
func (r *UserRepository) StudentNumberExists(ctx context.Context, number string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM student_profiles WHERE student_number = $1 LIMIT 1`, number)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var found int
	if err := r.db.Get(ctx, &found, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, department, active, email_verified_at, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :department, :active, :email_verified_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExec(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateFacultyProfile stores faculty specific fields.
func (r *UserRepository) CreateFacultyProfile(ctx context.Context, profile *models.FacultyProfile) error {
	const query = `INSERT INTO faculty_profiles (user_id, employee_id, designation, phone) VALUES (:user_id, :employee_id, :designation, :phone)`
	if _, err := r.db.NamedExec(ctx, query, profile); err != nil {
		return fmt.Errorf("create faculty profile: %w", err)
	}
	return nil
}

// CreateStudentProfile stores student specific fields.
func (r *UserRepository) CreateStudentProfile(ctx context.Context, profile *models.StudentProfile) error {
	const query = `INSERT INTO student_profiles (user_id, student_number, year_level, semester) VALUES (:user_id, :student_number, :year_level, :semester)`
	if _, err := r.db.NamedExec(ctx, query, profile); err != nil {
		return fmt.Errorf("create student profile: %w", err)
	}
	return nil
}

// PromoteAdmin resets an existing account to an active, verified administrator.
func (r *UserRepository) PromoteAdmin(ctx context.Context, id, passwordHash string, ts time.Time) error {
	const query = `UPDATE users SET role = $2, password_hash = $3, active = TRUE, email_verified_at = COALESCE(email_verified_at, $4), updated_at = $4 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, string(models.RoleAdmin), passwordHash, ts); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// MarkEmailVerified records the verification time once.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string, ts time.Time) (bool, error) {
	const query = `UPDATE users SET email_verified_at = $2, updated_at = $2 WHERE id = $1 AND email_verified_at IS NULL`
	affected, err := r.db.Exec(ctx, query, id, ts)
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	return affected > 0, nil
}
