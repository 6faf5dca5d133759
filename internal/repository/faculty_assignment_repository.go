package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/database"
)

// AssignmentPairConstraint is the partial unique index allowing one active row per faculty and subject.
const AssignmentPairConstraint = "faculty_subjects_active_pair_key"

const assignmentViewColumns = `fs.id, fs.faculty_id, fs.subject_id, fs.max_students, fs.assigned_by, fs.notes, fs.is_active, fs.assigned_at, fs.updated_at,
u.full_name AS faculty_name, u.email AS faculty_email, u.department AS faculty_department,
s.subject_code, s.subject_name, s.department AS subject_department, s.credits, s.type AS subject_type`

const assignmentViewFrom = `faculty_subjects fs JOIN users u ON u.id = fs.faculty_id JOIN subjects s ON s.id = fs.subject_id`

// FacultyAssignmentRepository persists faculty_subjects rows.
type FacultyAssignmentRepository struct {
	db *database.Gateway
}

// NewFacultyAssignmentRepository constructs the repository.
func NewFacultyAssignmentRepository(db *database.Gateway) *FacultyAssignmentRepository {
	return &FacultyAssignmentRepository{db: db}
}

func assignmentConditions(filter models.FacultyAssignmentFilter) sq.And {
	conds := sq.And{}
	if filter.Department != "" {
		conds = append(conds, sq.Eq{"s.department": filter.Department})
	}
	if filter.FacultyID != "" {
		conds = append(conds, sq.Eq{"fs.faculty_id": filter.FacultyID})
	}
	if filter.SubjectID != "" {
		conds = append(conds, sq.Eq{"fs.subject_id": filter.SubjectID})
	}
	if filter.ActiveOnly {
		conds = append(conds, sq.Eq{"fs.is_active": true})
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		conds = append(conds, sq.Or{
			sq.ILike{"u.full_name": pattern},
			sq.ILike{"s.subject_code": pattern},
			sq.ILike{"s.subject_name": pattern},
		})
	}
	return conds
}

// List returns assignments matching filter with the total count.
func (r *FacultyAssignmentRepository) List(ctx context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, int, error) {
	conds := assignmentConditions(filter)
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query, args, err := psql.Select(assignmentViewColumns).
		From(assignmentViewFrom).
		Where(conds).
		OrderBy("fs.is_active DESC", "s.subject_code ASC", "u.full_name ASC").
		Limit(uint64(size)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list assignments: %w", err)
	}
	views := []models.FacultyAssignmentView{}
	if err := r.db.Select(ctx, &views, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(assignmentViewFrom).Where(conds).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count assignments: %w", err)
	}
	var total int
	if err := r.db.Get(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return views, total, nil
}

// ListBySubject returns the active assignments of a subject.
func (r *FacultyAssignmentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.FacultyAssignmentView, error) {
	query := `SELECT ` + assignmentViewColumns + ` FROM ` + assignmentViewFrom + ` WHERE fs.subject_id = $1 AND fs.is_active ORDER BY u.full_name ASC`
	views := []models.FacultyAssignmentView{}
	if err := r.db.Select(ctx, &views, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject assignments: %w", err)
	}
	return views, nil
}

// ListByFaculty returns the active assignments of a faculty member.
func (r *FacultyAssignmentRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyAssignmentView, error) {
	query := `SELECT ` + assignmentViewColumns + ` FROM ` + assignmentViewFrom + ` WHERE fs.faculty_id = $1 AND fs.is_active ORDER BY s.year_level ASC, s.subject_code ASC`
	views := []models.FacultyAssignmentView{}
	if err := r.db.Select(ctx, &views, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty assignments: %w", err)
	}
	return views, nil
}

// FindByID returns an assignment by id.
func (r *FacultyAssignmentRepository) FindByID(ctx context.Context, id string) (*models.FacultyAssignment, error) {
	const query = `SELECT id, faculty_id, subject_id, max_students, assigned_by, notes, is_active, assigned_at, updated_at FROM faculty_subjects WHERE id = $1`
	var assignment models.FacultyAssignment
	if err := r.db.Get(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ExistsActive reports whether the faculty member already holds an active assignment for the subject.
func (r *FacultyAssignmentRepository) ExistsActive(ctx context.Context, facultyID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM faculty_subjects WHERE faculty_id = $1 AND subject_id = $2 AND is_active LIMIT 1`
	var exists int
	if err := r.db.Get(ctx, &exists, query, facultyID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

// Create inserts a new assignment.
func (r *FacultyAssignmentRepository) Create(ctx context.Context, assignment *models.FacultyAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO faculty_subjects (id, faculty_id, subject_id, max_students, assigned_by, notes, is_active, assigned_at, updated_at)
VALUES (:id, :faculty_id, :subject_id, :max_students, :assigned_by, :notes, :is_active, :assigned_at, :updated_at)`
	if _, err := r.db.NamedExec(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update stores the editable fields of an assignment.
func (r *FacultyAssignmentRepository) Update(ctx context.Context, assignment *models.FacultyAssignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty_subjects SET max_students = :max_students, notes = :notes, updated_at = :updated_at WHERE id = :id`
	affected, err := r.db.NamedExec(ctx, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate ends an assignment while keeping the row for history.
func (r *FacultyAssignmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE faculty_subjects SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	affected, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FacultyOptions lists active faculty members, optionally restricted to a department.
func (r *FacultyAssignmentRepository) FacultyOptions(ctx context.Context, department string) ([]models.FacultyOption, error) {
	builder := psql.Select(
		"u.id", "u.full_name", "u.email", "u.department",
		"COALESCE(fp.employee_id, '') AS employee_id",
		"(SELECT COUNT(*) FROM faculty_subjects fs WHERE fs.faculty_id = u.id AND fs.is_active) AS active_assignments",
	).
		From("users u").
		LeftJoin("faculty_profiles fp ON fp.user_id = u.id").
		Where(sq.Eq{"u.role": string(models.RoleFaculty), "u.active": true}).
		OrderBy("u.full_name ASC")
	if department != "" {
		builder = builder.Where(sq.Eq{"u.department": department})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build faculty options: %w", err)
	}
	options := []models.FacultyOption{}
	if err := r.db.Select(ctx, &options, query, args...); err != nil {
		return nil, fmt.Errorf("list faculty options: %w", err)
	}
	return options, nil
}
