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

// SubjectCodeConstraint is the partial unique index enforcing one active row per code.
const SubjectCodeConstraint = "subjects_code_active_key"

const subjectColumns = `s.id, s.subject_code, s.subject_name, s.credits, s.duration_hours, s.type, s.department, s.semester, s.year_level, s.prerequisites, s.description, s.syllabus, s.is_active, s.created_by, s.updated_by, s.created_at, s.updated_at`

const facultyCountColumn = `(SELECT COUNT(*) FROM faculty_subjects fs WHERE fs.subject_id = s.id AND fs.is_active) AS faculty_count`

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *database.Gateway
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *database.Gateway) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func subjectConditions(filter models.SubjectFilter) sq.And {
	conds := sq.And{}
	if filter.Department != "" {
		conds = append(conds, sq.Eq{"s.department": filter.Department})
	}
	if filter.Type != "" {
		conds = append(conds, sq.Eq{"s.type": filter.Type})
	}
	if filter.YearLevel > 0 {
		conds = append(conds, sq.Eq{"s.year_level": filter.YearLevel})
	}
	if filter.Semester > 0 {
		conds = append(conds, sq.Eq{"s.semester": filter.Semester})
	}
	switch filter.Status {
	case models.SubjectStatusActive:
		conds = append(conds, sq.Eq{"s.is_active": true})
	case models.SubjectStatusInactive:
		conds = append(conds, sq.Eq{"s.is_active": false})
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		conds = append(conds, sq.Or{
			sq.ILike{"s.subject_code": pattern},
			sq.ILike{"s.subject_name": pattern},
			sq.ILike{"s.department": pattern},
		})
	}
	return conds
}

var subjectSorts = map[string]string{
	"code":       "s.subject_code",
	"name":       "s.subject_name",
	"department": "s.department",
	"credits":    "s.credits",
	"year_level": "s.year_level",
	"semester":   "s.semester",
	"created_at": "s.created_at",
	"updated_at": "s.updated_at",
}

func subjectOrderBy(filter models.SubjectFilter) string {
	column, ok := subjectSorts[filter.SortBy]
	if !ok {
		column = "s.subject_code"
	}
	return fmt.Sprintf("%s %s, s.id ASC", column, sortOrder(filter.SortOrder, "ASC"))
}

// List returns subjects matching filters together with the total match count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, int, error) {
	conds := subjectConditions(filter)
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query, args, err := psql.Select(subjectColumns, facultyCountColumn).
		From("subjects s").
		Where(conds).
		OrderBy(subjectOrderBy(filter)).
		Limit(uint64(size)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list subjects: %w", err)
	}
	subjects := []models.SubjectListItem{}
	if err := r.db.Select(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("subjects s").Where(conds).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count subjects: %w", err)
	}
	var total int
	if err := r.db.Get(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// ListAll returns every subject matching filters without pagination, for exports.
func (r *SubjectRepository) ListAll(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, error) {
	query, args, err := psql.Select(subjectColumns, facultyCountColumn).
		From("subjects s").
		Where(subjectConditions(filter)).
		OrderBy(subjectOrderBy(filter)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build export subjects: %w", err)
	}
	subjects := []models.SubjectListItem{}
	if err := r.db.Select(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("export subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects s WHERE s.id = $1`
	var subject models.Subject
	if err := r.db.Get(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindByIDs returns the subjects among ids that exist, locking them for the current transaction.
func (r *SubjectRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	builder := psql.Select(subjectColumns).From("subjects s").Where(sq.Eq{"s.id": ids}).OrderBy("s.subject_code ASC")
	if database.InTx(ctx) {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find subjects: %w", err)
	}
	subjects := []models.Subject{}
	if err := r.db.Select(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("find subjects: %w", err)
	}
	return subjects, nil
}

// ExistsActiveCode reports whether an active subject other than excludeID uses code.
func (r *SubjectRepository) ExistsActiveCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE UPPER(subject_code) = UPPER($1) AND is_active"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.Get(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, subject_code, subject_name, credits, duration_hours, type, department, semester, year_level, prerequisites, description, syllabus, is_active, created_by, updated_by, created_at, updated_at)
VALUES (:id, :subject_code, :subject_name, :credits, :duration_hours, :type, :department, :semester, :year_level, :prerequisites, :description, :syllabus, :is_active, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExec(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies the editable columns of a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET subject_code = :subject_code, subject_name = :subject_name, credits = :credits, duration_hours = :duration_hours, type = :type, department = :department, semester = :semester, year_level = :year_level, prerequisites = :prerequisites, description = :description, syllabus = :syllabus, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	affected, err := r.db.NamedExec(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive flips is_active for ids and returns the number of rows changed.
func (r *SubjectRepository) SetActive(ctx context.Context, ids []string, active bool, actorID string) (int64, error) {
	query, args, err := psql.Update("subjects").
		Set("is_active", active).
		Set("updated_by", nullableString(actorID)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build set subject active: %w", err)
	}
	affected, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set subject active: %w", err)
	}
	return affected, nil
}

// Delete removes a subject record.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	affected, err := r.db.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Dependents counts the active rows that block permanent deletion of a subject.
func (r *SubjectRepository) Dependents(ctx context.Context, id string) (models.SubjectDependents, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM faculty_subjects WHERE subject_id = $1 AND is_active) AS active_assignments,
	(SELECT COUNT(*) FROM enrollments WHERE subject_id = $1 AND status = 'enrolled') AS enrollments,
	(SELECT COUNT(*) FROM timetable_entries WHERE subject_id = $1 AND is_active) AS timetable_entries`
	var deps models.SubjectDependents
	if err := r.db.Get(ctx, &deps, query, id); err != nil {
		return deps, fmt.Errorf("count subject dependents: %w", err)
	}
	return deps, nil
}

// Statistics aggregates the catalogue in a single pass.
func (r *SubjectRepository) Statistics(ctx context.Context) (*models.SubjectStatistics, error) {
	const query = `SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE s.is_active) AS active,
	COUNT(*) FILTER (WHERE NOT s.is_active) AS inactive,
	COUNT(*) FILTER (WHERE s.is_active AND s.type = 'theory') AS theory,
	COUNT(*) FILTER (WHERE s.is_active AND s.type = 'practical') AS practical,
	COUNT(*) FILTER (WHERE s.is_active AND s.type = 'lab') AS lab,
	COUNT(DISTINCT s.department) FILTER (WHERE s.is_active) AS departments,
	COUNT(*) FILTER (WHERE s.is_active AND EXISTS (SELECT 1 FROM faculty_subjects fs WHERE fs.subject_id = s.id AND fs.is_active)) AS with_faculty,
	COALESCE(AVG(s.credits) FILTER (WHERE s.is_active), 0) AS average_credits
FROM subjects s`
	var stats models.SubjectStatistics
	if err := r.db.Get(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("subject statistics: %w", err)
	}
	return &stats, nil
}

// Departments returns the distinct departments of active subjects.
func (r *SubjectRepository) Departments(ctx context.Context) ([]string, error) {
	departments := []string{}
	if err := r.db.Select(ctx, &departments, `SELECT DISTINCT department FROM subjects WHERE is_active ORDER BY department ASC`); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
