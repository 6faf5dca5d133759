package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/repository"
	"github.com/noah-isme/timetable-admin/pkg/dberrors"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
)

// MessageDuplicateAssignment is reported when the faculty member already teaches the subject.
const MessageDuplicateAssignment = "Faculty is already assigned to this subject"

var assignmentMessages = fieldMessages{
	"faculty_id":      "Select a faculty member",
	"faculty_id.uuid": "Faculty member not found",
	"subject_id":      "Select a subject",
	"subject_id.uuid": "Subject not found",
	"max_students": "Maximum students must be between 1 and 200",
	"notes":        "Notes must be at most 500 characters",
}

type assignmentRepository interface {
	List(ctx context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, int, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.FacultyAssignmentView, error)
	FindByID(ctx context.Context, id string) (*models.FacultyAssignment, error)
	ExistsActive(ctx context.Context, facultyID, subjectID string) (bool, error)
	Create(ctx context.Context, assignment *models.FacultyAssignment) error
	Update(ctx context.Context, assignment *models.FacultyAssignment) error
	Deactivate(ctx context.Context, id string) error
	FacultyOptions(ctx context.Context, department string) ([]models.FacultyOption, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// FacultyAssignmentService manages which faculty members teach which subjects.
type FacultyAssignmentService struct {
	repo      assignmentRepository
	users     userFinder
	subjects  subjectFinder
	tx        transactor
	audit     auditTrail
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyAssignmentService constructs the service.
func NewFacultyAssignmentService(repo assignmentRepository, users userFinder, subjects subjectFinder, tx transactor, audit auditRecorder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FacultyAssignmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tx == nil {
		tx = directTx{}
	}
	return &FacultyAssignmentService{
		repo:      repo,
		users:     users,
		subjects:  subjects,
		tx:        tx,
		audit:     auditTrail{repo: audit, logger: logger},
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func duplicateAssignmentError() error {
	return appErrors.Validation("invalid assignment payload", appErrors.FieldError{Field: "subject_id", Message: MessageDuplicateAssignment})
}

// List returns one page of assignments.
func (s *FacultyAssignmentService) List(ctx context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if !filterIDsValid(filter.FacultyID, filter.SubjectID) {
		return []models.FacultyAssignmentView{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
	}
	views, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list assignments failed", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to list assignments")
	}
	return views, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListForFaculty returns the active assignments of one faculty member.
func (s *FacultyAssignmentService) ListForFaculty(ctx context.Context, facultyID string) ([]models.FacultyAssignmentView, error) {
	if !isRowID(facultyID) {
		return []models.FacultyAssignmentView{}, nil
	}
	views, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		s.logger.Error("list faculty assignments failed", zap.String("faculty_id", facultyID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	return views, nil
}

// FacultyOptions lists faculty members that can be assigned.
func (s *FacultyAssignmentService) FacultyOptions(ctx context.Context, department string) ([]models.FacultyOption, error) {
	options, err := s.repo.FacultyOptions(ctx, department)
	if err != nil {
		s.logger.Error("list faculty options failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list faculty")
	}
	return options, nil
}

// Assign links a faculty member to a subject.
func (s *FacultyAssignmentService) Assign(ctx context.Context, input dto.AssignmentInput, actor models.Actor) (*models.FacultyAssignment, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid assignment payload", assignmentMessages)
	}

	assignment := &models.FacultyAssignment{
		FacultyID:   input.FacultyID,
		SubjectID:   input.SubjectID,
		MaxStudents: input.MaxStudents,
		Notes:       input.Notes,
		IsActive:    true,
		AssignedBy:  optionalString(actor.UserID),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		fields, err := s.checkParties(ctx, input.FacultyID, input.SubjectID)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			return appErrors.Validation("invalid assignment payload", fields...)
		}

		exists, err := s.repo.ExistsActive(ctx, input.FacultyID, input.SubjectID)
		if err != nil {
			return appErrors.Internal(err, "failed to check assignment")
		}
		if exists {
			return duplicateAssignmentError()
		}
		if err := s.repo.Create(ctx, assignment); err != nil {
			if dberrors.IsUniqueViolation(err, repository.AssignmentPairConstraint) {
				return duplicateAssignmentError()
			}
			return appErrors.Internal(err, "failed to create assignment")
		}
		return nil
	})
	if err != nil {
		logFailure(s.logger, "assign faculty", err)
		return nil, err
	}

	s.audit.record(ctx, actor, models.AuditActionCreate, models.AuditResourceAssignment, assignment.ID, nil, assignment)
	s.afterMutation(ctx, models.AuditActionCreate)
	return assignment, nil
}

func (s *FacultyAssignmentService) checkParties(ctx context.Context, facultyID, subjectID string) ([]appErrors.FieldError, error) {
	var fields []appErrors.FieldError

	user, err := s.users.FindByID(ctx, facultyID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fields = append(fields, appErrors.FieldError{Field: "faculty_id", Message: "Faculty member not found"})
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load faculty member")
	case user.Role != models.RoleFaculty:
		fields = append(fields, appErrors.FieldError{Field: "faculty_id", Message: "Selected user is not a faculty member"})
	case !user.Active:
		fields = append(fields, appErrors.FieldError{Field: "faculty_id", Message: "Faculty member is inactive"})
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fields = append(fields, appErrors.FieldError{Field: "subject_id", Message: "Subject not found"})
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load subject")
	case !subject.IsActive:
		fields = append(fields, appErrors.FieldError{Field: "subject_id", Message: "Subject is inactive"})
	}
	return fields, nil
}

// Update changes the capacity and notes of an active assignment.
func (s *FacultyAssignmentService) Update(ctx context.Context, id string, input dto.AssignmentUpdateInput, actor models.Actor) (*models.FacultyAssignment, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid assignment payload", assignmentMessages)
	}

	var before, after models.FacultyAssignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is no longer active")
		}
		before = *current
		current.MaxStudents = input.MaxStudents
		current.Notes = input.Notes
		if err := s.repo.Update(ctx, current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
			}
			return appErrors.Internal(err, "failed to update assignment")
		}
		after = *current
		return nil
	})
	if err != nil {
		logFailure(s.logger, "update assignment", err)
		return nil, err
	}

	s.audit.record(ctx, actor, models.AuditActionUpdate, models.AuditResourceAssignment, id, before, after)
	s.afterMutation(ctx, models.AuditActionUpdate)
	return &after, nil
}

// Remove ends an assignment. Removing an inactive assignment is a no-op.
func (s *FacultyAssignmentService) Remove(ctx context.Context, id string, actor models.Actor) error {
	var removed *models.FacultyAssignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return nil
		}
		if err := s.repo.Deactivate(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
			}
			return appErrors.Internal(err, "failed to remove assignment")
		}
		removed = current
		return nil
	})
	if err != nil {
		logFailure(s.logger, "remove assignment", err)
		return err
	}
	if removed == nil {
		return nil
	}

	s.audit.record(ctx, actor, models.AuditActionDeactivate, models.AuditResourceAssignment, id, removed, nil)
	s.afterMutation(ctx, models.AuditActionDeactivate)
	return nil
}

func (s *FacultyAssignmentService) load(ctx context.Context, id string) (*models.FacultyAssignment, error) {
	if !isRowID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	return assignment, nil
}

func (s *FacultyAssignmentService) afterMutation(ctx context.Context, action string) {
	s.cache.Invalidate(ctx, subjectCacheKeys...)
	s.metrics.RecordMutation(models.AuditResourceAssignment, action, 1)
}

// filterIDsValid is false when a non-empty id filter could not match any row.
func filterIDsValid(ids ...string) bool {
	for _, id := range ids {
		if id != "" && !isRowID(id) {
			return false
		}
	}
	return true
}
