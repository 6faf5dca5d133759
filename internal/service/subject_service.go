package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/repository"
	"github.com/noah-isme/timetable-admin/pkg/dberrors"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/export"
)

var subjectCodePattern = regexp.MustCompile(`^[A-Z]{2,5}[0-9]{3,4}$`)

// MessageDuplicateSubjectCode is reported on subject_code when another active subject uses the code.
const MessageDuplicateSubjectCode = "Subject code already exists"

var subjectMessages = fieldMessages{
	"subject_code.required":     "Subject code is required",
	"subject_code.subject_code": "Subject code must be 2-5 letters followed by 3-4 digits, e.g. CS101",
	"subject_name.required":     "Subject name is required",
	"subject_name":              "Subject name must be between 3 and 150 characters",
	"credits":                   "Credits must be between 1 and 6",
	"duration_hours":            "Duration must be between 1 and 8 hours",
	"type":                      "Type must be theory, practical or lab",
	"department.required":       "Department is required",
	"department":                "Department must be at most 100 characters",
	"semester":                  "Semester must be between 1 and 12",
	"year_level":                "Year level must be between 1 and 6",
	"prerequisites":             "Prerequisites must be at most 255 characters",
}

var bulkMessages = fieldMessages{
	"action": "Choose a valid bulk action",
	"ids":    "Select at least one subject",
}

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, int, error)
	ListAll(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
	ExistsActiveCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	SetActive(ctx context.Context, ids []string, active bool, actorID string) (int64, error)
	Delete(ctx context.Context, id string) error
	Dependents(ctx context.Context, id string) (models.SubjectDependents, error)
	Statistics(ctx context.Context) (*models.SubjectStatistics, error)
	Departments(ctx context.Context) ([]string, error)
}

type subjectAssignmentReader interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.FacultyAssignmentView, error)
}

// SubjectService manages the subject catalogue.
type SubjectService struct {
	repo        subjectRepository
	assignments subjectAssignmentReader
	tx          transactor
	audit       auditTrail
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	pageSize    int
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, assignments subjectAssignmentReader, tx transactor, audit auditRecorder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tx == nil {
		tx = directTx{}
	}
	svc := &SubjectService{
		repo:        repo,
		assignments: assignments,
		tx:          tx,
		audit:       auditTrail{repo: audit, logger: logger},
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		pageSize:    20,
	}
	svc.validator.RegisterValidation("subject_code", func(fl validator.FieldLevel) bool {
		return subjectCodePattern.MatchString(fl.Field().String())
	})
	return svc
}

// WithPageSize overrides the default list page size.
func (s *SubjectService) WithPageSize(size int) *SubjectService {
	if size > 0 {
		s.pageSize = size
	}
	return s
}

func normaliseSubjectInput(in dto.SubjectInput) dto.SubjectInput {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = string(models.SubjectTypeTheory)
	}
	in.Department = strings.TrimSpace(in.Department)
	in.Prerequisites = strings.TrimSpace(in.Prerequisites)
	in.Description = stripMarkup(in.Description)
	in.Syllabus = stripMarkup(in.Syllabus)
	return in
}

func (s *SubjectService) validate(in dto.SubjectInput) error {
	if err := s.validator.Struct(in); err != nil {
		return validationError(err, "invalid subject payload", subjectMessages)
	}
	return nil
}

func duplicateCodeError() error {
	return appErrors.Validation("invalid subject payload", appErrors.FieldError{Field: "subject_code", Message: MessageDuplicateSubjectCode})
}

// List returns one page of subjects with their active faculty counts.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.pageSize
	}
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list subjects failed", zap.Error(err))
		return nil, nil, appErrors.Internal(err, "failed to list subjects")
	}
	return subjects, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns subject by identifier.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	if !isRowID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		s.logger.Error("load subject failed", zap.String("subject_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load subject")
	}
	return subject, nil
}

// Detail returns a subject with its active assignments and dependent counts.
func (s *SubjectService) Detail(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	deps, err := s.repo.Dependents(ctx, id)
	if err != nil {
		s.logger.Error("count subject dependents failed", zap.String("subject_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load subject dependents")
	}
	detail := &models.SubjectDetail{Subject: *subject, Dependents: deps, Assignments: []models.FacultyAssignmentView{}}
	if s.assignments != nil {
		views, err := s.assignments.ListBySubject(ctx, id)
		if err != nil {
			s.logger.Error("list subject assignments failed", zap.String("subject_id", id), zap.Error(err))
			return nil, appErrors.Internal(err, "failed to load subject assignments")
		}
		detail.Assignments = views
	}
	return detail, nil
}

// Create adds a new active subject.
func (s *SubjectService) Create(ctx context.Context, input dto.SubjectInput, actor models.Actor) (*models.Subject, error) {
	input = normaliseSubjectInput(input)
	if err := s.validate(input); err != nil {
		return nil, err
	}

	subject := subjectFromInput(input)
	subject.IsActive = true
	subject.CreatedBy = optionalString(actor.UserID)
	subject.UpdatedBy = optionalString(actor.UserID)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsActiveCode(ctx, subject.Code, "")
		if err != nil {
			return appErrors.Internal(err, "failed to check subject code")
		}
		if exists {
			return duplicateCodeError()
		}
		if err := s.repo.Create(ctx, subject); err != nil {
			if dberrors.IsUniqueViolation(err, repository.SubjectCodeConstraint) {
				return duplicateCodeError()
			}
			return appErrors.Internal(err, "failed to create subject")
		}
		return nil
	})
	if err != nil {
		logFailure(s.logger, "create subject", err)
		return nil, err
	}

	s.audit.record(ctx, actor, models.AuditActionCreate, models.AuditResourceSubject, subject.ID, nil, subject)
	s.afterMutation(ctx, models.AuditActionCreate, 1)
	return subject, nil
}

// Update replaces the editable fields of a subject.
func (s *SubjectService) Update(ctx context.Context, id string, input dto.SubjectInput, actor models.Actor) (*models.Subject, error) {
	if !isRowID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	input = normaliseSubjectInput(input)
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var before, after models.Subject
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return appErrors.Internal(err, "failed to load subject")
		}
		before = *current

		if current.IsActive {
			exists, err := s.repo.ExistsActiveCode(ctx, input.Code, id)
			if err != nil {
				return appErrors.Internal(err, "failed to check subject code")
			}
			if exists {
				return duplicateCodeError()
			}
		}

		updated := subjectFromInput(input)
		updated.ID = current.ID
		updated.IsActive = current.IsActive
		updated.CreatedBy = current.CreatedBy
		updated.CreatedAt = current.CreatedAt
		updated.UpdatedBy = optionalString(actor.UserID)
		if err := s.repo.Update(ctx, updated); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			case dberrors.IsUniqueViolation(err, repository.SubjectCodeConstraint):
				return duplicateCodeError()
			}
			return appErrors.Internal(err, "failed to update subject")
		}
		after = *updated
		return nil
	})
	if err != nil {
		logFailure(s.logger, "update subject", err)
		return nil, err
	}

	s.audit.record(ctx, actor, models.AuditActionUpdate, models.AuditResourceSubject, id, before, after)
	s.afterMutation(ctx, models.AuditActionUpdate, 1)
	return &after, nil
}

// Delete deactivates a subject, or removes it when permanent is set. Permanent removal is refused
// while assignments, enrollments or timetable entries reference the subject.
func (s *SubjectService) Delete(ctx context.Context, id string, actor models.Actor, permanent bool) error {
	if !isRowID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	var (
		subject *models.Subject
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.repo.FindByIDs(ctx, []string{id})
		if err != nil {
			return appErrors.Internal(err, "failed to load subject")
		}
		if len(found) == 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		subject = &found[0]

		if !permanent {
			if !subject.IsActive {
				return nil
			}
			if _, err := s.repo.SetActive(ctx, []string{id}, false, actor.UserID); err != nil {
				return appErrors.Internal(err, "failed to deactivate subject")
			}
			changed = true
			return nil
		}

		deps, err := s.repo.Dependents(ctx, id)
		if err != nil {
			return appErrors.Internal(err, "failed to check subject dependents")
		}
		if deps.Blocking() {
			return dependencyError(subject, deps)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return appErrors.Internal(err, "failed to delete subject")
		}
		changed = true
		return nil
	})
	if err != nil {
		logFailure(s.logger, "delete subject", err)
		return err
	}
	if !changed {
		return nil
	}

	action := models.AuditActionDeactivate
	if permanent {
		action = models.AuditActionDelete
	}
	s.audit.record(ctx, actor, action, models.AuditResourceSubject, id, subject, nil)
	s.afterMutation(ctx, action, 1)
	return nil
}

// BulkAction applies action to every id in one transaction. Any failing subject aborts the whole
// batch and every failure is reported.
func (s *SubjectService) BulkAction(ctx context.Context, req dto.BulkActionRequest, actor models.Actor) (*models.BulkResult, error) {
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	req.IDs = uniqueIDs(req.IDs)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk action", bulkMessages)
	}

	var subjects []models.Subject
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var lookup []string
		for _, id := range req.IDs {
			if isRowID(id) {
				lookup = append(lookup, id)
			}
		}
		if len(lookup) > 0 {
			found, err := s.repo.FindByIDs(ctx, lookup)
			if err != nil {
				return appErrors.Internal(err, "failed to load subjects")
			}
			subjects = found
		}

		failures, err := s.bulkFailures(ctx, req, subjects)
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			return appErrors.Validation(fmt.Sprintf("Bulk %s aborted: %d of %d subjects cannot be processed", req.Action, len(failures), len(req.IDs)), failures...)
		}

		switch req.Action {
		case models.BulkActionActivate, models.BulkActionDeactivate:
			if _, err := s.repo.SetActive(ctx, req.IDs, req.Action == models.BulkActionActivate, actor.UserID); err != nil {
				if dberrors.IsUniqueViolation(err, repository.SubjectCodeConstraint) {
					return appErrors.Validation(fmt.Sprintf("Bulk %s aborted: a subject code is already in use", req.Action))
				}
				return appErrors.Internal(err, "failed to update subjects")
			}
		case models.BulkActionDelete:
			for _, id := range req.IDs {
				if err := s.repo.Delete(ctx, id); err != nil {
					return appErrors.Internal(err, "failed to delete subjects")
				}
			}
		}
		return nil
	})
	if err != nil {
		logFailure(s.logger, "bulk subject action", err)
		return nil, err
	}

	action := bulkAuditAction(req.Action)
	for i := range subjects {
		s.audit.record(ctx, actor, action, models.AuditResourceSubject, subjects[i].ID, subjects[i], map[string]string{"bulk_action": req.Action})
	}
	s.afterMutation(ctx, action, len(req.IDs))
	return &models.BulkResult{Action: req.Action, Affected: len(req.IDs), IDs: req.IDs}, nil
}

func (s *SubjectService) bulkFailures(ctx context.Context, req dto.BulkActionRequest, found []models.Subject) ([]appErrors.FieldError, error) {
	byID := make(map[string]*models.Subject, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	var failures []appErrors.FieldError
	codes := make(map[string]string)
	for _, id := range req.IDs {
		subject, ok := byID[id]
		if !ok {
			failures = append(failures, appErrors.FieldError{Field: id, Message: "Subject not found"})
			continue
		}
		switch req.Action {
		case models.BulkActionActivate:
			if subject.IsActive {
				continue
			}
			code := strings.ToUpper(subject.Code)
			if other, dup := codes[code]; dup && other != id {
				failures = append(failures, appErrors.FieldError{Field: id, Message: fmt.Sprintf("%s: another selected subject uses the same code", subject.Code)})
				continue
			}
			codes[code] = id
			exists, err := s.repo.ExistsActiveCode(ctx, code, id)
			if err != nil {
				return nil, appErrors.Internal(err, "failed to check subject code")
			}
			if exists {
				failures = append(failures, appErrors.FieldError{Field: id, Message: fmt.Sprintf("%s: %s", subject.Code, MessageDuplicateSubjectCode)})
			}
		case models.BulkActionDelete:
			deps, err := s.repo.Dependents(ctx, id)
			if err != nil {
				return nil, appErrors.Internal(err, "failed to check subject dependents")
			}
			if deps.Blocking() {
				failures = append(failures, appErrors.FieldError{Field: id, Message: fmt.Sprintf("%s: still has %s", subject.Code, describeDependents(deps))})
			}
		}
	}
	return failures, nil
}

// Statistics returns catalogue counters, served from cache when possible.
func (s *SubjectService) Statistics(ctx context.Context) (*models.SubjectStatistics, error) {
	var cached models.SubjectStatistics
	if s.cache.Get(ctx, cacheKeySubjectStatistics, &cached) {
		return &cached, nil
	}
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		s.logger.Error("subject statistics failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to compute subject statistics")
	}
	stats.GeneratedAt = timeNow()
	s.cache.Set(ctx, cacheKeySubjectStatistics, stats)
	return stats, nil
}

// Departments lists the distinct departments of all subjects.
func (s *SubjectService) Departments(ctx context.Context) ([]string, error) {
	var cached []string
	if s.cache.Get(ctx, cacheKeyDepartments, &cached) {
		return cached, nil
	}
	departments, err := s.repo.Departments(ctx)
	if err != nil {
		s.logger.Error("list departments failed", zap.Error(err))
		return nil, appErrors.Internal(err, "failed to list departments")
	}
	s.cache.Set(ctx, cacheKeyDepartments, departments)
	return departments, nil
}

// ExportTable renders every subject matching filter as a table for CSV or PDF export.
func (s *SubjectService) ExportTable(ctx context.Context, filter models.SubjectFilter, actor models.Actor) (export.Table, error) {
	subjects, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		s.logger.Error("export subjects failed", zap.Error(err))
		return export.Table{}, appErrors.Internal(err, "failed to export subjects")
	}
	table := export.Table{
		Title:   "Subjects",
		Headers: []string{"Code", "Name", "Department", "Type", "Credits", "Hours", "Year", "Semester", "Faculty", "Status"},
		Rows:    make([][]string, 0, len(subjects)),
	}
	for _, item := range subjects {
		table.Rows = append(table.Rows, []string{
			item.Code,
			item.Name,
			item.Department,
			string(item.Type),
			strconv.Itoa(item.Credits),
			strconv.Itoa(item.DurationHours),
			strconv.Itoa(item.YearLevel),
			strconv.Itoa(item.Semester),
			strconv.Itoa(item.FacultyCount),
			statusLabel(item.IsActive),
		})
	}
	s.audit.record(ctx, actor, models.AuditActionExport, models.AuditResourceSubject, "", nil, map[string]interface{}{"rows": len(table.Rows)})
	return table, nil
}

func (s *SubjectService) afterMutation(ctx context.Context, action string, rows int) {
	s.cache.Invalidate(ctx, subjectCacheKeys...)
	s.metrics.RecordMutation(models.AuditResourceSubject, action, rows)
}

func subjectFromInput(in dto.SubjectInput) *models.Subject {
	return &models.Subject{
		Code:          in.Code,
		Name:          in.Name,
		Credits:       in.Credits,
		DurationHours: in.DurationHours,
		Type:          models.SubjectType(in.Type),
		Department:    in.Department,
		Semester:      in.Semester,
		YearLevel:     in.YearLevel,
		Prerequisites: in.Prerequisites,
		Description:   in.Description,
		Syllabus:      in.Syllabus,
	}
}

func dependencyError(subject *models.Subject, deps models.SubjectDependents) error {
	err := appErrors.Clone(appErrors.ErrDependencyConflict, fmt.Sprintf("Cannot permanently delete %s: it still has %s. Deactivate it instead.", subject.Code, describeDependents(deps)))
	if deps.ActiveAssignments > 0 {
		err.Fields = append(err.Fields, appErrors.FieldError{Field: "active_assignments", Message: strconv.Itoa(deps.ActiveAssignments)})
	}
	if deps.Enrollments > 0 {
		err.Fields = append(err.Fields, appErrors.FieldError{Field: "enrollments", Message: strconv.Itoa(deps.Enrollments)})
	}
	if deps.TimetableEntries > 0 {
		err.Fields = append(err.Fields, appErrors.FieldError{Field: "timetable_entries", Message: strconv.Itoa(deps.TimetableEntries)})
	}
	return err
}

func describeDependents(deps models.SubjectDependents) string {
	parts := make([]string, 0, 3)
	if deps.ActiveAssignments > 0 {
		parts = append(parts, plural(deps.ActiveAssignments, "active faculty assignment"))
	}
	if deps.Enrollments > 0 {
		parts = append(parts, plural(deps.Enrollments, "enrollment"))
	}
	if deps.TimetableEntries > 0 {
		parts = append(parts, plural(deps.TimetableEntries, "timetable entry"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func bulkAuditAction(action string) string {
	switch action {
	case models.BulkActionActivate:
		return models.AuditActionActivate
	case models.BulkActionDeactivate:
		return models.AuditActionDeactivate
	}
	return models.AuditActionDelete
}

func statusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
