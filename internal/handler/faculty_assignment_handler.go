package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

type assignmentService interface {
	List(ctx context.Context, filter models.FacultyAssignmentFilter) ([]models.FacultyAssignmentView, *models.Pagination, error)
	ListForFaculty(ctx context.Context, facultyID string) ([]models.FacultyAssignmentView, error)
	Assign(ctx context.Context, input dto.AssignmentInput, actor models.Actor) (*models.FacultyAssignment, error)
	Update(ctx context.Context, id string, input dto.AssignmentUpdateInput, actor models.Actor) (*models.FacultyAssignment, error)
	Remove(ctx context.Context, id string, actor models.Actor) error
}

// FacultyAssignmentHandler exposes faculty assignment endpoints.
type FacultyAssignmentHandler struct {
	service assignmentService
}

// NewFacultyAssignmentHandler constructs the handler.
func NewFacultyAssignmentHandler(svc assignmentService) *FacultyAssignmentHandler {
	return &FacultyAssignmentHandler{service: svc}
}

// List godoc
// @Summary List faculty assignments
// @Description Administrators see every assignment matching the filters; faculty members see their own active assignments.
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param department query string false "Filter by department"
// @Param faculty_id query string false "Filter by faculty member"
// @Param subject_id query string false "Filter by subject"
// @Param status query string false "all to include removed assignments"
// @Param search query string false "Search faculty or subject"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *FacultyAssignmentHandler) List(c *gin.Context) {
	if identity := identityFromContext(c); identity.HasRole(models.RoleFaculty) {
		views, err := h.service.ListForFaculty(c.Request.Context(), identity.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		respond(c, http.StatusOK, views, nil)
		return
	}

	var query dto.AssignmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err, "invalid query parameters")
		return
	}
	views, pagination, err := h.service.List(c.Request.Context(), query.Filter(pageSize(c)))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, views, pagination)
}

// Create godoc
// @Summary Assign faculty to subject
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignmentInput true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments [post]
func (h *FacultyAssignmentHandler) Create(c *gin.Context) {
	var input dto.AssignmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid assignment payload")
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), input, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, assignment, nil)
}

// Update godoc
// @Summary Update assignment capacity and notes
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body dto.AssignmentUpdateInput true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *FacultyAssignmentHandler) Update(c *gin.Context) {
	var input dto.AssignmentUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid assignment payload")
		return
	}
	assignment, err := h.service.Update(c.Request.Context(), c.Param("id"), input, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Remove assignment
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *FacultyAssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
