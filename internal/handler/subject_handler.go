package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

type subjectService interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectListItem, *models.Pagination, error)
	Detail(ctx context.Context, id string) (*models.SubjectDetail, error)
	Create(ctx context.Context, input dto.SubjectInput, actor models.Actor) (*models.Subject, error)
	Update(ctx context.Context, id string, input dto.SubjectInput, actor models.Actor) (*models.Subject, error)
	Delete(ctx context.Context, id string, actor models.Actor, permanent bool) error
	BulkAction(ctx context.Context, req dto.BulkActionRequest, actor models.Actor) (*models.BulkResult, error)
	Statistics(ctx context.Context) (*models.SubjectStatistics, error)
	Departments(ctx context.Context) ([]string, error)
}

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	service subjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc subjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Param department query string false "Filter by department"
// @Param type query string false "theory, practical or lab"
// @Param year_level query int false "Filter by year level"
// @Param semester query int false "Filter by semester"
// @Param status query string false "active or inactive"
// @Param search query string false "Search code or name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	var query dto.SubjectListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err, "invalid query parameters")
		return
	}
	subjects, pagination, err := h.service.List(c.Request.Context(), query.Filter(pageSize(c)))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject with assignments and dependents
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubjectInput true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var input dto.SubjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid subject payload")
		return
	}
	subject, err := h.service.Create(c.Request.Context(), input, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, subject, nil)
}

// Update godoc
// @Summary Update subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Param payload body dto.SubjectInput true "Subject payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var input dto.SubjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidPayload(c, err, "invalid subject payload")
		return
	}
	subject, err := h.service.Update(c.Request.Context(), c.Param("id"), input, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Deactivate or permanently delete subject
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Param permanent query bool false "Remove the row instead of deactivating it"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	permanent, _ := strconv.ParseBool(c.DefaultQuery("permanent", "false"))
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.Actor(c), permanent); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bulk godoc
// @Summary Apply one action to many subjects
// @Description All-or-nothing: any failing subject aborts the batch and every failure is listed in error.fields.
// @Tags Subjects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkActionRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /subjects/bulk [post]
func (h *SubjectHandler) Bulk(c *gin.Context) {
	var req dto.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err, "invalid bulk payload")
		return
	}
	result, err := h.service.BulkAction(c.Request.Context(), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, result, nil)
}

// Statistics godoc
// @Summary Subject catalogue statistics
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /subjects/statistics [get]
func (h *SubjectHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, stats, nil)
}

// Departments godoc
// @Summary Distinct subject departments
// @Tags Subjects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /subjects/departments [get]
func (h *SubjectHandler) Departments(c *gin.Context) {
	departments, err := h.service.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, departments, nil)
}
