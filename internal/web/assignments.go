package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
)

// AssignmentsPath is the assignment list page.
const AssignmentsPath = "/admin/assignments"

// Flash texts of the assignment pages.
const (
	MessageAssignmentCreated = "Faculty assignment created."
	MessageAssignmentUpdated = "Faculty assignment updated."
	MessageAssignmentRemoved = "Faculty assignment removed."
)

// subjectOptionLimit bounds the subject picker of the assignment form.
const subjectOptionLimit = 100

type assignmentListData struct {
	Items      []models.FacultyAssignmentView
	Pagination *models.Pagination
	Query      dto.AssignmentListQuery
	Filters    string
	Faculty    []models.FacultyOption
	Subjects   []models.SubjectListItem
	Form       dto.AssignmentForm
	EditID     string
}

type facultySubjectsData struct {
	Assignments   []models.FacultyAssignmentView
	TotalCredits  int
	TotalStudents int
}

func assignmentListURL(returnQuery string) string {
	return withQuery(AssignmentsPath, dto.AssignmentListQueryFrom(returnQuery).Values())
}

// ListAssignments renders assignments with the assignment form.
func (h *Handler) ListAssignments(c *gin.Context) {
	r := h.request(c)
	var query dto.AssignmentListQuery
	_ = c.ShouldBindQuery(&query)
	r.assignmentList(http.StatusOK, Page{}, assignmentListData{Query: query, Form: dto.AssignmentForm{SubjectID: query.SubjectID, FacultyID: query.FacultyID}})
}

func (r *request) assignmentList(status int, page Page, data assignmentListData) {
	page.Title = "Faculty assignments"
	page.Nav = navAssignments
	data.Filters = data.Query.Values().Encode()

	items, pagination, err := r.h.assignments.List(r.ctx(), data.Query.Filter(r.h.pageSize))
	if err != nil {
		status = r.failure(err, &page)
	}
	data.Items, data.Pagination = items, pagination

	if faculty, err := r.h.assignments.FacultyOptions(r.ctx(), data.Query.Department); err == nil {
		data.Faculty = faculty
	} else {
		r.h.logger.Warn("faculty options unavailable", zap.Error(err))
	}
	subjects, _, err := r.h.subjects.List(r.ctx(), models.SubjectFilter{
		Department: data.Query.Department,
		Status:     models.SubjectStatusActive,
		PageSize:   subjectOptionLimit,
		SortBy:     "code",
	})
	if err == nil {
		data.Subjects = subjects
	} else {
		r.h.logger.Warn("subject options unavailable", zap.Error(err))
	}

	page.Data = data
	r.render(status, "assignments", page)
}

// CreateAssignment assigns a faculty member to a subject.
func (h *Handler) CreateAssignment(c *gin.Context) {
	r := h.request(c)
	var form dto.AssignmentForm
	_ = c.ShouldBind(&form)
	returnQuery := c.PostForm("return_query")

	if _, err := h.assignments.Assign(r.ctx(), form.Input(), r.actor()); err != nil {
		page := Page{}
		status := r.failure(err, &page)
		r.assignmentList(status, page, assignmentListData{Query: dto.AssignmentListQueryFrom(returnQuery), Form: form})
		return
	}
	r.redirect(assignmentListURL(returnQuery), session.FlashSuccess, MessageAssignmentCreated)
}

// UpdateAssignment edits capacity and notes of an assignment.
func (h *Handler) UpdateAssignment(c *gin.Context) {
	r := h.request(c)
	id := c.Param("id")
	var form dto.AssignmentForm
	_ = c.ShouldBind(&form)
	returnQuery := c.PostForm("return_query")

	if _, err := h.assignments.Update(r.ctx(), id, form.UpdateInput(), r.actor()); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status == http.StatusNotFound || appErr.Status == http.StatusPreconditionFailed {
			r.redirect(assignmentListURL(returnQuery), session.FlashError, sentence(appErr.Message)+".")
			return
		}
		page := Page{}
		status := r.failure(err, &page)
		r.assignmentList(status, page, assignmentListData{Query: dto.AssignmentListQueryFrom(returnQuery), Form: form, EditID: id})
		return
	}
	r.redirect(assignmentListURL(returnQuery), session.FlashSuccess, MessageAssignmentUpdated)
}

// RemoveAssignment deactivates an assignment.
func (h *Handler) RemoveAssignment(c *gin.Context) {
	r := h.request(c)
	returnQuery := c.PostForm("return_query")
	if err := h.assignments.Remove(r.ctx(), c.Param("id"), r.actor()); err != nil {
		appErr := appErrors.FromError(err)
		message := sentence(appErr.Message) + "."
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("remove assignment failed", zap.String("id", c.Param("id")), zap.Error(err))
			message = MessageGeneric
		}
		r.redirect(assignmentListURL(returnQuery), session.FlashError, message)
		return
	}
	r.redirect(assignmentListURL(returnQuery), session.FlashSuccess, MessageAssignmentRemoved)
}

// FacultySubjects lists the active teaching load of the signed-in faculty member.
func (h *Handler) FacultySubjects(c *gin.Context) {
	r := h.request(c)
	page := Page{Title: "My subjects", Nav: navTeaching}
	assignments, err := h.assignments.ListForFaculty(r.ctx(), r.identity.UserID)
	if err != nil {
		r.render(r.failure(err, &page), "faculty_subjects", page)
		return
	}
	data := facultySubjectsData{Assignments: assignments}
	for _, a := range assignments {
		data.TotalCredits += a.Credits
		data.TotalStudents += a.MaxStudents
	}
	page.Data = data
	r.render(http.StatusOK, "faculty_subjects", page)
}
