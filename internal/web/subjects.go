package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/internal/dto"
	"github.com/noah-isme/timetable-admin/internal/models"
	"github.com/noah-isme/timetable-admin/internal/session"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/export"
)

// SubjectsPath is the subject list page.
const SubjectsPath = "/admin/subjects"

// MessageSubjectNotFound is flashed when a form targets a subject that no longer exists.
const MessageSubjectNotFound = "That subject no longer exists."

type subjectListData struct {
	Items       []models.SubjectListItem
	Pagination  *models.Pagination
	Query       dto.SubjectListQuery
	Filters     string
	Statistics  *models.SubjectStatistics
	Departments []string
	Types       []models.SubjectType
	Highlight   string
	Selected    []string
	BulkAction  string
}

type subjectFormData struct {
	ID          string
	Form        dto.SubjectForm
	ReturnQuery string
	Types       []models.SubjectType
	Departments []string
}

type subjectDetailData struct {
	Detail      *models.SubjectDetail
	ReturnQuery string
}

func subjectListURL(returnQuery string, feedback ...string) string {
	values := dto.SubjectListQueryFrom(returnQuery).Values()
	for i := 0; i+1 < len(feedback); i += 2 {
		values.Set(feedback[i], feedback[i+1])
	}
	return withQuery(SubjectsPath, values)
}

// ListSubjects renders the filtered subject list with statistics.
func (h *Handler) ListSubjects(c *gin.Context) {
	r := h.request(c)
	var query dto.SubjectListQuery
	_ = c.ShouldBindQuery(&query)

	data := subjectListData{Query: query}
	switch {
	case c.Query("created") != "":
		data.Highlight = c.Query("created")
	case c.Query("updated_id") != "":
		data.Highlight = c.Query("updated_id")
	}
	r.subjectList(http.StatusOK, Page{}, data)
}

// subjectList loads the list, statistics and departments into data and renders it. A failure
// while loading keeps page errors already present.
func (r *request) subjectList(status int, page Page, data subjectListData) {
	page.Title = "Subjects"
	page.Nav = navSubjects
	data.Filters = data.Query.Values().Encode()
	data.Types = models.SubjectTypes

	items, pagination, err := r.h.subjects.List(r.ctx(), data.Query.Filter(r.h.pageSize))
	if err != nil {
		status = r.failure(err, &page)
	}
	data.Items, data.Pagination = items, pagination

	if stats, err := r.h.subjects.Statistics(r.ctx()); err == nil {
		data.Statistics = stats
	} else {
		r.h.logger.Warn("subject statistics unavailable", zap.Error(err))
	}
	if departments, err := r.h.subjects.Departments(r.ctx()); err == nil {
		data.Departments = departments
	} else {
		r.h.logger.Warn("subject departments unavailable", zap.Error(err))
	}

	page.Data = data
	r.render(status, "subjects", page)
}

func (r *request) departments() []string {
	departments, err := r.h.subjects.Departments(r.ctx())
	if err != nil {
		r.h.logger.Warn("subject departments unavailable", zap.Error(err))
	}
	return departments
}

// NewSubject renders an empty subject form.
func (h *Handler) NewSubject(c *gin.Context) {
	r := h.request(c)
	r.render(http.StatusOK, "subject_form", Page{
		Title: "New subject",
		Nav:   navSubjects,
		Data: subjectFormData{
			Form:        dto.SubjectForm{Type: string(models.SubjectTypeTheory)},
			ReturnQuery: c.Query("return"),
			Types:       models.SubjectTypes,
			Departments: r.departments(),
		},
	})
}

// CreateSubject stores a new subject.
func (h *Handler) CreateSubject(c *gin.Context) {
	r := h.request(c)
	var form dto.SubjectForm
	_ = c.ShouldBind(&form)
	returnQuery := c.PostForm("return_query")

	subject, err := h.subjects.Create(r.ctx(), form.Input(), r.actor())
	if err != nil {
		r.subjectFormFailure(err, "New subject", "", form, returnQuery)
		return
	}
	r.redirect(subjectListURL(returnQuery, "created", subject.Code), session.FlashSuccess, fmt.Sprintf("Subject %s created.", subject.Code))
}

func (r *request) subjectFormFailure(err error, title, id string, form dto.SubjectForm, returnQuery string) {
	page := Page{Title: title, Nav: navSubjects}
	status := r.failure(err, &page)
	page.Data = subjectFormData{ID: id, Form: form, ReturnQuery: returnQuery, Types: models.SubjectTypes, Departments: r.departments()}
	r.render(status, "subject_form", page)
}

// ShowSubject renders the subject detail page.
func (h *Handler) ShowSubject(c *gin.Context) {
	r := h.request(c)
	detail, err := h.subjects.Detail(r.ctx(), c.Param("id"))
	if err != nil {
		r.notFound(err, "Subject")
		return
	}
	r.render(http.StatusOK, "subject_detail", Page{
		Title: detail.Subject.Code,
		Nav:   navSubjects,
		Data:  subjectDetailData{Detail: detail, ReturnQuery: c.Query("return")},
	})
}

// EditSubject renders the form pre-filled with the stored subject.
func (h *Handler) EditSubject(c *gin.Context) {
	r := h.request(c)
	subject, err := h.subjects.Get(r.ctx(), c.Param("id"))
	if err != nil {
		r.notFound(err, "Edit subject")
		return
	}
	r.render(http.StatusOK, "subject_form", Page{
		Title: "Edit " + subject.Code,
		Nav:   navSubjects,
		Data: subjectFormData{
			ID:          subject.ID,
			Form:        dto.SubjectFormFrom(subject),
			ReturnQuery: c.Query("return"),
			Types:       models.SubjectTypes,
			Departments: r.departments(),
		},
	})
}

// UpdateSubject saves an edited subject.
func (h *Handler) UpdateSubject(c *gin.Context) {
	r := h.request(c)
	id := c.Param("id")
	var form dto.SubjectForm
	_ = c.ShouldBind(&form)
	returnQuery := c.PostForm("return_query")

	subject, err := h.subjects.Update(r.ctx(), id, form.Input(), r.actor())
	if err != nil {
		if isNotFound(err) {
			r.redirect(subjectListURL(returnQuery), session.FlashError, MessageSubjectNotFound)
			return
		}
		r.subjectFormFailure(err, "Edit subject", id, form, returnQuery)
		return
	}
	r.redirect(subjectListURL(returnQuery, "updated_id", subject.ID), session.FlashSuccess, fmt.Sprintf("Subject %s updated.", subject.Code))
}

// ConfirmDeleteSubject renders the delete confirmation with dependent counts.
func (h *Handler) ConfirmDeleteSubject(c *gin.Context) {
	r := h.request(c)
	detail, err := h.subjects.Detail(r.ctx(), c.Param("id"))
	if err != nil {
		r.notFound(err, "Delete subject")
		return
	}
	r.render(http.StatusOK, "subject_delete", Page{
		Title: "Delete " + detail.Subject.Code,
		Nav:   navSubjects,
		Data:  subjectDetailData{Detail: detail, ReturnQuery: c.Query("return")},
	})
}

// DeleteSubject deactivates a subject, or removes it when permanent=1.
func (h *Handler) DeleteSubject(c *gin.Context) {
	r := h.request(c)
	id := c.Param("id")
	returnQuery := c.PostForm("return_query")
	permanent := c.PostForm("permanent") == "1"

	subject, err := h.subjects.Get(r.ctx(), id)
	if err == nil {
		err = h.subjects.Delete(r.ctx(), id, r.actor(), permanent)
	}
	if err != nil {
		if isNotFound(err) {
			r.redirect(subjectListURL(returnQuery), session.FlashError, MessageSubjectNotFound)
			return
		}
		page := Page{Title: "Delete subject", Nav: navSubjects}
		status := r.failure(err, &page)
		detail, detailErr := h.subjects.Detail(r.ctx(), id)
		if detailErr != nil {
			r.notFound(detailErr, "Delete subject")
			return
		}
		page.Data = subjectDetailData{Detail: detail, ReturnQuery: returnQuery}
		r.render(status, "subject_delete", page)
		return
	}

	message := fmt.Sprintf("Subject %s deactivated.", subject.Code)
	if permanent {
		message = fmt.Sprintf("Subject %s permanently deleted.", subject.Code)
	}
	r.redirect(subjectListURL(returnQuery, "deleted", subject.Code), session.FlashSuccess, message)
}

// BulkSubjects applies one action to the selected subjects.
func (h *Handler) BulkSubjects(c *gin.Context) {
	r := h.request(c)
	var req dto.BulkActionRequest
	_ = c.ShouldBind(&req)
	returnQuery := c.PostForm("return_query")

	result, err := h.subjects.BulkAction(r.ctx(), req, r.actor())
	if err != nil {
		page := Page{}
		status := r.failure(err, &page)
		r.subjectList(status, page, subjectListData{
			Query:      dto.SubjectListQueryFrom(returnQuery),
			Selected:   req.IDs,
			BulkAction: req.Action,
		})
		return
	}
	r.redirect(subjectListURL(returnQuery), session.FlashSuccess, bulkMessage(result))
}

func bulkMessage(result *models.BulkResult) string {
	noun := "subjects"
	if result.Affected == 1 {
		noun = "subject"
	}
	switch result.Action {
	case models.BulkActionActivate:
		return fmt.Sprintf("Activated %d %s.", result.Affected, noun)
	case models.BulkActionDeactivate:
		return fmt.Sprintf("Deactivated %d %s.", result.Affected, noun)
	}
	return fmt.Sprintf("Permanently deleted %d %s.", result.Affected, noun)
}

// ExportSubjects downloads the filtered subject list as CSV or PDF.
func (h *Handler) ExportSubjects(c *gin.Context) {
	r := h.request(c)
	var query dto.SubjectListQuery
	_ = c.ShouldBindQuery(&query)

	renderer, err := export.ForFormat(c.Query("format"))
	if err != nil {
		r.redirect(withQuery(SubjectsPath, query.Values()), session.FlashError, "Unsupported export format.")
		return
	}
	table, err := h.subjects.ExportTable(r.ctx(), query.Filter(0), r.actor())
	if err == nil {
		var body []byte
		if body, err = renderer.Render(table); err == nil {
			filename := fmt.Sprintf("subjects-%s.%s", time.Now().UTC().Format("20060102"), renderer.Extension())
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
			c.Data(http.StatusOK, renderer.ContentType(), body)
			return
		}
	}
	h.logger.Error("subject export failed", zap.Error(err))
	r.redirect(withQuery(SubjectsPath, query.Values()), session.FlashError, MessageGeneric)
}

func isNotFound(err error) bool {
	return appErrors.FromError(err).Status == http.StatusNotFound
}
