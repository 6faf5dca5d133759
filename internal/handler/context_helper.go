package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-admin/internal/middleware"
	"github.com/noah-isme/timetable-admin/internal/models"
	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
	"github.com/noah-isme/timetable-admin/pkg/response"
)

func identityFromContext(c *gin.Context) *models.Identity {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil
	}
	return identity
}

func respond(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	response.JSON(c, status, data, pagination, middleware.ExtractMeta(c))
}

func invalidPayload(c *gin.Context, err error, message string) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
}

func pageSize(c *gin.Context) int {
	size, err := strconv.Atoi(c.Query("page_size"))
	if err != nil || size < 0 {
		return 0
	}
	return size
}
