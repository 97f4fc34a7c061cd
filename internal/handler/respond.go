package handler

import (
	"net/http"

	"civil-erp/internal/middleware"
	"civil-erp/pkg/apperror"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes the error envelope for err. Internal details stay in the
// request log; clients get a generic message.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	msg := apperror.Message(err)
	if kind == apperror.Internal {
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// pathUUID parses the named path parameter; an invalid id answers 404 like a missing one.
func pathUUID(c *gin.Context, name, notFound string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, notFound))
		return uuid.Nil, false
	}
	return id, true
}

// actorID returns the id of the user set by the guard, or uuid.Nil.
func actorID(c *gin.Context) uuid.UUID {
	if user, ok := middleware.CurrentUser(c); ok {
		return user.ID
	}
	return uuid.Nil
}
