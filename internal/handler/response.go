package handler

import (
	"net/http"
	"strconv"

	"chronora/internal/middleware"
	apperrors "chronora/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Response is the envelope of every endpoint
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{Success: true, Message: message, Data: data})
}

func failure(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, Response{Success: false, Message: message})
}

// fail maps err onto a status code. Internal errors are logged and hidden.
func fail(c *gin.Context, log *logrus.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Errorf("Handler: %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
		failure(c, status, "internal server error")
		return
	}
	failure(c, status, err.Error())
}

func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextUserID))
	if err != nil {
		failure(c, http.StatusUnauthorized, "invalid user in token")
		return primitive.NilObjectID, false
	}
	return id, true
}

func actor(c *gin.Context) string {
	return c.GetString(middleware.ContextRole) + ":" + c.GetString(middleware.ContextUserID)
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		failure(c, http.StatusBadRequest, apperrors.ErrInvalidID.Error())
		return primitive.NilObjectID, false
	}
	return id, true
}

func itemIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		failure(c, http.StatusBadRequest, "invalid item index")
		return 0, false
	}
	return idx, true
}
