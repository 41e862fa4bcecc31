package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"naftapp/internal/services"
	"naftapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func init() {
	// Report binding errors with json field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

var statusByKind = map[services.ErrorKind]int{
	services.KindUnauthenticated: http.StatusUnauthorized,
	services.KindForbidden:       http.StatusForbidden,
	services.KindNotFound:        http.StatusNotFound,
	services.KindInvalidState:    http.StatusBadRequest,
	services.KindInvalidSource:   http.StatusBadRequest,
	services.KindInvalidTarget:   http.StatusBadRequest,
	services.KindSelfAction:      http.StatusBadRequest,
	services.KindValidation:      http.StatusBadRequest,
	services.KindConflict:        http.StatusConflict,
}

// StatusOf maps a service error to its HTTP status. Unknown errors are 500.
func StatusOf(err error) int {
	if status, ok := statusByKind[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError writes the JSON error body. Unexpected errors are logged with
// the operation and entity id and never leak their message.
func RespondError(c *gin.Context, log *logrus.Logger, op string, entityID uint, err error) {
	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		body := gin.H{"error": domainErr.Kind, "message": domainErr.Message}
		if len(domainErr.Fields) > 0 {
			body["fields"] = domainErr.Fields
		}
		c.JSON(StatusOf(err), body)
		return
	}

	log.WithError(err).WithFields(logrus.Fields{
		"operation": op,
		"entity_id": entityID,
	}).Error("Unexpected failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
}

// bindJSON decodes the body, answering 400 with field errors on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for bodies that may be empty, chunked or not.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
	}
	body := gin.H{"error": services.KindValidation, "message": "invalid request body"}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

// paramID parses a positive id route parameter, answering 404 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id := utils.ParseID(c.Param(name))
	if id == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": services.KindNotFound, "message": name + " not found"})
		return 0, false
	}
	return id, true
}
