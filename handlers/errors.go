package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func init() {
	// Report validation failures by their JSON names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Fields  []string       `json:"fields,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func statusFor(err *service.Error) int {
	switch err.Kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation, service.KindStateConflict:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	}
	if errors.Is(err, service.ErrGatewayUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders a service error. Internal failures are logged with the
// trace id and reported without detail.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = &service.Error{Kind: service.KindUpstream, Code: service.ErrInternal.Code, Message: service.ErrInternal.Message, Err: err}
	}

	status := statusFor(se)
	span := trace.SpanFromContext(c.Request.Context())
	span.RecordError(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("code", se.Code),
			zap.Error(err),
		)
		c.JSON(status, errorBody{Error: se.Message, Code: se.Code})
		return
	}

	c.JSON(status, errorBody{
		Error:   se.Message,
		Code:    se.Code,
		Fields:  se.Fields,
		Details: se.Details,
	})
}

// writeBindError reports a malformed request body, naming each invalid field.
func writeBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		details := make(map[string]any, len(ve))
		for _, fe := range ve {
			fields = append(fields, fe.Field())
			details[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, errorBody{
			Error:   "Invalid request",
			Code:    service.ErrInvalidInput.Code,
			Fields:  fields,
			Details: details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, errorBody{
		Error: err.Error(),
		Code:  service.ErrInvalidInput.Code,
	})
}

// currentUser returns the caller set by AuthMiddleware.
func currentUser(c *gin.Context) models.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}
