package utils

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// APIResponse is the envelope for every JSON body. The trace id is sent in
// the X-Trace-ID header only, so equal outcomes produce equal bodies.
type APIResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	RetryAt *time.Time        `json:"retryAt,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// RespondBindError turns a gin binding failure into a 400 with field details.
func RespondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Status:  "error",
		Code:    http.StatusBadRequest,
		Message: "Invalid request format",
		Details: BindErrorDetails(err),
	})
}

var jsonNamesOnce sync.Once

// UseJSONFieldNames makes gin's validator report fields by their json name,
// the same keys the services use in ValidationError details.
func UseJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// BindErrorDetails maps validator failures to json field -> rule.
func BindErrorDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = "failed '" + fe.Tag() + "' validation"
		}
		return details
	}
	return map[string]string{"body": "malformed JSON"}
}

func HandleServiceError(c *gin.Context, err error) {
	var rateLimited *RateLimitedError
	var validation *ValidationError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:  "error",
			Code:    http.StatusBadRequest,
			Message: "Invalid request format",
			Details: validation.Details,
		})
	case errors.As(err, &rateLimited):
		retryAt := rateLimited.RetryAt.UTC()
		seconds := int(time.Until(retryAt).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, APIResponse{
			Status:  "error",
			Code:    http.StatusTooManyRequests,
			Message: "Too many requests, please slow down and try again later",
			RetryAt: &retryAt,
		})
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:  "error",
			Code:    http.StatusBadRequest,
			Message: "Invalid request format",
		})
	case errors.Is(err, ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:  "error",
			Code:    http.StatusBadRequest,
			Message: "Reset link is invalid or has expired",
		})
	case errors.Is(err, ErrEmailTaken):
		RespondError(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, ErrBadCredentials):
		RespondError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ErrInvalidQuestion):
		c.JSON(http.StatusBadRequest, APIResponse{
			Status:  "error",
			Code:    http.StatusBadRequest,
			Message: err.Error(),
		})
	case errors.Is(err, ErrDatabaseError), errors.Is(err, ErrTokenStore):
		zap.L().Error("storage error", zap.Error(err), zap.String("trace_id", c.GetString("trace_id")))
		c.JSON(http.StatusInternalServerError, APIResponse{
			Status:  "error",
			Code:    http.StatusInternalServerError,
			Message: "Internal server error",
		})
	default:
		zap.L().Error("unknown error", zap.Error(err), zap.String("trace_id", c.GetString("trace_id")))
		c.JSON(http.StatusInternalServerError, APIResponse{
			Status:  "error",
			Code:    http.StatusInternalServerError,
			Message: "Internal server error",
		})
	}
}
