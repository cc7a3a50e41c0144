package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type confirmBody struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
	Internal    string `json:"-" binding:"required"`
}

func TestBindErrorDetails_UsesJSONNames(t *testing.T) {
	UseJSONFieldNames()

	err := binding.Validator.ValidateStruct(&confirmBody{NewPassword: "short"})
	if err == nil {
		t.Fatalf("expected validation errors")
	}

	details := BindErrorDetails(err)
	for _, key := range []string{"token", "new_password", "Internal"} {
		if details[key] == "" {
			t.Fatalf("expected a detail for %q, got %v", key, details)
		}
	}
	if _, ok := details["NewPassword"]; ok {
		t.Fatalf("details should not use Go field names: %v", details)
	}
}

func TestBindErrorDetails_MalformedBody(t *testing.T) {
	details := BindErrorDetails(errors.New("unexpected EOF"))
	if details["body"] == "" {
		t.Fatalf("expected body detail, got %v", details)
	}
}

func TestHandleServiceError_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleServiceError(c, &RateLimitedError{RetryAt: time.Now().Add(90 * time.Second)})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
