package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	validatedModelKey = "validated_model"
	validatedQueryKey = "validated_query"
)

// ValidationMiddleware handles request validation
type ValidationMiddleware struct {
	validator *validator.Validate
	log       *logger.Logger
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(log *logger.Logger) *ValidationMiddleware {
	v := validator.New()

	// Report JSON names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	v.RegisterValidation("not_empty", validateNotEmpty)
	v.RegisterValidation("iso_date", validateISODate)

	return &ValidationMiddleware{
		validator: v,
		log:       log,
	}
}

// ValidateRequest validates the request body against the provided struct
func (m *ValidationMiddleware) ValidateRequest(model interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelValue := newModel(model)

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if len(bytes.TrimSpace(bodyBytes)) > 0 {
			if err := json.Unmarshal(bodyBytes, modelValue); err != nil {
				m.log.Debug("JSON unmarshal failed",
					zap.Error(err),
					zap.String("path", c.Request.URL.Path))
				c.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("invalid JSON format: %v", err.Error()),
				})
				c.Abort()
				return
			}
		}

		if !m.validate(c, modelValue) {
			return
		}

		c.Set(validatedModelKey, modelValue)
		c.Next()
	}
}

// ValidateQuery validates query parameters against the provided struct
func (m *ValidationMiddleware) ValidateQuery(model interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelValue := newModel(model)

		if err := c.ShouldBindQuery(modelValue); err != nil {
			m.log.Debug("Failed to bind query parameters",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid query parameters",
			})
			c.Abort()
			return
		}

		if !m.validate(c, modelValue) {
			return
		}

		c.Set(validatedQueryKey, modelValue)
		c.Next()
	}
}

func (m *ValidationMiddleware) validate(c *gin.Context, modelValue interface{}) bool {
	err := m.validator.Struct(modelValue)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return false
	}

	details := make(map[string]string)
	for _, fe := range verrs {
		details[fe.Field()] = formatValidationError(fe)
	}

	m.log.Debug("Validation failed",
		zap.Any("errors", details),
		zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation failed",
		"field":   verrs[0].Field(),
		"details": details,
	})
	c.Abort()
	return false
}

func newModel(model interface{}) interface{} {
	modelType := reflect.TypeOf(model)
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	return reflect.New(modelType).Interface()
}

// ValidatedModel returns the body bound by ValidateRequest
func ValidatedModel[T any](c *gin.Context) (*T, bool) {
	v, exists := c.Get(validatedModelKey)
	if !exists {
		return nil, false
	}
	model, ok := v.(*T)
	return model, ok
}

// ValidatedQuery returns the query bound by ValidateQuery
func ValidatedQuery[T any](c *gin.Context) (*T, bool) {
	v, exists := c.Get(validatedQueryKey)
	if !exists {
		return nil, false
	}
	model, ok := v.(*T)
	return model, ok
}

// Custom validators
func validateNotEmpty(fl validator.FieldLevel) bool {
	return len(strings.TrimSpace(fl.Field().String())) > 0
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := habits.ParseDate("", fl.Field().String())
	return err == nil
}

// Helper function to format validation errors
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too small"
	case "max":
		return "value is too large"
	case "oneof":
		return "must be one of " + err.Param()
	case "not_empty":
		return "this field cannot be empty"
	case "iso_date":
		return "must be a date in YYYY-MM-DD format"
	default:
		return "invalid value"
	}
}
