package collections

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var payloadValidator = newPayloadValidator()

// FieldError names one rejected field of a payload.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError reports a payload that failed schema validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", field.Field, field.Rule))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Validate checks a payload struct against its validate tags. Exported so other
// domain packages share the same rules and error shape.
func Validate(payload any) error {
	err := payloadValidator.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	result := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrors))}
	for _, fieldError := range fieldErrors {
		result.Fields = append(result.Fields, FieldError{
			Field: fieldError.Field(),
			Rule:  fieldError.Tag(),
		})
	}
	return result
}

// ValidateInput validates a new collection submission.
func ValidateInput(input CollectionInput) error {
	if err := Validate(input); err != nil {
		return err
	}
	if strings.TrimSpace(input.HostName) == "" {
		return &ValidationError{Fields: []FieldError{{Field: "hostName", Rule: "required"}}}
	}
	return nil
}

// ValidateUpdate validates a partial collection update.
func ValidateUpdate(update CollectionUpdate) error {
	if err := Validate(update); err != nil {
		return err
	}
	if update.HostName != nil && strings.TrimSpace(*update.HostName) == "" {
		return &ValidationError{Fields: []FieldError{{Field: "hostName", Rule: "required"}}}
	}
	return nil
}

func newPayloadValidator() *validator.Validate {
	instance := validator.New(validator.WithRequiredStructEnabled())
	instance.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return instance
}
