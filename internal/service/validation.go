package service

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	appErrors "github.com/noah-isme/timetable-admin/pkg/errors"
)

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

// fieldMessages maps "field.tag" or "field" to a user facing message.
type fieldMessages map[string]string

// validationError converts validator failures into a validation error with one entry per field.
// Any other error is returned unchanged.
func validationError(err error, message string, messages fieldMessages) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]appErrors.FieldError, 0, len(verrs))
	seen := make(map[string]struct{}, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		fields = append(fields, appErrors.FieldError{Field: field, Message: fieldMessage(fe, messages)})
	}
	return appErrors.Validation(message, fields...)
}

func fieldMessage(fe validator.FieldError, messages fieldMessages) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := messages[fe.Field()]; ok {
		return msg
	}
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Enter a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return "Passwords do not match"
	}
	return fmt.Sprintf("%s is invalid", label)
}

// mergeFields appends extra field errors to a validation error, creating one when err is nil.
func mergeFields(err error, message string, extra ...appErrors.FieldError) error {
	if len(extra) == 0 {
		return err
	}
	if err == nil {
		return appErrors.Validation(message, extra...)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code == appErrors.ErrValidation.Code {
		known := appErr.FieldMap()
		for _, f := range extra {
			if _, exists := known[f.Field]; !exists {
				appErr.Fields = append(appErr.Fields, f)
			}
		}
		return appErr
	}
	return err
}

// isRowID reports whether id is a canonical uuid. Anything else can never match a row.
func isRowID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

var plainText = bluemonday.StrictPolicy()

// stripMarkup removes every HTML element from free text input. Entities are decoded again since
// views escape on output.
func stripMarkup(raw string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(raw)))
}
