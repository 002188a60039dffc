package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"max":  "%s must be at most %s characters",
	"gte":  "%s must be greater than or equal to %s",
	"lte":  "%s must be less than or equal to %s",
	"url":  "%s must be a valid URL",
	"uuid": "%s must be a UUID",
}

// validateRequest returns a single client-facing message describing the
// first invalid fields, or "" when the payload is valid.
func validateRequest(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid payload"
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if tmpl, ok := fieldMessages[fe.Tag()]; ok {
		if strings.Count(tmpl, "%s") == 2 {
			return fmt.Sprintf(tmpl, field, fe.Param())
		}
		return fmt.Sprintf(tmpl, field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
