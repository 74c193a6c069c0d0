package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/room-reservations/internal/application"
)

// WireTimeLayout is the wall clock format of times on the wire, interpreted in the
// service time zone.
const WireTimeLayout = "2006-01-02T15:04:05"

var wallTimeValidator validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := time.Parse(WireTimeLayout, value)
	return err == nil
}

// newValidator returns a validator that reports JSON field names and knows the
// "walltime" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	if err := v.RegisterValidation("walltime", wallTimeValidator); err != nil {
		panic(fmt.Sprintf("register walltime validation: %v", err))
	}
	return v
}

// validateRequest runs struct validation and converts failures into an
// application.ValidationError keyed by JSON path, e.g. "recurrence.count".
func validateRequest(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if _, exists := vErr.FieldErrors[field]; !exists {
			vErr.FieldErrors[field] = describeFieldError(fe)
		}
	}
	return vErr
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "ne":
		return fmt.Sprintf("%s must not be %s", name, fe.Param())
	case "walltime":
		return fmt.Sprintf("%s must use the format %s", name, WireTimeLayout)
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}

func parseWallTime(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(WireTimeLayout, value, loc)
}

func formatWallTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WireTimeLayout)
}
