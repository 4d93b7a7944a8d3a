// Package validation checks workflow and connection configs with
// go-playground/validator. Fields are reported by their YAML key so messages
// point at the line a user has to fix.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"metadata-ingestion/internal/common/errors"
)

// Issue is one failed rule
type Issue struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Validator wraps a configured validator.Validate
type Validator struct {
	v *validator.Validate
}

// messages maps a tag to a format taking the field and the tag parameter
var messages = map[string]string{
	"required":        "field '%s' is required",
	"url":             "field '%s' must be a valid URL",
	"min":             "field '%s' must be at least %s",
	"max":             "field '%s' must be at most %s",
	"gte":             "field '%s' must be greater than or equal to %s",
	"lte":             "field '%s' must be less than or equal to %s",
	"oneof":           "field '%s' must be one of: %s",
	"hostname":        "field '%s' must be a valid hostname",
	"cron_expression": "field '%s' must be a valid cron expression",
	"regexp":          "field '%s' must be a valid regular expression",
	"duration":        "field '%s' must be a valid duration",
}

// New returns a Validator with the ingestion tags registered:
// cron_expression, regexp and duration.
func New() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("cron_expression", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Validator{v: v}
}

// Struct validates s and folds every issue into one config error
func (val *Validator) Struct(s any) error {
	return asError(val.v.Struct(s))
}

// Var validates a single value against tag
func (val *Validator) Var(field any, tag string) error {
	return asError(val.v.Var(field, tag))
}

// Issues validates s and returns each failed rule; nil means s is valid
func (val *Validator) Issues(s any) []Issue {
	return issues(val.v.Struct(s))
}

func asError(err error) error {
	found := issues(err)
	switch len(found) {
	case 0:
		return nil
	case 1:
		return errors.ConfigError(found[0].Message)
	}

	msgs := make([]string, len(found))
	for i, is := range found {
		msgs[i] = is.Message
	}
	return errors.ConfigError("validation failed: " + strings.Join(msgs, "; "))
}

func issues(err error) []Issue {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return []Issue{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe)
		msg := fmt.Sprintf("field '%s' failed validation: %s", field, fe.Tag())
		if format, ok := messages[fe.Tag()]; ok {
			if strings.Count(format, "%s") == 2 {
				msg = fmt.Sprintf(format, field, fe.Param())
			} else {
				msg = fmt.Sprintf(format, field)
			}
		}
		out = append(out, Issue{Field: field, Tag: fe.Tag(), Param: fe.Param(), Message: msg})
	}
	return out
}

// fieldPath drops the root struct name: "WorkflowConfig.source.serviceName" -> "source.serviceName"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

var std = New()

// ValidateStruct validates s with the shared Validator
func ValidateStruct(s any) error {
	return std.Struct(s)
}

// ValidateVar validates one value with the shared Validator
func ValidateVar(field any, tag string) error {
	return std.Var(field, tag)
}

// Issues lists the failed rules of s using the shared Validator
func Issues(s any) []Issue {
	return std.Issues(s)
}
