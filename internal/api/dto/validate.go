package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks req against its `validate` tags. Failures become a
// VALIDATION_FAILED error whose details map each json field to the rule it
// broke.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	first := fieldErrs[0]
	if first.Tag() == "required" {
		return apperrors.NewValidationError(first.Field()+" is required", details)
	}
	return apperrors.NewValidationError(first.Field()+" is invalid", details)
}
