package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"lora-studio-backend/internal/store"
)

// ValidationResult is what a body Validator reports. Errors maps a field
// name to the rule it failed.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

type Validator func(body store.Document) ValidationResult

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// RequireFields fails when any named field is absent, null or an empty string.
func RequireFields(fields ...string) Validator {
	return func(body store.Document) ValidationResult {
		errs := map[string]string{}
		for _, field := range fields {
			v, ok := body[field]
			if !ok || v == nil {
				errs[field] = "required"
				continue
			}
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				errs[field] = "required"
			}
		}
		if len(errs) > 0 {
			return ValidationResult{Valid: false, Errors: errs}
		}
		return ValidationResult{Valid: true}
	}
}

// StructValidator decodes the body into T and runs its validate tags.
func StructValidator[T any]() Validator {
	return func(body store.Document) ValidationResult {
		var v T
		if err := store.Decode(body, &v); err != nil {
			return ValidationResult{Valid: false, Errors: map[string]string{"body": "invalid field types"}}
		}
		if errs := ValidateStruct(v); errs != nil {
			return ValidationResult{Valid: false, Errors: errs}
		}
		return ValidationResult{Valid: true}
	}
}

// ValidateStruct runs the validate tags on v and returns field → rule for
// every failure, or nil when v is valid.
func ValidateStruct(v any) map[string]string {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"body": "invalid"}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}

// JSONObject accepts any object body. Use it where the handler applies its
// own field whitelist.
func JSONObject() Validator {
	return func(store.Document) ValidationResult {
		return ValidationResult{Valid: true}
	}
}
