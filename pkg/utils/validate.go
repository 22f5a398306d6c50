package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct runs tag-based validation and returns one message per
// failing field, keyed by the field's json name. A nil map means the payload
// is valid.
func ValidateStruct(payload interface{}) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	messages := map[string]string{}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		messages["payload"] = err.Error()
		return messages
	}

	for _, fe := range fieldErrors {
		messages[fe.Field()] = messageFor(fe)
	}
	return messages
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", fe.Field())
	case "email":
		return fmt.Sprintf("the %s must be a valid email address", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("the %s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("the %s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("the %s may not be greater than %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("the %s may not be greater than %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("the %s must be a valid identifier", fe.Field())
	default:
		return fmt.Sprintf("the %s field is invalid", fe.Field())
	}
}
