package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	passwordLower   = regexp.MustCompile(`[a-z]`)
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)

	registerOnce sync.Once
)

// RegisterValidators installs the custom rules and json field naming on gin's
// validator and turns on strict JSON decoding. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("password", validatePassword)
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validatePassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	n := utf8.RuneCountInString(pw)
	return n >= 8 && n <= 18 &&
		passwordLower.MatchString(pw) &&
		passwordUpper.MatchString(pw) &&
		passwordDigit.MatchString(pw) &&
		passwordSpecial.MatchString(pw)
}

var unknownFieldRe = regexp.MustCompile(`json: unknown field "([^"]+)"`)

// bindMessage converts a binding failure into a caller-facing message.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldErrorMessage(verrs[0])
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%q must be a %s", typeErr.Field, jsonKind(typeErr.Type))
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || strings.Contains(err.Error(), "EOF") {
		return "Request body must be valid JSON"
	}

	if m := unknownFieldRe.FindStringSubmatch(err.Error()); m != nil {
		return fmt.Sprintf("%q is not allowed", m[1])
	}
	return "Invalid request"
}

func fieldErrorMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", name)
	case "email":
		return fmt.Sprintf("%q must be a valid email", name)
	case "password":
		return fmt.Sprintf("%q must be 8 to 18 characters with upper and lower case letters, a digit and a special character", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%q is not allowed to be empty", name)
		}
		return fmt.Sprintf("%q must be greater than or equal to %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%q must be less than or equal to %s", name, fe.Param())
	default:
		return fmt.Sprintf("%q is invalid", name)
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	default:
		return "valid value"
	}
}
