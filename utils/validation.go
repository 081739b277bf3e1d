package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"tradeshield/taxid"
)

var validate *validator.Validate

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^[0-9]{10,15}$`)
)

func init() {
	validate = validator.New()
	// report fields by their JSON names so errors line up with request bodies
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// handlers normalize before use, so surrounding whitespace is accepted here
	validate.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return taxid.ValidPAN(taxid.Normalize(fl.Field().String()))
	})
	validate.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
		return taxid.ValidGST(taxid.Normalize(fl.Field().String()))
	})
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}

// MaskTaxID hides all but the last four characters of a PAN or GSTIN.
func MaskTaxID(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}

func FormatValidationError(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errs
	}
	for _, fieldError := range validationErrors {
		field := lowerFirst(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			errs[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errs[field] = "Invalid email format"
		case "pan":
			errs[field] = "Invalid PAN format"
		case "gstin":
			errs[field] = "Invalid GST format"
		case "min":
			errs[field] = fmt.Sprintf("%s must be at least %s characters", field, fieldError.Param())
		case "max":
			errs[field] = fmt.Sprintf("%s must be at most %s characters", field, fieldError.Param())
		case "len":
			errs[field] = fmt.Sprintf("%s must be exactly %s characters", field, fieldError.Param())
		case "oneof":
			errs[field] = fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
		default:
			errs[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return errs
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
