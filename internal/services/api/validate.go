package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/httpx"
)

// payloadValidator checks request payload structs. Field names in errors
// are the JSON names.
var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload decodes the request body into dst and validates it.
func decodePayload(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	}
	return validatePayload(dst)
}

func validatePayload(payload any) error {
	err := payloadValidator.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request payload", err)
	}
	first := fieldErrs[0]
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument,
		describeFieldError(first),
		map[string]string{"Field": first.Field()}, err)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be an email address", fe.Field())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a URL", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
