package lifecycle

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"realmsteward.io/steward/internal/domain"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("realmname", func(fl validator.FieldLevel) bool {
		return domain.ValidRealmName(fl.Field().String())
	})
	_ = v.RegisterValidation("environment", func(fl validator.FieldLevel) bool {
		return domain.Environment(fl.Field().String()).IsValid()
	})
	return v
}

// validateStruct returns a VALIDATION_FAILED error listing every failing field.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ErrProcessing(err)
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Code:    fieldCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return apperrors.ErrValidation(fields)
}

func fieldCode(tag string) string {
	switch tag {
	case "required":
		return apperrors.FieldRequired
	case "email":
		return apperrors.FieldInvalidFormat
	case "max":
		return apperrors.FieldTooLong
	case "realmname":
		return apperrors.FieldRealmNameRules
	default:
		return apperrors.FieldInvalidValue
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "realmname":
		return "must start with a letter and contain only letters, digits, underscores and hyphens"
	case "environment":
		return "must be one of dev, test, prod"
	default:
		return "is invalid"
	}
}
