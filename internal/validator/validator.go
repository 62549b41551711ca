package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator builds the shared validator with the billing specific tags.
// Calling it more than once returns the same instance.
func NewValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		// currency accepts any case, the service upper-cases it
		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			_, err := types.NormalizeCurrency(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// ValidateRequest validates req against its struct tags and returns an
// ErrValidation carrying one detail per failed field.
func ValidateRequest(req interface{}) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Field()] = fe.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
