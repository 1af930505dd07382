package membership

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"libraledger/internal/store"
)

// registration is the validated shape of an Add call.
type registration struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
	Role  Role   `validate:"required,role"`
}

func newValidator(roles []Role) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	// "role" only fails for non-empty values outside the configured set; "required" covers empty.
	err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return slices.Contains(roles, Role(fl.Field().String()))
	})
	if err != nil {
		return nil, fmt.Errorf("register role validation: %w", err)
	}
	return v, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", store.ErrValidation, field)
	case "role":
		return fmt.Errorf("%w: role %q is not recognized", store.ErrValidation, fe.Value())
	default:
		return fmt.Errorf("%w: %s failed %s", store.ErrValidation, field, fe.Tag())
	}
}
