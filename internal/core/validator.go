package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"tutorgate/internal/types"
)

// Validator wraps go-playground/validator with domain-specific rules and
// translates raw validator errors into the service's AppError taxonomy.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes a single field failure in a structured form
// that can be returned to clients inside AppError details.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates field errors and non-blocking warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// IsValid reports whether the result contains no blocking errors.
// Warnings alone do not make a result invalid.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	// plan: the value must name a known subscription tier.
	_ = v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		if val == "" {
			return true // pair with required for presence checks
		}
		return types.ValidPlan(types.Plan(val))
	})

	// chat_role: the value must be a role the completion providers accept.
	_ = v.RegisterValidation("chat_role", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
			return true
		case "":
			return true
		}
		return false
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates a struct against its `validate` tags.
// On failure it returns a *types.AppError whose code is derived from the
// first failing tag, with the complete field-level breakdown under the
// "validation_errors" details key.
func (v *Validator) ValidateStruct(s interface{}) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings validates a struct and returns the full
// structured result instead of collapsing it into a single error.
func (v *Validator) ValidateStructWithWarnings(s interface{}) ValidationResult {
	var result ValidationResult

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// validator.InvalidValidationError: the input was not a struct.
		v.logger.Error("validator received non-struct input", "error", err)
		result.Errors = append(result.Errors, ValidationError{
			Field:   "",
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "invalid input to validator",
		})
		return result
	}

	for _, fe := range validationErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldErrorMessage(fe),
		})
	}
	return result
}

// tagToErrorCode maps a validator tag name to the public error code used
// for failures of that tag.
func tagToErrorCode(tag string) string {
	switch tag {
	case "email":
		return string(types.ErrCodeValidationInvalidEmail)
	case "plan":
		return string(types.ErrCodeValidationInvalidPlan)
	case "required", "min", "max", "oneof", "chat_role":
		return string(types.ErrCodeValidationMissingField)
	default:
		return string(types.ErrCodeValidationMissingField)
	}
}

// fieldErrorMessage renders a human-readable message for a field error.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "plan":
		return "Invalid plan"
	case "chat_role":
		return fe.Field() + " must be one of: user, assistant, system"
	case "min":
		return fe.Field() + " is below the minimum of " + fe.Param()
	case "max":
		return fe.Field() + " exceeds the maximum of " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " failed validation rule " + fe.Tag()
	}
}
