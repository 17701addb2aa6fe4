package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	validate      = validator.New()
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
)

func init() {
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidateRequest runs the struct's validate tags and returns one entry
// per failing field, or nil.
func ValidateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error(), Type: "invalid"}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: errorMsg(fe),
			Type:    fe.Tag(),
		})
	}
	return out
}

func errorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "username":
		return "3-30 letters, digits or underscores"
	default:
		return "Invalid value"
	}
}

// RespondWithValidationError writes the 400 body for failed validation.
func RespondWithValidationError(c echo.Context, errs []ValidationError) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   "invalid request data",
		"details": errs,
	})
}
