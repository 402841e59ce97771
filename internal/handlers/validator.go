package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"maclink/internal/apperrors"
)

var (
	fullNamePattern  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	hexColorPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	macPattern       = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	sortSpecPattern  = regexp.MustCompile(`^[a-zA-Z_]+(:asc|:desc)?$`)
)

// messages overrides the generic message for a field/tag pair.
var messages = map[string]string{
	"email.email":                         "Please provide a valid email address",
	"email.required":                      "Please provide a valid email address",
	"password.min":                        "Password must be at least 8 characters long",
	"password.strongpassword":             "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
	"newPassword.min":                     "Password must be at least 8 characters long",
	"newPassword.strongpassword":          "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
	"fullName.required":                   "Full name is required",
	"fullName.min":                        "Full name must be between 2 and 100 characters",
	"fullName.max":                        "Full name must be between 2 and 100 characters",
	"fullName.fullname":                   "Full name can only contain letters, spaces, hyphens, and apostrophes",
	"confirmPassword.eqfield":             "Password confirmation does not match password",
	"confirmPassword.eqfield.NewPassword": "Password confirmation does not match new password",
	"page.min":                            "Page must be a positive integer",
	"limit.min":                           "Limit must be between 1 and 100",
	"limit.max":                           "Limit must be between 1 and 100",
	"sort.sortspec":                       "Sort format should be field:asc or field:desc",
	"subdomain.subdomain":                 "Subdomain may only contain lowercase letters, numbers and hyphens",
	"macAddress.mac":                      "Please provide a valid MAC address",
}

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return fullNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	_ = v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return subdomainPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("sortspec", func(fl validator.FieldLevel) bool {
		return sortSpecPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("mac", func(fl validator.FieldLevel) bool {
		return macPattern.MatchString(fl.Field().String())
	})
	return &RequestValidator{validate: v}
}

// isStrongPassword requires a lower case letter, an upper case letter, a
// digit and one of @$!%*?&.
func isStrongPassword(s string) bool {
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i any) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest(err.Error(), http.StatusBadRequest, err)
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return apperrors.Validation(fields...)
}

// fieldPath drops the top-level struct name: "SignupRequest.email" -> "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	key := fe.Field() + "." + fe.Tag()
	if msg, ok := messages[key+"."+fe.Param()]; ok {
		return msg
	}
	if msg, ok := messages[key]; ok {
		return msg
	}
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "objectid":
		return field + " must be a valid ObjectId"
	case "email":
		return "Please provide a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "hostname_rfc1123", "fqdn":
		return field + " must be a valid domain name"
	case "hexcolor6":
		return field + " must be a hex color like #3B82F6"
	}
	return field + " is invalid"
}

// bind decodes the request into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return apperrors.BadRequest(apperrors.MsgBodyTooLarge, http.StatusRequestEntityTooLarge, err)
		}
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return apperrors.BadRequest("Invalid request body", http.StatusBadRequest, err)
		}
		return err
	}
	return c.Validate(req)
}
