package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the CRM enum tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations adds leadstatus, studentstatus, agencystatus and crmrole.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("leadstatus", oneOfTrimmed(LeadStatuses))
	_ = v.RegisterValidation("studentstatus", oneOfTrimmed(StudentStatuses))
	_ = v.RegisterValidation("agencystatus", oneOfTrimmed(AgencyStatuses))
	_ = v.RegisterValidation("crmrole", func(fl validator.FieldLevel) bool {
		return UserRole(strings.TrimSpace(fl.Field().String())).Valid()
	})
}

func oneOfTrimmed(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return ContainsTrimmed(allowed, fl.Field().String())
	}
}

// ContainsTrimmed reports whether value, whitespace-trimmed, is one of allowed.
func ContainsTrimmed(allowed []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// CanonicalStatus matches raw case-insensitively against allowed and returns the stored spelling.
func CanonicalStatus(allowed []string, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, a := range allowed {
		if strings.EqualFold(a, raw) {
			return a, true
		}
	}
	return "", false
}
