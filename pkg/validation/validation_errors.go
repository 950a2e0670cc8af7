package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one violated rule, addressed by its JSON path
// (e.g. "education.0.endDate").
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldLabels maps struct field names to user-friendly labels
var FieldLabels = map[string]string{
	// Candidate fields
	"FirstName": "First name",
	"LastName":  "Last name",
	"Email":     "Email",
	"Phone":     "Phone",
	"Address":   "Address",

	// Education fields
	"Institution":  "Institution",
	"Degree":       "Degree",
	"FieldOfStudy": "Field of study",

	// Work Experience fields
	"Company":     "Company",
	"Position":    "Position",
	"Description": "Description",

	// Shared
	"StartDate": "Start date",
	"EndDate":   "End date",
}

// FormatValidationErrors converts validator.ValidationErrors to ordered field errors
func FormatValidationErrors(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		// Not a validation error, return generic message
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldPath(e.Namespace()),
			Message: formatSingleError(e),
		})
	}
	return fieldErrors
}

// fieldPath turns "CreateCandidateInput.education[0].endDate" into "education.0.endDate"
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

// formatSingleError formats a single validation error to a user-friendly message
func formatSingleError(e validator.FieldError) string {
	label := getFieldLabel(e.StructField())
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)

	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, param)

	case "email":
		return "Invalid email format"

	case TagISODate:
		return fmt.Sprintf("%s: invalid date format (YYYY-MM-DD)", label)

	case TagEndAfterStart:
		return "Start date must be before end date"

	case TagEducationOrExperience:
		return "At least one education or work experience entry is required"

	default:
		// Fallback for unknown tags
		return fmt.Sprintf("%s failed validation (%s)", label, e.Tag())
	}
}

// getFieldLabel returns the user-friendly label for a field
func getFieldLabel(fieldName string) string {
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	return formatCamelCase(fieldName)
}

// formatCamelCase converts CamelCase to spaced words
func formatCamelCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune(' ')
		}
		result.WriteRune(r)
	}
	return result.String()
}
