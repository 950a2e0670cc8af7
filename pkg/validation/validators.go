package validation

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"go-ats-backend/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Regex patterns
var (
	// Calendar date as posted by date inputs: YYYY-MM-DD
	isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Custom tags, also reported by struct level rules
const (
	TagISODate               = "isodate"
	TagEndAfterStart         = "end_after_start"
	TagEducationOrExperience = "education_or_experience"
)

// New returns a validator that reports fields by their JSON names and knows
// every candidate rule.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation(TagISODate, ISODate)

	v.RegisterStructValidation(EducationDates, domain.EducationInput{})
	v.RegisterStructValidation(WorkExperienceDates, domain.WorkExperienceInput{})
	v.RegisterStructValidation(EducationOrExperience, domain.CreateCandidateInput{})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// ISODate validates a YYYY-MM-DD string that is also a real calendar date
func ISODate(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if !isoDateRegex.MatchString(val) {
		return false
	}
	_, err := time.Parse(domain.DateLayout, val)
	return err == nil
}

// EducationDates requires the end date, when present, to be after the start date
func EducationDates(sl validator.StructLevel) {
	e := sl.Current().Interface().(domain.EducationInput)
	if !StartsBeforeEnd(e.StartDate, e.EndDate) {
		sl.ReportError(e.EndDate, "endDate", "EndDate", TagEndAfterStart, "")
	}
}

// WorkExperienceDates requires the end date, when present, to be after the start date
func WorkExperienceDates(sl validator.StructLevel) {
	w := sl.Current().Interface().(domain.WorkExperienceInput)
	if !StartsBeforeEnd(w.StartDate, w.EndDate) {
		sl.ReportError(w.EndDate, "endDate", "EndDate", TagEndAfterStart, "")
	}
}

// EducationOrExperience requires at least one entry across both lists
func EducationOrExperience(sl validator.StructLevel) {
	in := sl.Current().Interface().(domain.CreateCandidateInput)
	if len(in.Education) == 0 && len(in.WorkExperience) == 0 {
		sl.ReportError(in.Education, "education", "Education", TagEducationOrExperience, "")
	}
}

// StartsBeforeEnd compares two calendar dates strictly. Unparseable dates are
// left to the isodate rule and count as ordered here.
func StartsBeforeEnd(start string, end *string) bool {
	if end == nil {
		return true
	}
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return true
	}
	e, err := time.Parse(domain.DateLayout, *end)
	if err != nil {
		return true
	}
	return s.Before(e)
}
