package usecase

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"go-ats-backend/internal/domain"
	"go-ats-backend/pkg/apperror"
)

// decodeCandidateForm parses the JSON-encoded entry lists and normalizes the
// scalar fields. Malformed JSON stops here, before any field validation.
func decodeCandidateForm(form domain.CandidateForm) (*domain.CreateCandidateInput, error) {
	input := &domain.CreateCandidateInput{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Email:     strings.TrimSpace(form.Email),
		Phone:     optionalString(form.Phone),
		Address:   optionalString(form.Address),
	}

	if err := decodeJSONList(form.Education, &input.Education); err != nil {
		return nil, malformedPayloadError()
	}
	if err := decodeJSONList(form.WorkExperience, &input.WorkExperience); err != nil {
		return nil, malformedPayloadError()
	}

	for i := range input.Education {
		e := &input.Education[i]
		e.Institution = strings.TrimSpace(e.Institution)
		e.Degree = strings.TrimSpace(e.Degree)
		e.FieldOfStudy = strings.TrimSpace(e.FieldOfStudy)
		e.StartDate = strings.TrimSpace(e.StartDate)
		e.EndDate = optionalPtr(e.EndDate)
	}
	for i := range input.WorkExperience {
		w := &input.WorkExperience[i]
		w.Company = strings.TrimSpace(w.Company)
		w.Position = strings.TrimSpace(w.Position)
		w.StartDate = strings.TrimSpace(w.StartDate)
		w.EndDate = optionalPtr(w.EndDate)
		w.Description = optionalPtr(w.Description)
	}

	return input, nil
}

// decodeJSONList treats an empty field and JSON null as an empty list.
// Object keys must match the json tag exactly; encoding/json alone would also
// accept "INSTITUTION" or "Institution".
func decodeJSONList[T any](raw string, dst *[]T) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = []T{}
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return err
	}

	known := jsonFieldNames(reflect.TypeOf((*T)(nil)).Elem())
	out := make([]T, len(elems))
	for i, elem := range elems {
		if err := decodeExactKeys(elem, known, &out[i]); err != nil {
			return err
		}
	}
	*dst = out
	return nil
}

// decodeExactKeys drops object keys that are not exact field names before
// decoding. Non-object elements go straight to json.Unmarshal.
func decodeExactKeys(elem json.RawMessage, known map[string]struct{}, dst interface{}) error {
	if !bytes.HasPrefix(bytes.TrimSpace(elem), []byte("{")) {
		return json.Unmarshal(elem, dst)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return err
	}
	for k := range fields {
		if _, ok := known[k]; !ok {
			delete(fields, k)
		}
	}

	filtered, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(filtered, dst)
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = struct{}{}
	}
	return names
}

func malformedPayloadError() *apperror.AppError {
	return apperror.BadRequest("Invalid JSON data").
		WithErrors([]string{"education and workExperience must be valid JSON"})
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalString(*s)
}
