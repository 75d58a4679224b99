package notes

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names used in FieldError and in form inputs.
const (
	FieldTitle   = "title"
	FieldContent = "content"
	FieldTag     = "tag"
)

// FieldError is a validation failure on one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult lists every field that failed, in form order.
type ValidationResult struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// OK reports whether validation passed.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// For returns the message for field, or "".
func (r ValidationResult) For(field string) string {
	for _, fe := range r.Errors {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Map returns field -> message for templates.
func (r ValidationResult) Map() map[string]string {
	m := make(map[string]string, len(r.Errors))
	for _, fe := range r.Errors {
		m[fe.Field] = fe.Message
	}
	return m
}

func (r ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// createInput mirrors CreateParams with validation rules. Lengths are rune
// counts, which is how validator measures strings.
type createInput struct {
	Title   string `form:"title" validate:"required,min=3,max=50"`
	Content string `form:"content" validate:"max=500"`
	Tag     string `form:"tag" validate:"required,oneof=Todo Work Personal Meeting Shopping"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("form")
	})
	return v
}

// Validate checks p after trimming. It never touches the network.
func Validate(p CreateParams) ValidationResult {
	p = Normalize(p)
	err := validate.Struct(createInput{Title: p.Title, Content: p.Content, Tag: string(p.Tag)})
	if err == nil {
		return ValidationResult{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationResult{Errors: []FieldError{{Field: FieldTitle, Message: "Invalid note"}}}
	}
	result := ValidationResult{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, FieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return result
}

func messageFor(fe validator.FieldError) string {
	switch fe.Field() {
	case FieldTitle:
		switch fe.Tag() {
		case "required":
			return "Required"
		case "min":
			return "Title must be at least 3 characters"
		case "max":
			return "Title must be at most 50 characters"
		}
	case FieldContent:
		if fe.Tag() == "max" {
			return "Max 500 characters"
		}
	case FieldTag:
		if fe.Tag() == "required" {
			return "Required"
		}
		return "Choose a valid tag"
	}
	return "Invalid value"
}
