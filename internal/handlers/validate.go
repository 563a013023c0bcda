package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validatorInstance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so API errors match the payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one invalid input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every invalid input of a write.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, fe := range ve {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// For returns the message for field, or "".
func (ve ValidationErrors) For(field string) string {
	for _, fe := range ve {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

func validate(v any) error {
	err := validatorInstance.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath turns "Post.gallery[1].imageUrl" into "gallery.1.imageUrl".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	r := strings.NewReplacer("[", ".", "]", "")
	return r.Replace(ns)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Please enter a valid email address."
	case "url":
		return "Please enter a valid URL."
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("No more than %s items.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	}
	return fmt.Sprintf("Failed the %q check.", fe.Tag())
}
