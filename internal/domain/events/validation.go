package events

import (
	"errors"
	"fmt"
	"reflect"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// NewEventInput is the initiator-supplied payload for event creation.
type NewEventInput struct {
	Title             string    `validate:"required,min=3,max=120"`
	Annotation        string    `validate:"required,min=20,max=2000"`
	Description       string    `validate:"required,min=20,max=7000"`
	CategoryID        string    `validate:"required"`
	Location          *Location `validate:"required"`
	EventDate         time.Time `validate:"required"`
	Paid              *bool
	ParticipantLimit  *int `validate:"omitnil,min=0"`
	RequestModeration *bool
}

type updateRules struct {
	Title            *string   `validate:"omitnil,min=3,max=120"`
	Annotation       *string   `validate:"omitnil,min=20,max=2000"`
	Description      *string   `validate:"omitnil,min=20,max=7000"`
	CategoryID       *string   `validate:"omitnil,min=1"`
	Location         *Location `validate:"omitnil"`
	ParticipantLimit *int      `validate:"omitnil,min=0"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func validateNew(v *validator.Validate, in NewEventInput) error {
	return translate(v.Struct(in))
}

func validateUpdate(v *validator.Validate, p UpdateParams) error {
	return translate(v.Struct(updateRules{
		Title:            p.Title,
		Annotation:       p.Annotation,
		Description:      p.Description,
		CategoryID:       p.CategoryID,
		Location:         p.Location,
		ParticipantLimit: p.ParticipantLimit,
	}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: lowerFirst(fe.Field()), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be blank"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
