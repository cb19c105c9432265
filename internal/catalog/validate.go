package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"moodfood-backend/internal/mood"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func itemValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
			return mood.Label(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks every item in doc and rejects duplicate ids. The first
// problem found is returned wrapped in ErrValidation.
func Validate(doc Document) error {
	if doc.Foods == nil {
		return fmt.Errorf("%w: foods must be an array", ErrValidation)
	}
	seen := make(map[string]int, len(doc.Foods))
	v := itemValidator()
	for i, item := range doc.Foods {
		if err := v.Struct(item); err != nil {
			return fmt.Errorf("%w: food item %d: %s", ErrValidation, i, describe(err))
		}
		if prev, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: food item %d: duplicate id %q (first at %d)", ErrValidation, i, item.ID, prev)
		}
		seen[item.ID] = i
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("missing required field '%s'", jsonName(fe.Field())))
		case "mood":
			parts = append(parts, fmt.Sprintf("unknown mood %q", fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("field '%s' failed %s", jsonName(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "PrepTime":
		return "prep_time"
	default:
		return strings.ToLower(field)
	}
}
