package directory

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Activity content is a closed set of per-type variants rather than one
// permissive blob: each variant carries its own length and count ceilings.

// TrendContent is the payload of a "trend" activity.
type TrendContent struct {
	Topic    string   `json:"topic" validate:"required,max=500"`
	Summary  string   `json:"summary" validate:"required,max=10000"`
	Keywords []string `json:"keywords" validate:"max=50,dive,max=100"`
	Sources  []string `json:"sources" validate:"max=200,dive,max=2000"`
}

// IdeaContent is the payload of an "idea" activity.
type IdeaContent struct {
	Title  string   `json:"title" validate:"required,max=500"`
	Pitch  string   `json:"pitch" validate:"required,max=10000"`
	Angles []string `json:"angles" validate:"max=100,dive,max=1000"`
}

// PRContent is the payload of a "pr" activity (headlines or a full release).
type PRContent struct {
	Headline    string   `json:"headline" validate:"required,max=500"`
	Body        string   `json:"body" validate:"max=10000"`
	Boilerplate string   `json:"boilerplate" validate:"max=2000"`
	Alternates  []string `json:"alternates" validate:"max=25,dive,max=500"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so validation details match the wire payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseActivityType validates an activity type string.
func ParseActivityType(s string) (ActivityType, error) {
	switch ActivityType(strings.TrimSpace(strings.ToLower(s))) {
	case ActivityTrend:
		return ActivityTrend, nil
	case ActivityIdea:
		return ActivityIdea, nil
	case ActivityPR:
		return ActivityPR, nil
	default:
		return "", fmt.Errorf("%w: activity type must be one of trend, idea, pr", ErrInvalidInput)
	}
}

// ValidateContent checks a decoded content payload against the variant schema
// for the activity type. On failure it returns a *ValidationError listing the
// offending fields.
func ValidateContent(t ActivityType, content map[string]any) error {
	if content == nil {
		return &ValidationError{Fields: []FieldError{{Field: "content", Message: "is required"}}}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("%w: content is not JSON-compatible", ErrInvalidInput)
	}

	var target any
	switch t {
	case ActivityTrend:
		target = &TrendContent{}
	case ActivityIdea:
		target = &IdeaContent{}
	case ActivityPR:
		target = &PRContent{}
	default:
		return fmt.Errorf("%w: unsupported activity type %q", ErrInvalidInput, t)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &ValidationError{Fields: []FieldError{{Field: "content", Message: "does not match the schema for this activity type"}}}
	}
	return CheckStruct(target)
}

// CheckStruct runs validator tags on a request struct and converts failures
// into a *ValidationError.
func CheckStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fieldPath(fe),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationError{Fields: fields}
}

func fieldPath(fe validator.FieldError) string {
	// Namespace looks like "TrendContent.keywords[3]"; drop the root struct.
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must have at most %s items", fe.Param())
		default:
			return fmt.Sprintf("must be at most %s", fe.Param())
		}
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
