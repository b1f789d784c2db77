package users

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Field error messages shown next to the add-user form inputs.
const (
	MsgNameRequired  = "Name is required"
	MsgNameTooShort  = "Name must be at least 2 characters"
	MsgEmailRequired = "Email is required"
	MsgEmailInvalid  = "Please enter a valid email"
	MsgRoleRequired  = "Please select a role"
)

// mailboxPattern accepts local@domain.tld with a single @. Its \s is ASCII
// only; ValidEmail rejects Unicode spaces itself.
var mailboxPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

// Input is a candidate user as submitted by a form or API client.
type Input struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// FieldErrors maps a field name (name, email, role) to its message.
// An empty map means the input is valid.
type FieldErrors map[string]string

// Fields lists the failing field names in sorted order.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for field := range f {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// ValidationError reports a rejected candidate.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "invalid user: " + strings.Join(e.Fields.Fields(), ", ")
}

// candidate is the normalized form checked by the validator. The name is
// trimmed before its length is measured; the email pattern sees the raw value.
type candidate struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"present,mailbox"`
	Role  string `json:"role" validate:"required,oneof=Admin Editor Viewer"`
}

// Validate checks every field independently and reports all failures.
func Validate(in Input) FieldErrors {
	errs := FieldErrors{}
	c := candidate{
		Name:  strings.TrimSpace(in.Name),
		Email: in.Email,
		Role:  in.Role,
	}
	err := validate.Struct(c)
	if err == nil {
		return errs
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["name"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = messageFor(fe.Field(), fe.Tag())
	}
	return errs
}

// ValidEmail reports whether value has the mailbox shape used for users.
func ValidEmail(value string) bool {
	return strings.IndexFunc(value, unicode.IsSpace) < 0 && mailboxPattern.MatchString(value)
}

func messageFor(field, tag string) string {
	switch field {
	case "name":
		if tag == "min" {
			return MsgNameTooShort
		}
		return MsgNameRequired
	case "email":
		if tag == "mailbox" {
			return MsgEmailInvalid
		}
		return MsgEmailRequired
	default:
		return MsgRoleRequired
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations installs the "present" and "mailbox" tags on v.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return err
	}
	return v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
}
