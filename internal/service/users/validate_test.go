package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		input Input
		want  FieldErrors
	}{
		{
			name:  "valid",
			input: Input{Name: "Al", Email: "a@b.com", Role: "Viewer"},
			want:  FieldErrors{},
		},
		{
			name:  "all fields invalid",
			input: Input{Name: "", Email: "bad-email", Role: ""},
			want: FieldErrors{
				"name":  MsgNameRequired,
				"email": MsgEmailInvalid,
				"role":  MsgRoleRequired,
			},
		},
		{
			name:  "whitespace only",
			input: Input{Name: "   ", Email: "  ", Role: "Admin"},
			want:  FieldErrors{"name": MsgNameRequired, "email": MsgEmailRequired},
		},
		{
			name:  "short name after trim",
			input: Input{Name: "  A  ", Email: "a@b.co", Role: "Editor"},
			want:  FieldErrors{"name": MsgNameTooShort},
		},
		{
			name:  "two rune name",
			input: Input{Name: "Łó", Email: "x@y.io", Role: "Admin"},
			want:  FieldErrors{},
		},
		{
			name:  "email without dot in domain",
			input: Input{Name: "Ann", Email: "ann@localhost", Role: "Admin"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "email with two at signs",
			input: Input{Name: "Ann", Email: "a@b@c.com", Role: "Admin"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "email with inner whitespace",
			input: Input{Name: "Ann", Email: "an n@b.com", Role: "Admin"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "email with no-break space",
			input: Input{Name: "Al", Email: "a\u00a0b@c.com", Role: "Viewer"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "email with vertical tab",
			input: Input{Name: "Al", Email: "a\vb@c.com", Role: "Viewer"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "email with em space in domain",
			input: Input{Name: "Al", Email: "a@b\u2003x.com", Role: "Viewer"},
			want:  FieldErrors{"email": MsgEmailInvalid},
		},
		{
			name:  "unknown role",
			input: Input{Name: "Ann", Email: "ann@b.com", Role: "Owner"},
			want:  FieldErrors{"role": MsgRoleRequired},
		},
		{
			name:  "role is case sensitive",
			input: Input{Name: "Ann", Email: "ann@b.com", Role: "admin"},
			want:  FieldErrors{"role": MsgRoleRequired},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Validate(tc.input))
		})
	}
}

func TestValidationErrorMessageListsFields(t *testing.T) {
	err := &ValidationError{Fields: Validate(Input{Email: "x"})}
	assert.Equal(t, "invalid user: email, name, role", err.Error())
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("john.smith@email.com"))
	assert.False(t, ValidEmail(" john@email.com"))
	assert.False(t, ValidEmail("john@.com."))
}
