package queries

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/Veraticus/spendwise/internal/model"
)

// MinPasswordLength is the shortest password the forms accept.
const MinPasswordLength = 8

// MinNameLength is the shortest display name the profile form accepts.
const MinNameLength = 2

// ValidationError holds one message per invalid field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Field returns the message for name, or "" if the field is valid.
func (e *ValidationError) Field(name string) string {
	return e.Fields[name]
}

type field struct {
	name  string
	value string
}

type validator struct {
	fields map[string]string
}

func (v *validator) fail(name, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, ok := v.fields[name]; !ok {
		v.fields[name] = msg
	}
}

func (v *validator) required(f field) bool {
	if strings.TrimSpace(f.value) == "" {
		v.fail(f.name, "is required")
		return false
	}
	return true
}

func (v *validator) email(name, value string) {
	if !v.required(field{name, value}) {
		return
	}
	if !validEmail(value) {
		v.fail(name, "Please enter a valid email")
	}
}

func (v *validator) password(name, value string) {
	if !v.required(field{name, value}) {
		return
	}
	if len([]rune(value)) < MinPasswordLength {
		v.fail(name, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func requireFields(fields ...field) error {
	var v validator
	for _, f := range fields {
		v.required(f)
	}
	return v.err()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// ValidateLogin checks the login form.
func ValidateLogin(creds model.LoginCredentials) error {
	var v validator
	v.email("email", creds.Email)
	v.required(field{"password", creds.Password})
	return v.err()
}

// ValidateRegister checks the registration form.
func ValidateRegister(data model.RegisterData) error {
	var v validator
	v.email("email", data.Email)
	v.password("password", data.Password)
	if v.required(field{"name", data.Name}) && len([]rune(strings.TrimSpace(data.Name))) < MinNameLength {
		v.fail("name", fmt.Sprintf("Name must be at least %d characters", MinNameLength))
	}
	return v.err()
}

// ValidateProfile checks a profile update. At least one field must be set.
func ValidateProfile(req model.UpdateUserRequest) error {
	var v validator
	if req.Name == "" && req.Email == "" {
		v.fail("name", "Provide a name or an email to update")
		return v.err()
	}
	if req.Name != "" && len([]rune(strings.TrimSpace(req.Name))) < MinNameLength {
		v.fail("name", fmt.Sprintf("Name must be at least %d characters", MinNameLength))
	}
	if req.Email != "" && !validEmail(req.Email) {
		v.fail("email", "Please enter a valid email")
	}
	return v.err()
}

// ValidatePasswordChange checks the change-password form.
func ValidatePasswordChange(req model.ChangePasswordRequest) error {
	var v validator
	v.required(field{"currentPassword", req.CurrentPassword})
	v.password("newPassword", req.NewPassword)
	if req.NewPassword != "" && req.NewPassword == req.CurrentPassword {
		v.fail("newPassword", "New password must differ from the current one")
	}
	return v.err()
}

// ValidatePasswordReset checks the reset-password form.
func ValidatePasswordReset(req model.ResetPasswordRequest) error {
	var v validator
	v.required(field{"token", req.Token})
	v.password("newPassword", req.NewPassword)
	return v.err()
}
