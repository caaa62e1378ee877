package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrInvalidInput matches every FieldErrors value.
var ErrInvalidInput = errors.New("invalid input")

const (
	maxNameLength     = 50
	minPasswordLength = 8
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// FieldErrors maps an input field to what is wrong with it. Requests failing
// validation never reach the backend.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) true.
func (f FieldErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

func checkName(errs FieldErrors, field, label, value string) {
	switch {
	case strings.TrimSpace(value) == "":
		errs[field] = label + " is required"
	case utf8.RuneCountInString(value) > maxNameLength:
		errs[field] = label + " must not exceed 50 characters"
	}
}

func checkCredentials(errs FieldErrors, email, password string) {
	switch {
	case email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		errs["email"] = "Email is invalid"
	}
	switch {
	case password == "":
		errs["password"] = "Password is required"
	case len(password) < minPasswordLength:
		errs["password"] = "Password must be at least 8 characters"
	}
}

// Validate checks the register form.
func (in RegisterInput) Validate() error {
	errs := FieldErrors{}
	checkName(errs, "firstName", "First name", in.FirstName)
	checkName(errs, "lastName", "Last name", in.LastName)
	checkCredentials(errs, in.Email, in.Password)
	return errs.orNil()
}

// Validate checks the login form.
func (in LoginInput) Validate() error {
	errs := FieldErrors{}
	checkCredentials(errs, in.Email, in.Password)
	return errs.orNil()
}

// Normalize trims content and image URL; an empty image URL is dropped.
func (in PostInput) Normalize() PostInput {
	if in.Content != nil {
		c := strings.TrimSpace(*in.Content)
		in.Content = &c
	}
	if in.ImageURL != nil {
		u := strings.TrimSpace(*in.ImageURL)
		if u == "" {
			in.ImageURL = nil
		} else {
			in.ImageURL = &u
		}
	}
	return in
}

// Validate requires non-blank content. Updates may omit content entirely.
func (in PostInput) Validate(creating bool) error {
	errs := FieldErrors{}
	switch {
	case in.Content == nil && creating:
		errs["content"] = "Content is required"
	case in.Content != nil && strings.TrimSpace(*in.Content) == "":
		errs["content"] = "Content is required"
	}
	return errs.orNil()
}

// Validate requires non-blank content.
func (in CommentInput) Validate() error {
	if strings.TrimSpace(in.Content) == "" {
		return FieldErrors{"content": "Content is required"}
	}
	return nil
}
