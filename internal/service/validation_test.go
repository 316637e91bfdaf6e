package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{{"name", "bad"}, {"password", "worse"}}}
	if got := err.Error(); got != "validation failed: name: bad; password: worse" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUpdateArticleInput_Validate(t *testing.T) {
	blank := "   "
	long := strings.Repeat("t", 256)
	ok := "fine"

	tests := []struct {
		name   string
		in     UpdateArticleInput
		fields []string
	}{
		{"empty patch", UpdateArticleInput{}, nil},
		{"valid title", UpdateArticleInput{Title: &ok}, nil},
		{"blank title", UpdateArticleInput{Title: &blank}, []string{"title"}},
		{"long title and blank content", UpdateArticleInput{Title: &long, Content: &blank}, []string{"title", "content"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFields(t, tt.in.Validate(), tt.fields)
		})
	}
}

func TestUpdateProfileInput_Validate(t *testing.T) {
	blank := ""
	name := "Alice"
	pw := "longenough"
	other := "different1"

	tests := []struct {
		name   string
		in     UpdateProfileInput
		fields []string
	}{
		{"nothing", UpdateProfileInput{}, nil},
		{"name only", UpdateProfileInput{Name: &name}, nil},
		{"blank name", UpdateProfileInput{Name: &blank}, []string{"name"}},
		{"password without confirmation", UpdateProfileInput{Password: &pw}, []string{"password"}},
		{"password mismatch", UpdateProfileInput{Password: &pw, PasswordConfirmation: &other}, []string{"password"}},
		{"password confirmed", UpdateProfileInput{Password: &pw, PasswordConfirmation: &pw}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFields(t, tt.in.Validate(), tt.fields)
		})
	}
}

func TestPreRegisterInput_Validate(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"A@X.COM", true},
		{"", false},
		{"a@", false},
		{"<a@x.com>", false},
		{"Alice <a@x.com>", false},
	}

	for _, tt := range tests {
		err := PreRegisterInput{Email: tt.email}.Validate()
		if tt.valid && err != nil {
			t.Errorf("%q: unexpected error %v", tt.email, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("%q: expected validation error", tt.email)
		}
	}
}

func TestValidID(t *testing.T) {
	if !validID(ulid.Make().String()) {
		t.Error("fresh ULID should be valid")
	}
	for _, id := range []string{"", "123", "../etc/passwd", strings.Repeat("Z", 26)} {
		if validID(id) {
			t.Errorf("validID(%q) = true", id)
		}
	}
}

func assertFields(t *testing.T, err error, want []string) {
	t.Helper()
	if len(want) == 0 {
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		return
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, f := range want {
		if !verr.Has(f) {
			t.Errorf("missing error for field %s in %v", f, verr.Fields)
		}
	}
}

func TestVerifyRegistrationInput_ReportsEveryField(t *testing.T) {
	err := VerifyRegistrationInput{Token: " ", Name: strings.Repeat("n", 256), Password: "longenough", PasswordConfirmation: "different1"}.Validate()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := map[string]string{
		"token":    "The token field is required.",
		"name":     "The name field must not be greater than 255 characters.",
		"password": "The password field confirmation does not match.",
	}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %d field errors, got %v", len(want), verr.Fields)
	}
	for _, f := range verr.Fields {
		if want[f.Field] != f.Message {
			t.Errorf("%s: got %q, want %q", f.Field, f.Message, want[f.Field])
		}
	}
}

func TestVerifyRegistrationInput_ShortPassword(t *testing.T) {
	err := VerifyRegistrationInput{Token: "t", Name: "Ann", Password: "short", PasswordConfirmation: "short"}.Validate()

	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 1 {
		t.Fatalf("expected one field error, got %v", err)
	}
	if got := verr.Fields[0].Message; got != "The password field must be at least 8 characters." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCommentInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"too short", "nine char", false},
		{"lower bound", "ten chars!", true},
		{"upper bound", strings.Repeat("c", 100), true},
		{"too long", strings.Repeat("c", 101), false},
		{"multibyte counts characters", strings.Repeat("é", 100), true},
		{"blank", strings.Repeat(" ", 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			if !tt.valid {
				fields = []string{"content"}
			}
			assertFields(t, CreateCommentInput{Content: tt.content}.Validate(), fields)
			content := tt.content
			assertFields(t, UpdateCommentInput{Content: &content}.Validate(), fields)
		})
	}

	assertFields(t, UpdateCommentInput{}.Validate(), nil)
}

func TestPatchInputs_Empty(t *testing.T) {
	s := "x"
	if !(UpdateArticleInput{}).Empty() || (UpdateArticleInput{Content: &s}).Empty() {
		t.Error("UpdateArticleInput.Empty is wrong")
	}
	if !(UpdateCommentInput{}).Empty() || (UpdateCommentInput{Content: &s}).Empty() {
		t.Error("UpdateCommentInput.Empty is wrong")
	}
	if !(UpdateProfileInput{}).Empty() || (UpdateProfileInput{Name: &s}).Empty() {
		t.Error("UpdateProfileInput.Empty is wrong")
	}
}
