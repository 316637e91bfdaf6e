package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// Field limits shared by inputs. The validate tags below repeat them.
const (
	MaxNameLength     = 255
	MaxEmailLength    = 255
	MinPasswordLength = 8
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(err)
	}
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// check runs the struct rules and reports every failing field.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	name := humanize(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("The %s field is required.", name)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

func humanize(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// normalizeEmail trims surrounding space and lowercases the address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validID reports whether id could have been issued by this service.
func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// PreRegisterInput starts a registration.
type PreRegisterInput struct {
	Email string `json:"email" validate:"notblank,max=255,email"`
}

// Validate checks the email address.
func (in PreRegisterInput) Validate() error {
	in.Email = normalizeEmail(in.Email)
	return check(in)
}

// VerifyRegistrationInput completes a registration.
type VerifyRegistrationInput struct {
	Token                string `json:"token" validate:"notblank"`
	Name                 string `json:"name" validate:"notblank,max=255"`
	Password             string `json:"password" validate:"notblank,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Validate checks all fields and reports every violation.
func (in VerifyRegistrationInput) Validate() error {
	return check(in)
}

// LoginInput holds credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"notblank"`
}

// Validate only checks presence. Wrong values are an authentication failure.
func (in LoginInput) Validate() error {
	return check(in)
}

// UpdateProfileInput is a partial profile update. Nil fields are unchanged.
type UpdateProfileInput struct {
	Name                 *string `json:"name" validate:"omitnil,notblank,max=255"`
	Password             *string `json:"password" validate:"omitnil,notblank,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// Validate checks the fields that are present.
func (in UpdateProfileInput) Validate() error {
	// A missing confirmation never matches.
	if in.Password != nil && in.PasswordConfirmation == nil {
		empty := ""
		in.PasswordConfirmation = &empty
	}
	return check(in)
}

// Empty reports whether the patch changes nothing.
func (in UpdateProfileInput) Empty() bool {
	return in.Name == nil && in.Password == nil
}

// CreateArticleInput holds a new article.
type CreateArticleInput struct {
	Title   string `json:"title" validate:"notblank,max=255"`
	Content string `json:"content" validate:"notblank"`
}

// Validate checks title and content.
func (in CreateArticleInput) Validate() error {
	return check(in)
}

// UpdateArticleInput is a partial article update.
type UpdateArticleInput struct {
	Title   *string `json:"title" validate:"omitnil,notblank,max=255"`
	Content *string `json:"content" validate:"omitnil,notblank"`
}

// Validate checks the fields that are present.
func (in UpdateArticleInput) Validate() error {
	return check(in)
}

// Empty reports whether the patch changes nothing.
func (in UpdateArticleInput) Empty() bool {
	return in.Title == nil && in.Content == nil
}

// CreateCommentInput holds a new comment.
type CreateCommentInput struct {
	Content string `json:"content" validate:"notblank,min=10,max=100"`
}

// Validate checks the content length.
func (in CreateCommentInput) Validate() error {
	return check(in)
}

// UpdateCommentInput is a partial comment update.
type UpdateCommentInput struct {
	Content *string `json:"content" validate:"omitnil,notblank,min=10,max=100"`
}

// Validate checks the content if present.
func (in UpdateCommentInput) Validate() error {
	return check(in)
}

// Empty reports whether the patch changes nothing.
func (in UpdateCommentInput) Empty() bool {
	return in.Content == nil
}
