package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/otpguard/internal/pkg/strcase"
)

var (
	// Based on NIST 800-63B Guidelines
	rePassword = regexp.MustCompile(`^.{8,72}$`)
	reOTPCode  = regexp.MustCompile(`^[0-9]{6,8}$`)
	// Loose shape only; canonical parsing happens in mfa.NormalizeRecoveryCode.
	reRecoveryCode = regexp.MustCompile(`^[0-9A-Za-z -]{12,24}$`)
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError is a field-to-message map returned when validation fails.
//
// Keys are field names in snake_case to match typical JSON conventions.
type V10ValidationError map[string]string

// Error implements the error interface.
func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerRules(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// Validate validates a struct and returns a V10ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}
	return out
}

type rule struct {
	tag     string
	pattern *regexp.Regexp
	message string
}

var rules = []rule{
	{tag: "password", pattern: rePassword, message: "{0} must be 8-72 characters"},
	{tag: "otp_code", pattern: reOTPCode, message: "{0} must be a 6 to 8 digit code"},
	{tag: "recovery_code", pattern: reRecoveryCode, message: "{0} must look like XXXX-XXXX-XXXX"},
}

type alias struct {
	tag     string
	tags    string
	message string
}

var aliases = []alias{
	{tag: "second_factor", tags: "otp_code|recovery_code", message: "{0} must be a 6 to 8 digit code or a recovery code"},
}

func registerRules(validate *validator.Validate, trans ut.Translator) error {
	for _, rl := range rules {
		pattern := rl.pattern
		err := validate.RegisterValidation(rl.tag, func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && pattern.MatchString(s)
		})
		if err != nil {
			return err
		}

		if err := registerMessage(validate, trans, rl.tag, rl.message); err != nil {
			return err
		}
	}

	for _, al := range aliases {
		validate.RegisterAlias(al.tag, al.tags)
		if err := registerMessage(validate, trans, al.tag, al.message); err != nil {
			return err
		}
	}
	return nil
}

func registerMessage(validate *validator.Validate, trans ut.Translator, tag, msg string) error {
	return validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, msg, false) },
		translate,
	)
}

func translate(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), fe.Field())
	if err != nil {
		slog.Warn("warning: error translating", "tag", fe.Tag(), "error", err)
		return fe.Error()
	}
	return msg
}
