package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)

// customValidation is a validation tag shared by every domain package, with its english message.
type customValidation struct {
	tag  string
	text string
	fn   validator.Func // nil to only override the message of a built-in tag
}

var customValidations = []customValidation{
	{tag: "alphanum_", text: "only alphanumeric characters and underscores are allowed", fn: alphaNumUnderValidation},
	{tag: "notblank", text: "this field cannot be blank", fn: notBlankValidation},
	{tag: "isodate", text: "date must be formatted as YYYY-MM-DD", fn: dateValidation},
	{tag: "required", text: "this field is required"},
	{tag: "required_with", text: "this field is required"},
	{tag: "required_if", text: "this field is required"},
}

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, cv := range customValidations {
		if cv.fn == nil {
			RegisterCustomTranslation(validate, translator, cv.tag, cv.text, true /* override */)
			continue
		}
		_ = validate.RegisterValidation(cv.tag, cv.fn)
		RegisterCustomTranslation(validate, translator, cv.tag, cv.text)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func dateValidation(fl validator.FieldLevel) bool {
	return IsDate(fl.Field().String())
}
