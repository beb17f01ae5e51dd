package notification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	notifTypeTag  = "notiftype"
	notifTypeText = "type must be one of admin, attendance, results or general"

	oneOfTag       = "oneof"
	targetTag      = "broadcasttarget"
	targetText    = "target must be one of all or class"
	requiredIfTag  = "required_if"
	requiredIfText = "this field is required"
)

func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(notifTypeTag, notifTypeValidation)
	core.RegisterCustomTranslation(validate, translator, notifTypeTag, notifTypeText)
	_ = validate.RegisterValidation(targetTag, targetValidation)
	core.RegisterCustomTranslation(validate, translator, targetTag, targetText)
}

func notifTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

func targetValidation(fl validator.FieldLevel) bool {
	target := fl.Field().String()
	return target == TargetAll || target == TargetClass
}
