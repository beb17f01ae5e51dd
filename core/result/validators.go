package result

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	examTypeTag  = "examtype"
	examTypeText = "exam type must be one of midterm, final, groupwork or participation"
)

func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(examTypeTag, examTypeValidation)
	core.RegisterCustomTranslation(validate, translator, examTypeTag, examTypeText)
}

func examTypeValidation(fl validator.FieldLevel) bool {
	_, ok := Weights[fl.Field().String()]
	return ok
}
