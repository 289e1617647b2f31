package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/policyhub-service/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Закрытые перечисления домена
	_ = validate.RegisterValidation("phase", func(fl validator.FieldLevel) bool {
		_, err := domain.ParsePhase(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("geography_type", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseGeographyType(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("hub_action", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseAction(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("drawing_mode", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDrawingMode(fl.Field().String())
		return err == nil
	})
}

// Validate - валидация структуры
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// GetValidator - получить валидатор для кастомной конфигурации
func GetValidator() *validator.Validate {
	return validate
}

// Fields превращает ошибки валидации в map поле -> правило для details ответа
func Fields(err error) map[string]interface{} {
	out := make(map[string]interface{})
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		out[strings.ToLower(fe.Field())] = rule
	}
	return out
}
