package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/medjeex/exam-engine/internal/errors"
	"github.com/medjeex/exam-engine/internal/models"
)

// Validator wraps go-playground/validator with the engine's custom tags.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	RegisterCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate checks the struct's validation tags and converts failures to
// the engine's ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return apperrors.ToValidationErrors(err)
		}
		return err
	}
	return nil
}

// Custom validation functions

func ValidateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.SingleCorrect,
		models.MultiCorrect,
		models.Integer,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func ValidateSubject(fl validator.FieldLevel) bool {
	validSubjects := []string{
		models.SubjectPhysics,
		models.SubjectChemistry,
		models.SubjectMathematics,
		models.SubjectBotany,
		models.SubjectScience,
		models.SubjectZoology,
	}

	value := fl.Field().String()
	for _, validSubject := range validSubjects {
		if validSubject == value {
			return true
		}
	}
	return false
}

func ValidateQuestionFormat(fl validator.FieldLevel) bool {
	validFormats := []models.QuestionFormat{
		models.FormatText,
		models.FormatImageURL,
	}

	value := fl.Field().String()
	for _, validFormat := range validFormats {
		if string(validFormat) == value {
			return true
		}
	}
	return false
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", ValidateQuestionType)
	validate.RegisterValidation("subject", ValidateSubject)
	validate.RegisterValidation("question_format", ValidateQuestionFormat)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
