package pupil

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/matokeo/core"
)

var (
	subjectTag  = "subject"
	subjectText = "invalid subject, must be one of MTC, ENG, SCIE, SST"

	classTag  = "pupilclass"
	classText = "invalid class, must be one of " + strings.Join(Classes, ", ")

	uniqueSubjectsTag  = "uniquesubjects"
	uniqueSubjectsText = "each subject may appear only once"
)

// InitValidators registers the pupil validation tags and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(subjectTag, subjectValidation)
	core.RegisterCustomTranslation(validate, translator, subjectTag, subjectText)

	_ = validate.RegisterValidation(classTag, classValidation)
	core.RegisterCustomTranslation(validate, translator, classTag, classText)

	_ = validate.RegisterValidation(uniqueSubjectsTag, uniqueSubjectsValidation)
	core.RegisterCustomTranslation(validate, translator, uniqueSubjectsTag, uniqueSubjectsText)
}

// Custom Validators

func subjectValidation(fl validator.FieldLevel) bool {
	if code, ok := fl.Field().Interface().(string); ok {
		_, err := ParseSubject(code)
		return err == nil
	}
	return false
}

func classValidation(fl validator.FieldLevel) bool {
	if class, ok := fl.Field().Interface().(string); ok {
		return ValidClass(class)
	}
	return false
}

// uniqueSubjectsValidation rejects mark entries that repeat a subject.
func uniqueSubjectsValidation(fl validator.FieldLevel) bool {
	entries, ok := fl.Field().Interface().([]MarkEntry)
	if !ok {
		return false
	}
	var seen [numSubjects]bool
	for _, e := range entries {
		subject, err := ParseSubject(e.Subject)
		if err != nil {
			continue // reported by the subject tag
		}
		if seen[subject] {
			return false
		}
		seen[subject] = true
	}
	return true
}
