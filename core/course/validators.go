package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coreymead/zoom-class-builder/core"
)

var (
	courseRoleTag  = "courserole"
	courseRoleText = "role must be one of student, teacher, TA or admin"

	datesOrderTag  = "datesorder"
	datesOrderText = "end date must be after start date"

	resourceIDTag  = "resourceid"
	resourceIDText = "invalid resource ID format"
)

// InitValidators registers the course validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseRoleTag, courseRoleValidation)
	core.RegisterCustomTranslation(validate, translator, courseRoleTag, courseRoleText)

	_ = validate.RegisterValidation(resourceIDTag, resourceIDValidation)
	core.RegisterCustomTranslation(validate, translator, resourceIDTag, resourceIDText)

	validate.RegisterStructValidation(courseStructValidation, NewCourse{})
	core.RegisterCustomTranslation(validate, translator, datesOrderTag, datesOrderText)
}

// Custom Validators

// courseRoleValidation checks that the participant role is one of Roles.
func courseRoleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}

func resourceIDValidation(fl validator.FieldLevel) bool {
	return ValidResourceID(fl.Field().String())
}

// courseStructValidation checks that a course ends after it starts.
func courseStructValidation(sl validator.StructLevel) {
	nc, ok := sl.Current().Interface().(NewCourse)
	if !ok || nc.StartDate == nil || nc.EndDate == nil || nc.StartDate.IsZero() || nc.EndDate.IsZero() {
		return
	}
	if !nc.EndDate.After(nc.StartDate.Time) {
		sl.ReportError(nc.EndDate, "endDate", "EndDate", datesOrderTag, "")
	}
}
