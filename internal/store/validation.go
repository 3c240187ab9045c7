package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"evcal/internal/errdef"
	"evcal/internal/model"
)

func oneOf(fl validator.FieldLevel) bool {
	matches := strings.Split(fl.Param(), " ")
	value := fl.Field().String()
	for _, match := range matches {
		if match == value {
			return true
		}
	}
	return false
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("oneOf", oneOf)
	return v
}

// normalize validates in and applies the defaults for omitted optional
// fields. It does not check EndTime > StartTime; that ordering is enforced
// by callers at the import and CLI boundary.
func (s *Store) normalize(in model.EventInput) (model.EventInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return in, errdef.NewMissingField("event title is required")
	case in.StartTime.IsZero():
		return in, errdef.NewMissingField("event start_time is required")
	case in.EndTime.IsZero():
		return in, errdef.NewMissingField("event end_time is required")
	}

	in.Priority = model.Priority(strings.ToLower(string(in.Priority)))
	in.RecurrenceType = model.RecurrenceType(strings.ToLower(string(in.RecurrenceType)))

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return in, errdef.NewValidation("invalid %s %q: failed %s", strings.ToLower(fe.Field()), fe.Value(), fe.Tag())
		}
		return in, errdef.NewValidation("invalid event: %s", err)
	}

	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if in.Color == "" {
		in.Color = model.DefaultColor
	}
	if !in.IsRecurring {
		in.RecurrenceType = model.RecurrenceNone
		in.RecurrenceEndDate = nil
	}
	return in, nil
}

// Known setting keys and their accepted values.
const (
	SettingTheme            = "theme"
	SettingLanguage         = "language"
	SettingNotificationTime = "notification_time"
)

var defaultSettings = []settingRecord{
	{Key: SettingTheme, Value: "light"},
	{Key: SettingLanguage, Value: "en"},
	{Key: SettingNotificationTime, Value: "15"},
}

func validateSetting(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errdef.NewMissingField("setting key is required")
	}
	switch key {
	case SettingTheme:
		if value != "light" && value != "dark" {
			return errdef.NewValidation("theme must be light or dark, got %q", value)
		}
	case SettingLanguage:
		if value != "en" && value != "es" {
			return errdef.NewValidation("language must be en or es, got %q", value)
		}
	case SettingNotificationTime:
		if n, err := strconv.Atoi(value); err != nil || n <= 0 {
			return errdef.NewValidation("notification_time must be a positive number of minutes, got %q", value)
		}
	}
	return nil
}
