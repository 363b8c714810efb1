package transport

import (
	"followup_backend/internal/followups/domain"
	"followup_backend/platform/validator"
)

// RegisterValidators adds the follow-up enum tags used by the request DTOs.
func RegisterValidators(val *validator.Validator) error {
	types := make([]string, 0, len(domain.Types))
	for _, t := range domain.Types {
		types = append(types, string(t))
	}
	priorities := make([]string, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		priorities = append(priorities, string(p))
	}
	statuses := []string{
		string(domain.DisplayScheduled),
		string(domain.DisplayInProgress),
		string(domain.DisplayOverdue),
		string(domain.DisplayMissed),
		string(domain.DisplayCompleted),
		string(domain.DisplayCancelled),
	}

	if err := val.RegisterEnum("followup_type", types...); err != nil {
		return err
	}
	if err := val.RegisterEnum("followup_priority", priorities...); err != nil {
		return err
	}
	return val.RegisterEnum("followup_display_status", statuses...)
}
