package transport

import (
	"time"

	"followup_backend/internal/followups/domain"
)

// ToFollowUpResponse maps a record, deriving its display status at now.
func ToFollowUpResponse(f domain.FollowUp, now time.Time) FollowUpResponse {
	return FollowUpResponse{
		ID:              f.ID,
		LeadID:          f.Subject.LeadID,
		ClientID:        f.Subject.ClientID,
		Type:            f.Type,
		Title:           f.Title,
		Description:     f.Description,
		Notes:           f.Notes,
		Priority:        f.Priority,
		Status:          f.Status,
		DisplayStatus:   f.DisplayStatus(now),
		ScheduledDate:   f.ScheduledDate,
		CreatedBy:       f.CreatedBy,
		AssignedTo:      f.AssignedTo,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
		CompletedAt:     f.CompletedAt,
		Outcome:         f.Outcome,
		GeneratedFromID: f.GeneratedFromID,
		ArchivedAt:      f.ArchivedAt,
	}
}

// ToGroupResponse maps a group. Items keep the display status computed when
// the group was built.
func ToGroupResponse(g domain.Group) GroupResponse {
	items := make([]FollowUpResponse, 0, len(g.Items))
	for _, item := range g.Items {
		resp := ToFollowUpResponse(item.FollowUp, time.Time{})
		resp.DisplayStatus = item.Display
		items = append(items, resp)
	}
	return GroupResponse{
		Key:       g.Key,
		LeadID:    g.Subject.LeadID,
		ClientID:  g.Subject.ClientID,
		Name:      g.Name,
		Phone:     g.Phone,
		FollowUps: items,
		Counts:    g.Counts,
	}
}

// ToOutcomeResponse maps a catalog rule.
func ToOutcomeResponse(r domain.OutcomeRule) OutcomeResponse {
	return OutcomeResponse{
		Outcome:       r.Outcome,
		Label:         r.Label,
		Category:      r.Category,
		Action:        r.Action,
		DeferDays:     r.DeferDays,
		NextType:      r.NextType,
		NextPriority:  r.NextPriority,
		SubjectEffect: string(r.SubjectEffect),
	}
}
