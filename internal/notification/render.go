package notification

import (
	"fmt"
	"strings"
	"time"

	"followup_backend/internal/email"
	"followup_backend/internal/followups/ports"

	"github.com/google/uuid"
)

const displayDateLayout = "Mon 2 Jan 2006 15:04"

// rendered is the user-facing form of one outbox record.
type rendered struct {
	Title      string
	Content    string
	ResourceID *uuid.UUID
	Email      email.Message
}

// render builds the in-app and email text for a notification kind.
func render(kind string, payload map[string]any, baseURL string) (rendered, error) {
	title := payloadString(payload, "title")
	if title == "" {
		title = "Untitled follow-up"
	}
	when := payloadTime(payload, "scheduledDate")

	var out rendered
	switch kind {
	case ports.NotificationAssigned:
		out.Title = "New follow-up assigned"
		out.Content = fmt.Sprintf("%s is scheduled for %s.", title, when)
		out.Email.Subject = fmt.Sprintf(email.SubjectFollowUpAssignedFmt, title)
		out.Email.Body = "A follow-up has been assigned to you."
	case ports.NotificationRescheduled:
		out.Title = "Follow-up rescheduled"
		out.Content = fmt.Sprintf("%s moved to %s.", title, when)
		out.Email.Subject = fmt.Sprintf(email.SubjectFollowUpRescheduledFmt, title)
		out.Email.Body = "A follow-up you own was moved to a new date."
	case ports.NotificationCompleted:
		label := payloadString(payload, "outcomeLabel")
		if label == "" {
			label = payloadString(payload, "outcome")
		}
		out.Title = "Follow-up completed"
		out.Content = fmt.Sprintf("%s was completed with outcome %s.", title, label)
		out.Email.Subject = fmt.Sprintf(email.SubjectFollowUpCompletedFmt, title)
		out.Email.Body = fmt.Sprintf("The outcome was recorded as %s.", label)
	case ports.NotificationDue:
		out.Title = "Follow-up due soon"
		out.Content = fmt.Sprintf("%s is due at %s.", title, when)
		out.Email.Subject = fmt.Sprintf(email.SubjectFollowUpDueFmt, title)
		out.Email.Body = "A follow-up assigned to you is coming up."
	default:
		return rendered{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	out.Email.Heading = out.Title
	out.Email.Details = []email.Detail{
		{Label: "Follow-up", Value: title},
		{Label: "Scheduled", Value: when},
	}
	if followUpType := payloadString(payload, "type"); followUpType != "" {
		out.Email.Details = append(out.Email.Details, email.Detail{Label: "Type", Value: followUpType})
	}

	if id, err := uuid.Parse(payloadString(payload, "followUpId")); err == nil {
		out.ResourceID = &id
		if baseURL != "" {
			out.Email.CTALabel = "Open follow-up"
			out.Email.CTAURL = strings.TrimRight(baseURL, "/") + "/follow-ups/" + id.String()
		}
	}
	return out, nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func payloadTime(payload map[string]any, key string) string {
	raw := payloadString(payload, key)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format(displayDateLayout)
}
