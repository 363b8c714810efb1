package email

const (
	SubjectFollowUpAssignedFmt    = "New follow-up assigned: %s"
	SubjectFollowUpRescheduledFmt = "Follow-up moved: %s"
	SubjectFollowUpCompletedFmt   = "Follow-up completed: %s"
	SubjectFollowUpDueFmt         = "Follow-up due soon: %s"
)
