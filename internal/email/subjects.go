package email

const (
	subjectHighPriorityLead = "High-priority donation lead assigned to you"
	subjectFollowUpReminder = "Follow-up due on a donation lead"
)
