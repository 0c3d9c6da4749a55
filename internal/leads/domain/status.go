// Package domain provides core business rules for the leads bounded context.
package domain

// Lead statuses form the coarse lifecycle enum. Stage assignment is a
// separate axis tracked per pipeline.
const (
	StatusNew            = "New"
	StatusResearching    = "Researching"
	StatusInitialContact = "Initial Contact"
	StatusQualified      = "Qualified"
	StatusProposalSent   = "Proposal Sent"
	StatusNegotiating    = "Negotiating"
	StatusCommitted      = "Committed"
	StatusDonated        = "Donated"
	StatusNotInterested  = "Not Interested"
	StatusInvalid        = "Invalid"
)

var knownStatuses = map[string]struct{}{
	StatusNew:            {},
	StatusResearching:    {},
	StatusInitialContact: {},
	StatusQualified:      {},
	StatusProposalSent:   {},
	StatusNegotiating:    {},
	StatusCommitted:      {},
	StatusDonated:        {},
	StatusNotInterested:  {},
	StatusInvalid:        {},
}

// closedStatuses are statuses where the lead is logically terminal. Closed
// leads are never physically deleted except by an explicit archive action.
var closedStatuses = map[string]bool{
	StatusCommitted:     true,
	StatusDonated:       true,
	StatusNotInterested: true,
	StatusInvalid:       true,
}

// IsKnownStatus reports whether status is one of the lifecycle statuses.
func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsClosedStatus reports whether a status is terminal.
func IsClosedStatus(status string) bool {
	return closedStatuses[status]
}

// Potential value buckets for a lead's estimated donation value.
const (
	PotentialValueHigh   = "High"
	PotentialValueMedium = "Medium"
	PotentialValueLow    = "Low"
)

// Priority labels derived from the numeric priority score.
const (
	PriorityLabelHigh   = "High"
	PriorityLabelMedium = "Medium"
	PriorityLabelLow    = "Low"
)

// PriorityLabelFor maps a clamped priority score to its label.
func PriorityLabelFor(priority int) string {
	switch {
	case priority >= 80:
		return PriorityLabelHigh
	case priority >= 60:
		return PriorityLabelMedium
	default:
		return PriorityLabelLow
	}
}
