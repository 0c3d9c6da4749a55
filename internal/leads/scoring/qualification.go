package scoring

import (
	"fmt"
	"strings"
	"time"

	"donation_portal_backend/internal/leads/domain"
)

const (
	// categoryMax caps each qualification category so the four of them
	// sum to an even 0-100 band before the final clamp.
	categoryMax = 25.0

	// maxDistanceMiles is the pickup radius. Beyond this the freight
	// economics never work out regardless of donation size.
	maxDistanceMiles = 500.0

	// minAnnualRevenue screens out organizations too small to sustain
	// recurring hardware refresh cycles. Zero means unknown, not small.
	minAnnualRevenue = 250_000.0
)

// excludedIndustries disqualify a lead outright for mission reasons.
var excludedIndustries = []string{
	"gambling",
	"tobacco",
	"firearms",
	"payday lending",
	"adult entertainment",
}

// QualificationInput carries enrichment data gathered by a researcher
// alongside the lead itself.
type QualificationInput struct {
	DistanceMiles float64
	AnnualRevenue float64
	Industry      string
	// Disqualification is a researcher-supplied terminal reason. When
	// set it overrides everything else.
	Disqualification string
}

// QualificationResult is the output of the four-category Qualify scorer.
// A disqualified lead carries a zero score and the terminal reason.
type QualificationResult struct {
	Score        int
	Label        string
	Disqualified bool
	Reason       string
	Categories   map[string]float64
	Version      string
}

// Qualify scores a lead across four categories (alignment, engagement,
// capacity, timing) worth up to 25 points each. Disqualification checks
// run first and are terminal.
func Qualify(lead domain.Lead, input QualificationInput, now time.Time) QualificationResult {
	if reason, disqualified := checkDisqualification(input); disqualified {
		return QualificationResult{
			Disqualified: true,
			Reason:       reason,
			Label:        domain.PotentialValueLow,
			Categories:   map[string]float64{},
			Version:      scoreVersion,
		}
	}

	categories := map[string]float64{
		"alignment":  scoreAlignment(lead),
		"engagement": scoreEngagement(lead),
		"capacity":   scoreCapacity(lead, input),
		"timing":     scoreTiming(lead, now),
	}

	total := 0.0
	for _, v := range categories {
		total += v
	}

	final := clampScore(total)
	return QualificationResult{
		Score:      final,
		Label:      domain.PriorityLabelFor(final),
		Categories: categories,
		Version:    scoreVersion,
	}
}

func checkDisqualification(input QualificationInput) (string, bool) {
	if reason := strings.TrimSpace(input.Disqualification); reason != "" {
		return reason, true
	}
	if input.DistanceMiles > maxDistanceMiles {
		return fmt.Sprintf("outside pickup radius (%.0f mi)", input.DistanceMiles), true
	}
	if input.AnnualRevenue > 0 && input.AnnualRevenue < minAnnualRevenue {
		return "annual revenue below donation program threshold", true
	}
	industry := strings.ToLower(input.Industry)
	for _, excluded := range excludedIndustries {
		if strings.Contains(industry, excluded) {
			return "excluded industry: " + excluded, true
		}
	}
	return "", false
}

// scoreAlignment measures mission fit: persona, equipment mix and notes.
func scoreAlignment(lead domain.Lead) float64 {
	score := personaScoreTable[lead.Persona] * 2
	if containsAny(strings.ToLower(lead.EquipmentType), "laptop", "desktop", "server", "monitor") {
		score += 6
	}
	if containsAny(strings.ToLower(lead.Notes), "refurbish", "reuse", "digital divide", "donation") {
		score += 4
	}
	return clampFloat(score, 0, categoryMax)
}

// scoreEngagement measures how much the donor has already invested in the
// conversation.
func scoreEngagement(lead domain.Lead) float64 {
	score := scoreSource(lead.Source) * 1.5
	if len(strings.TrimSpace(lead.Notes)) >= 120 {
		score += 5 // detailed notes mean a real conversation happened
	}
	if lead.FollowUpDate != nil {
		score += 6
	}
	if lead.ContactEmail != "" && lead.ContactPhone != "" {
		score += 4
	}
	return clampFloat(score, 0, categoryMax)
}

// scoreCapacity measures whether the donor can actually deliver hardware
// at a volume worth a truck roll.
func scoreCapacity(lead domain.Lead, input QualificationInput) float64 {
	score := scoreQuantityTier(lead.EstimatedQuantity)
	if lead.EstimatedQuantity > 0 && lead.EstimatedQuantity < 200 {
		score += clampFloat(float64(lead.EstimatedQuantity)/40, 0, 5)
	}
	if lead.Logistics.OnsitePickup {
		score += 4
	}
	if lead.Logistics.FreightFriendly {
		score += 3
	}
	if input.AnnualRevenue >= 10_000_000 {
		score += 5
	}
	return clampFloat(score, 0, categoryMax)
}

// scoreTiming measures urgency: timelines, grant deadlines and follow-ups.
func scoreTiming(lead domain.Lead, now time.Time) float64 {
	score := 0.0
	timeline := strings.ToLower(lead.Timeline)
	if containsAny(timeline, "urgent", "immediate", "asap") {
		score += 10
	}
	if containsAny(timeline, "this month", "this quarter") {
		score += 6
	}
	if lead.GrantFlag {
		score += 5
		if lead.GrantDeadline != nil {
			if days := domain.WholeDaysBetween(now, *lead.GrantDeadline); days >= 0 && days <= 30 {
				score += 4
			}
		}
	}
	if days, ok := lead.FollowUpDaysUntilDue(now); ok && days >= 0 && days <= 7 {
		score += 5
	}
	return clampFloat(score, 0, categoryMax)
}
