// Package scoring computes donation lead priority scores. Three strategies
// coexist and are never unified: Simple at first insert, Automated during
// bulk ingestion and re-scoring, and Qualify for enrichment workflows.
package scoring

import (
	"math"
	"strings"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/persona"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic significantly.
	scoreVersion = "2026-v1"

	// Base score - leads start at 50 and factors add/subtract from this.
	baseScore = 50.0

	// Scores are always clamped to this band.
	minScore = 10
	maxScore = 100
)

// Result holds scoring output and factor details.
type Result struct {
	Score   int
	Label   string
	Factors map[string]float64
	Version string
}

// sourceScoreTable maps source keywords to their quality scores.
// Higher scores indicate better lead quality based on conversion rates.
var sourceScoreTable = []struct {
	keywords []string
	score    float64
}{
	// Best: warm introductions show high intent
	{[]string{"referral", "partner"}, 8},
	{[]string{"corporate", "refresh", "monitor"}, 6},
	{[]string{"government", "surplus auction"}, 5},
	{[]string{"web form", "website", "inbound"}, 4},
	// Average: harvested from public feeds
	{[]string{"scraper", "feed", "listing"}, 2},
	// Lower: unsolicited
	{[]string{"cold", "purchased"}, -2},
}

// personaScoreTable is the persona bonus applied by the automated scorer.
var personaScoreTable = map[string]float64{
	persona.PersonaDataCenter:       8,
	persona.PersonaCorporateRefresh: 6,
	persona.PersonaGovernment:       5,
	persona.PersonaHealthcare:       4,
	persona.PersonaEducation:        3,
	persona.PersonaNonprofit:        2,
}

// Simple scores a lead at first insert: base score, quantity bonus, source
// quality and timeline urgency keywords.
func Simple(lead domain.Lead) Result {
	score := baseScore
	factors := map[string]float64{}

	// Quantity: every 10 devices is worth a point, capped at 25.
	quantityBonus := math.Min(math.Round(float64(lead.EstimatedQuantity)/10), 25)
	score += addFactor(factors, "quantity", quantityBonus)

	score += addFactor(factors, "source", scoreSource(lead.Source))

	timeline := strings.ToLower(lead.Timeline)
	if strings.Contains(timeline, "urgent") {
		score += addFactor(factors, "timeline_urgent", 10)
	}
	if strings.Contains(timeline, "immediate") {
		score += addFactor(factors, "timeline_immediate", 12)
	}

	final := clampScore(score)
	return Result{
		Score:   final,
		Label:   domain.PriorityLabelFor(final),
		Factors: factors,
		Version: scoreVersion,
	}
}

// Automated re-scores a lead during bulk ingestion. It starts from the
// existing priority (or a fresh Simple score when none is set) and layers
// quantity tiers, persona, logistics, grant, urgency and follow-up bonuses.
func Automated(lead domain.Lead, now time.Time) Result {
	factors := map[string]float64{}

	score := float64(lead.Priority)
	if lead.Priority == 0 {
		simple := Simple(lead)
		score = float64(simple.Score)
		factors["simple_base"] = float64(simple.Score)
	}

	score += addFactor(factors, "quantity_tier", scoreQuantityTier(lead.EstimatedQuantity))
	score += addFactor(factors, "persona", personaScoreTable[lead.Persona])

	if lead.Logistics.OnsitePickup {
		score += addFactor(factors, "onsite_pickup", 6)
	}
	if lead.Logistics.FreightFriendly {
		score += addFactor(factors, "freight_friendly", 4)
	}

	if containsAny(strings.ToLower(lead.Notes), "grant", "funded", "subsidy") {
		score += addFactor(factors, "grant_notes", 8)
	}

	if containsAny(strings.ToLower(lead.Timeline), "urgent", "immediate", "asap") {
		score += addFactor(factors, "timeline_urgency", 5)
	}

	if days, ok := lead.FollowUpDaysUntilDue(now); ok && days >= 0 && days <= 7 {
		score += addFactor(factors, "follow_up_proximity", 4)
	}

	final := clampScore(score)
	return Result{
		Score:   final,
		Label:   domain.PriorityLabelFor(final),
		Factors: factors,
		Version: scoreVersion,
	}
}

// scoreQuantityTier evaluates estimated device quantity for the automated
// scorer. Bulk decommissions move the forecast more than drip donations.
func scoreQuantityTier(quantity int) float64 {
	switch {
	case quantity >= 1000:
		return 12
	case quantity >= 500:
		return 9
	case quantity >= 200:
		return 6
	default:
		return 0
	}
}

// scoreSource evaluates lead acquisition channel quality.
func scoreSource(source string) float64 {
	lowered := strings.ToLower(source)
	if lowered == "" {
		return 0
	}
	for _, entry := range sourceScoreTable {
		if containsAny(lowered, entry.keywords...) {
			return entry.score
		}
	}
	return 0 // Unknown source
}

func addFactor(factors map[string]float64, key string, value float64) float64 {
	if math.Abs(value) < 0.01 {
		return 0
	}
	// Round to 1 decimal place for cleaner factor display
	factors[key] = math.Round(value*10) / 10
	return value
}

func clampScore(value float64) int {
	rounded := int(math.Round(value))
	if rounded < minScore {
		return minScore
	}
	if rounded > maxScore {
		return maxScore
	}
	return rounded
}

func clampFloat(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
