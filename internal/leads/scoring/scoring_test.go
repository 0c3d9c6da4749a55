package scoring

import (
	"testing"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/persona"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func TestSimpleBaseline(t *testing.T) {
	got := Simple(domain.Lead{})
	if got.Score != 50 {
		t.Fatalf("empty lead score = %d, want base 50", got.Score)
	}
	if got.Label != domain.PriorityLabelLow {
		t.Fatalf("label = %q, want %q", got.Label, domain.PriorityLabelLow)
	}
	if len(got.Factors) != 0 {
		t.Fatalf("expected no factors for empty lead, got %v", got.Factors)
	}
}

func TestSimpleQuantityBonusCapped(t *testing.T) {
	small := Simple(domain.Lead{EstimatedQuantity: 40})
	if small.Score != 54 {
		t.Fatalf("quantity 40 score = %d, want 54", small.Score)
	}
	big := Simple(domain.Lead{EstimatedQuantity: 600})
	if big.Score != 75 {
		t.Fatalf("quantity 600 score = %d, want 75 (bonus capped at 25)", big.Score)
	}
	if big.Factors["quantity"] != 25 {
		t.Fatalf("quantity factor = %v, want 25", big.Factors["quantity"])
	}
}

func TestSimpleTimelineKeywordsStack(t *testing.T) {
	got := Simple(domain.Lead{Timeline: "urgent, immediate pickup needed"})
	if got.Score != 72 {
		t.Fatalf("score = %d, want 72 (50 + 10 urgent + 12 immediate)", got.Score)
	}
}

func TestSimpleSourceQuality(t *testing.T) {
	cases := []struct {
		source string
		want   int
	}{
		{"Partner referral", 58},
		{"Corporate Refresh Monitor", 56},
		{"Website inquiry", 54},
		{"craigslist scraper", 52},
		{"cold outreach list", 48},
		{"something unknown", 50},
	}
	for _, tc := range cases {
		got := Simple(domain.Lead{Source: tc.source})
		if got.Score != tc.want {
			t.Fatalf("source %q score = %d, want %d", tc.source, got.Score, tc.want)
		}
	}
}

// A bulk-decommission lead with urgency and a strong source must land in the
// high-priority band on first insert.
func TestSimpleHighPriorityScenario(t *testing.T) {
	got := Simple(domain.Lead{
		EstimatedQuantity: 600,
		Source:            "Corporate Refresh Monitor",
		Timeline:          "Urgent relocation",
	})
	if got.Score != 91 {
		t.Fatalf("score = %d, want 91", got.Score)
	}
	if got.Label != domain.PriorityLabelHigh {
		t.Fatalf("label = %q, want %q", got.Label, domain.PriorityLabelHigh)
	}
}

func TestAutomatedStartsFromExistingPriority(t *testing.T) {
	got := Automated(domain.Lead{Priority: 60}, testNow)
	if got.Score != 60 {
		t.Fatalf("score = %d, want unchanged 60", got.Score)
	}
	if _, ok := got.Factors["simple_base"]; ok {
		t.Fatalf("simple_base factor recorded despite existing priority")
	}
}

func TestAutomatedFallsBackToSimple(t *testing.T) {
	got := Automated(domain.Lead{Source: "partner intro"}, testNow)
	if got.Factors["simple_base"] != 58 {
		t.Fatalf("simple_base factor = %v, want 58", got.Factors["simple_base"])
	}
	if got.Score != 58 {
		t.Fatalf("score = %d, want 58", got.Score)
	}
}

func TestAutomatedFactorStack(t *testing.T) {
	followUp := testNow.AddDate(0, 0, 5)
	lead := domain.Lead{
		Priority:          50,
		EstimatedQuantity: 600,
		Persona:           persona.PersonaCorporateRefresh,
		Logistics:         domain.Logistics{OnsitePickup: true, FreightFriendly: true},
		Notes:             "covers three grant counties",
		Timeline:          "ASAP before lease ends",
		FollowUpDate:      &followUp,
	}
	got := Automated(lead, testNow)
	// 50 + 9 quantity tier + 6 persona + 6 onsite + 4 freight + 8 grant
	// + 5 urgency + 4 follow-up proximity
	if got.Score != 92 {
		t.Fatalf("score = %d, want 92", got.Score)
	}
	if got.Label != domain.PriorityLabelHigh {
		t.Fatalf("label = %q, want %q", got.Label, domain.PriorityLabelHigh)
	}
	for _, key := range []string{"quantity_tier", "persona", "onsite_pickup", "freight_friendly", "grant_notes", "timeline_urgency", "follow_up_proximity"} {
		if _, ok := got.Factors[key]; !ok {
			t.Fatalf("missing factor %q in %v", key, got.Factors)
		}
	}
}

func TestAutomatedClampsAtCeiling(t *testing.T) {
	lead := domain.Lead{
		Priority:          95,
		EstimatedQuantity: 2000,
		Persona:           persona.PersonaDataCenter,
		Logistics:         domain.Logistics{OnsitePickup: true, FreightFriendly: true},
		Timeline:          "immediate",
	}
	got := Automated(lead, testNow)
	if got.Score != 100 {
		t.Fatalf("score = %d, want clamp at 100", got.Score)
	}
}

func TestAutomatedFollowUpPastDueGetsNoBonus(t *testing.T) {
	past := testNow.AddDate(0, 0, -2)
	got := Automated(domain.Lead{Priority: 50, FollowUpDate: &past}, testNow)
	if got.Score != 50 {
		t.Fatalf("score = %d, want 50 (overdue follow-up earns nothing)", got.Score)
	}
}

func TestClampScoreBounds(t *testing.T) {
	if got := clampScore(3); got != 10 {
		t.Fatalf("clampScore(3) = %d, want 10", got)
	}
	if got := clampScore(140); got != 100 {
		t.Fatalf("clampScore(140) = %d, want 100", got)
	}
	if got := clampScore(64.5); got != 65 {
		t.Fatalf("clampScore(64.5) = %d, want 65 (round half up)", got)
	}
}
