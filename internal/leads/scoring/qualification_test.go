package scoring

import (
	"strings"
	"testing"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/persona"
)

func TestQualifyDisqualificationIsTerminal(t *testing.T) {
	lead := domain.Lead{
		EstimatedQuantity: 2000,
		Persona:           persona.PersonaDataCenter,
		Timeline:          "urgent",
	}
	cases := []struct {
		name   string
		input  QualificationInput
		reason string
	}{
		{"supplied reason", QualificationInput{Disqualification: "donor withdrew"}, "donor withdrew"},
		{"distance", QualificationInput{DistanceMiles: 800}, "outside pickup radius"},
		{"revenue", QualificationInput{AnnualRevenue: 50_000}, "revenue below"},
		{"industry", QualificationInput{Industry: "Online Gambling Corp"}, "excluded industry: gambling"},
	}
	for _, tc := range cases {
		got := Qualify(lead, tc.input, testNow)
		if !got.Disqualified {
			t.Fatalf("%s: expected disqualification", tc.name)
		}
		if got.Score != 0 {
			t.Fatalf("%s: score = %d, want 0", tc.name, got.Score)
		}
		if !strings.Contains(got.Reason, tc.reason) {
			t.Fatalf("%s: reason = %q, want it to mention %q", tc.name, got.Reason, tc.reason)
		}
	}
}

func TestQualifyZeroRevenueMeansUnknown(t *testing.T) {
	got := Qualify(domain.Lead{}, QualificationInput{AnnualRevenue: 0}, testNow)
	if got.Disqualified {
		t.Fatalf("unknown revenue must not disqualify: %q", got.Reason)
	}
}

func TestQualifyCategoriesAreCapped(t *testing.T) {
	followUp := testNow.AddDate(0, 0, 2)
	grantDeadline := testNow.AddDate(0, 0, 20)
	lead := domain.Lead{
		EstimatedQuantity: 5000,
		Persona:           persona.PersonaDataCenter,
		EquipmentType:     "servers and laptops",
		Source:            "partner referral",
		Notes:             strings.Repeat("refurbish for donation programs. ", 6),
		Timeline:          "urgent, this quarter",
		ContactEmail:      "ops@example.org",
		ContactPhone:      "+15551234567",
		FollowUpDate:      &followUp,
		GrantFlag:         true,
		GrantDeadline:     &grantDeadline,
		Logistics:         domain.Logistics{OnsitePickup: true, FreightFriendly: true},
	}
	got := Qualify(lead, QualificationInput{AnnualRevenue: 20_000_000, DistanceMiles: 30}, testNow)
	if got.Disqualified {
		t.Fatalf("unexpected disqualification: %q", got.Reason)
	}
	for name, value := range got.Categories {
		if value < 0 || value > categoryMax {
			t.Fatalf("category %s = %v, outside [0, %v]", name, value, categoryMax)
		}
	}
	if got.Score != 99 {
		t.Fatalf("score = %d, want 99", got.Score)
	}
	if got.Label != domain.PriorityLabelHigh {
		t.Fatalf("label = %q, want %q", got.Label, domain.PriorityLabelHigh)
	}
}

func TestQualifyWeakLeadFloorsAtMinimum(t *testing.T) {
	got := Qualify(domain.Lead{}, QualificationInput{}, testNow)
	if got.Score != minScore {
		t.Fatalf("score = %d, want floor %d", got.Score, minScore)
	}
	if got.Label != domain.PriorityLabelLow {
		t.Fatalf("label = %q, want %q", got.Label, domain.PriorityLabelLow)
	}
}
