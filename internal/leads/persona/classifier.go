// Package persona classifies donation leads into semantic categories using
// an ordered predicate rule table. Classification is pure: it reads a lead
// and a workspace settings snapshot, and never touches shared state.
package persona

import (
	"fmt"
	"strings"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/platform/textkit"
)

// Persona buckets. DefaultPersona is the fall-through when no rule matches.
const (
	PersonaCorporateRefresh = "Corporate IT Refresh"
	PersonaDataCenter       = "Data Center Decommission"
	PersonaHealthcare       = "Healthcare System"
	PersonaEducation        = "Education Institution"
	PersonaGovernment       = "Government Agency"
	PersonaNonprofit        = "Nonprofit Partner"
	DefaultPersona          = "General Prospect"
)

// Signals are the derived inputs a rule predicate may consult.
type Signals struct {
	// Text is the lowercased concatenation of title, company, notes and
	// location.
	Text            string
	Source          string
	Equipment       string
	OnsitePickup    bool
	FreightFriendly bool
	// FollowUpDays is the number of whole days until the follow-up date;
	// valid only when HasFollowUp is true.
	FollowUpDays int
	HasFollowUp  bool
}

// Rule is one entry of the ordered classification table. The first matching
// enabled rule wins.
type Rule struct {
	Name    string
	Persona string
	Match   func(Signals) bool
}

// Result is the classifier output.
type Result struct {
	Persona string
	Tags    []string
}

// rules is the default ordered rule table. Order matters: a data-center
// decommission at a hospital is a data-center lead, so equipment-driven
// rules come before institution-driven ones.
var rules = []Rule{
	{
		Name:    "data-center-equipment",
		Persona: PersonaDataCenter,
		Match: func(s Signals) bool {
			return containsAny(s.Equipment, "server", "rack", "storage array", "networking") ||
				containsAny(s.Text, "data center", "datacenter", "colocation", "server room")
		},
	},
	{
		Name:    "healthcare-institution",
		Persona: PersonaHealthcare,
		Match: func(s Signals) bool {
			return containsAny(s.Text, "health", "hospital", "clinic", "medical")
		},
	},
	{
		Name:    "education-institution",
		Persona: PersonaEducation,
		Match: func(s Signals) bool {
			return containsAny(s.Text, "school", "university", "college", "campus", "district")
		},
	},
	{
		Name:    "government-agency",
		Persona: PersonaGovernment,
		Match: func(s Signals) bool {
			return containsAny(s.Text, "county", "municipal", "federal", "state agency", "city of", "public works")
		},
	},
	{
		Name:    "nonprofit-partner",
		Persona: PersonaNonprofit,
		Match: func(s Signals) bool {
			return containsAny(s.Text, "nonprofit", "non-profit", "charity", "foundation", "501(c)")
		},
	},
	{
		Name:    "corporate-refresh",
		Persona: PersonaCorporateRefresh,
		Match: func(s Signals) bool {
			return containsAny(s.Text, "refresh", "decommission", "surplus", "fleet upgrade", "office closure") ||
				containsAny(strings.ToLower(s.Source), "corporate", "refresh")
		},
	},
}

// personaTagSets seeds the tag collection per persona.
var personaTagSets = map[string][]string{
	PersonaCorporateRefresh: {"corporate", "bulk-likely"},
	PersonaDataCenter:       {"enterprise-gear", "bulk-likely"},
	PersonaHealthcare:       {"healthcare", "compliance-sensitive"},
	PersonaEducation:        {"education", "term-driven"},
	PersonaGovernment:       {"government", "procurement-cycle"},
	PersonaNonprofit:        {"nonprofit", "mission-aligned"},
	DefaultPersona:          {"unqualified"},
}

// urgentFollowUpDays is the window for the "urgent" tag.
const urgentFollowUpDays = 3

// Rules exposes the ordered rule table for inspection and tests.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Classify assigns a persona and tag set to the lead. A rule whose persona
// the workspace disabled is skipped and classification falls through to the
// next rule, or the default persona.
func Classify(lead domain.Lead, settings domain.Settings, now time.Time) Result {
	signals := deriveSignals(lead, now)

	selected := DefaultPersona
	for _, rule := range rules {
		if !settings.PersonaIsEnabled(rule.Persona) {
			continue
		}
		if rule.Match(signals) {
			selected = rule.Persona
			break
		}
	}

	return Result{
		Persona: selected,
		Tags:    buildTags(selected, lead, signals, settings),
	}
}

// Tags rebuilds the tag set for a lead whose persona is already known. The
// high-priority tag reads the stored priority, so callers that score after
// classifying refresh the tags once the final score is on the lead.
func Tags(persona string, lead domain.Lead, settings domain.Settings, now time.Time) []string {
	return buildTags(persona, lead, deriveSignals(lead, now), settings)
}

func deriveSignals(lead domain.Lead, now time.Time) Signals {
	text := strings.ToLower(strings.Join([]string{lead.Title, lead.Company, lead.Notes, lead.Location}, " "))
	days, hasFollowUp := lead.FollowUpDaysUntilDue(now)

	return Signals{
		Text:            text,
		Source:          lead.Source,
		Equipment:       strings.ToLower(lead.EquipmentType),
		OnsitePickup:    lead.Logistics.OnsitePickup,
		FreightFriendly: lead.Logistics.FreightFriendly,
		FollowUpDays:    days,
		HasFollowUp:     hasFollowUp,
	}
}

func buildTags(persona string, lead domain.Lead, signals Signals, settings domain.Settings) []string {
	tags := append([]string(nil), personaTagSets[persona]...)

	if lead.Priority >= 80 {
		tags = append(tags, "high-priority")
	}
	if signals.HasFollowUp && signals.FollowUpDays >= 0 && signals.FollowUpDays <= urgentFollowUpDays {
		tags = append(tags, "urgent")
	}
	if strings.Contains(strings.ToLower(lead.Timeline), "grant") {
		tags = append(tags, "grant")
	}
	if lead.Source != "" {
		tags = append(tags, "source:"+textkit.NormalizeKey(lead.Source))
	}
	if lead.EquipmentType != "" {
		tags = append(tags, "equipment:"+textkit.NormalizeKey(lead.EquipmentType))
	}
	if signals.OnsitePickup {
		tags = append(tags, "onsite-pickup")
	}
	if signals.FreightFriendly {
		tags = append(tags, "freight-friendly")
	}
	if weight := settings.PersonaWeight(persona); weight != domain.DefaultPersonaWeight {
		tags = append(tags, fmt.Sprintf("weight:%d", weight))
	}

	return dedupe(tags)
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
