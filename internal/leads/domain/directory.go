package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a deduplicated directory person. A contact optionally links to
// one organization and one household, and to zero-or-more leads.
type Contact struct {
	ID             uuid.UUID
	WorkspaceID    uuid.UUID
	Name           string
	Email          string
	Phone          string
	Emails         []string
	Phones         []string
	Sources        []string
	Tags           []string
	OrganizationID *uuid.UUID
	HouseholdID    *uuid.UUID
	LeadIDs        []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Organization is a deduplicated directory company/institution record.
// NormalizedKey is the dedup key derived from the name.
type Organization struct {
	ID            uuid.UUID
	WorkspaceID   uuid.UUID
	Name          string
	NormalizedKey string
	Tags          []string
	FocusAreas    []string
	LeadIDs       []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Household groups contacts that share an address or family unit.
type Household struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	ContactIDs  []uuid.UUID
	CreatedAt   time.Time
}

// UnionStrings merges b into a preserving a's order, dropping duplicates and
// empty values. Array-valued directory fields merge by set union, never by
// overwrite.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// UnionIDs merges b into a preserving a's order, dropping duplicates.
func UnionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, lists := range [][]uuid.UUID{a, b} {
		for _, v := range lists {
			if v == uuid.Nil {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
