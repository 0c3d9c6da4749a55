package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPersonaWeight is the scoring weight applied when a workspace has not
// configured one for a persona.
const DefaultPersonaWeight = 1

// Settings is the workspace configuration snapshot read by classification
// and scoring. It is passed explicitly so those functions stay pure; nothing
// in the engine ever mutates it.
type Settings struct {
	WorkspaceID    uuid.UUID
	DefaultOwnerID uuid.UUID
	// PersonaEnabled disables classifier rules per persona. A persona absent
	// from the map is enabled.
	PersonaEnabled map[string]bool
	// PersonaWeights holds per-persona scoring weights. A persona absent from
	// the map has DefaultPersonaWeight.
	PersonaWeights map[string]int
	// PersonaOwners assigns a default owner per persona, falling back to
	// DefaultOwnerID.
	PersonaOwners map[string]uuid.UUID
}

// PersonaIsEnabled reports whether classifier rules for the persona may match.
func (s Settings) PersonaIsEnabled(persona string) bool {
	if s.PersonaEnabled == nil {
		return true
	}
	enabled, ok := s.PersonaEnabled[persona]
	if !ok {
		return true
	}
	return enabled
}

// PersonaWeight returns the configured weight for a persona.
func (s Settings) PersonaWeight(persona string) int {
	if s.PersonaWeights == nil {
		return DefaultPersonaWeight
	}
	if w, ok := s.PersonaWeights[persona]; ok {
		return w
	}
	return DefaultPersonaWeight
}

// OwnerFor resolves the default owner for a persona.
func (s Settings) OwnerFor(persona string) uuid.UUID {
	if s.PersonaOwners != nil {
		if owner, ok := s.PersonaOwners[persona]; ok && owner != uuid.Nil {
			return owner
		}
	}
	return s.DefaultOwnerID
}

// User is a minimal owner/actor record resolved through the users lookup.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// TimelineEvent is an append-only activity record, the operator-visible
// trail for automation actions and orchestrator writes.
type TimelineEvent struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	LeadID      uuid.UUID
	ActorType   string // "System" or "User"
	ActorName   string
	EventType   string
	Title       string
	Summary     string
	Metadata    map[string]any
	CreatedAt   time.Time
}
