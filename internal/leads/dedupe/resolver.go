// Package dedupe keeps the contact and organization directory unique. It is
// invoked once per lead write and exposes an on-demand dedup index plus an
// idempotent contact merge.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/platform/apperr"
	"donation_portal_backend/platform/phone"
	"donation_portal_backend/platform/textkit"

	"github.com/google/uuid"
)

// DirectoryStore is the store surface the resolver needs.
type DirectoryStore interface {
	ListContacts(ctx context.Context, workspaceID uuid.UUID) ([]domain.Contact, error)
	SaveContact(ctx context.Context, contact domain.Contact) error
	DeleteContact(ctx context.Context, id uuid.UUID) error
	ListOrganizations(ctx context.Context, workspaceID uuid.UUID) ([]domain.Organization, error)
	SaveOrganization(ctx context.Context, org domain.Organization) error
}

// ContactPayload is the identity slice of a lead write.
type ContactPayload struct {
	WorkspaceID uuid.UUID
	Name        string
	Email       string
	Phone       string
	Company     string
	Source      string
	LeadID      uuid.UUID
}

// Resolver links lead writes to deduplicated directory records.
type Resolver struct {
	store DirectoryStore
	now   func() time.Time
}

func NewResolver(store DirectoryStore) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// UpsertContact finds or creates the contact and organization for a lead
// write. Matching precedence: exact case-insensitive email, then normalized
// name within the workspace, then create. Array-valued fields merge by set
// union.
func (r *Resolver) UpsertContact(ctx context.Context, payload ContactPayload) (domain.Contact, *domain.Organization, error) {
	if payload.Name == "" && payload.Email == "" && payload.Company == "" {
		return domain.Contact{}, nil, apperr.Validation("contact payload carries no identity fields")
	}

	org, err := r.upsertOrganization(ctx, payload)
	if err != nil {
		return domain.Contact{}, nil, err
	}

	// Company-only payloads resolve the organization but create no contact:
	// a nameless contact would collide with every other nameless contact on
	// the empty name key.
	if payload.Name == "" && payload.Email == "" {
		return domain.Contact{}, org, nil
	}

	contacts, err := r.store.ListContacts(ctx, payload.WorkspaceID)
	if err != nil {
		return domain.Contact{}, nil, fmt.Errorf("list contacts: %w", err)
	}

	contact, found := matchContact(contacts, payload)
	if !found {
		contact = domain.Contact{
			ID:          uuid.New(),
			WorkspaceID: payload.WorkspaceID,
			Name:        payload.Name,
			CreatedAt:   r.now(),
		}
	}

	mergePayload(&contact, payload)
	if org != nil {
		orgID := org.ID
		contact.OrganizationID = &orgID
	}
	contact.UpdatedAt = r.now()

	if err := r.store.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, nil, fmt.Errorf("save contact: %w", err)
	}
	return contact, org, nil
}

// matchContact applies the precedence rules over the workspace's contacts.
func matchContact(contacts []domain.Contact, payload ContactPayload) (domain.Contact, bool) {
	if email := textkit.NormalizeEmail(payload.Email); email != "" {
		for _, c := range contacts {
			for _, candidate := range append([]string{c.Email}, c.Emails...) {
				if textkit.NormalizeEmail(candidate) == email {
					return c, true
				}
			}
		}
	}
	if key := textkit.NormalizeKey(payload.Name); key != "" {
		for _, c := range contacts {
			if textkit.NormalizeKey(c.Name) == key {
				return c, true
			}
		}
	}
	return domain.Contact{}, false
}

func mergePayload(contact *domain.Contact, payload ContactPayload) {
	if contact.Name == "" {
		contact.Name = payload.Name
	}
	if email := textkit.NormalizeEmail(payload.Email); email != "" {
		if contact.Email == "" {
			contact.Email = email
		}
		contact.Emails = domain.UnionStrings(contact.Emails, []string{email})
	}
	if normalized := phone.NormalizeE164(payload.Phone); normalized != "" {
		if contact.Phone == "" {
			contact.Phone = normalized
		}
		contact.Phones = domain.UnionStrings(contact.Phones, []string{normalized})
	}
	if payload.Source != "" {
		contact.Sources = domain.UnionStrings(contact.Sources, []string{payload.Source})
	}
	if payload.LeadID != uuid.Nil {
		contact.LeadIDs = domain.UnionIDs(contact.LeadIDs, []uuid.UUID{payload.LeadID})
	}
}

// upsertOrganization dedupes by the normalized company name key. A nil
// return with nil error means the payload carries no company.
func (r *Resolver) upsertOrganization(ctx context.Context, payload ContactPayload) (*domain.Organization, error) {
	key := textkit.NormalizeKey(payload.Company)
	if key == "" {
		return nil, nil
	}

	orgs, err := r.store.ListOrganizations(ctx, payload.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	var org domain.Organization
	found := false
	for _, candidate := range orgs {
		if candidate.NormalizedKey == key {
			org = candidate
			found = true
			break
		}
	}
	if !found {
		org = domain.Organization{
			ID:            uuid.New(),
			WorkspaceID:   payload.WorkspaceID,
			Name:          payload.Company,
			NormalizedKey: key,
			CreatedAt:     r.now(),
		}
	}

	if payload.LeadID != uuid.Nil {
		org.LeadIDs = domain.UnionIDs(org.LeadIDs, []uuid.UUID{payload.LeadID})
	}
	if payload.Source != "" {
		org.Tags = domain.UnionStrings(org.Tags, []string{"source:" + textkit.NormalizeKey(payload.Source)})
	}
	org.UpdatedAt = r.now()

	if err := r.store.SaveOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("save organization: %w", err)
	}
	return &org, nil
}

// Pair reports two records sharing an identity key.
type Pair struct {
	A   uuid.UUID `json:"a"`
	B   uuid.UUID `json:"b"`
	Key string    `json:"key"`
}

// Index is the on-demand dedup report. Computing it never mutates state.
type Index struct {
	ContactEmailPairs []Pair `json:"contactEmailPairs"`
	ContactNamePairs  []Pair `json:"contactNamePairs"`
	OrganizationPairs []Pair `json:"organizationPairs"`
}

// DedupIndex scans the workspace's contacts and organizations and reports
// every pair sharing an email key or a normalized-name key.
func (r *Resolver) DedupIndex(ctx context.Context, workspaceID uuid.UUID) (Index, error) {
	contacts, err := r.store.ListContacts(ctx, workspaceID)
	if err != nil {
		return Index{}, fmt.Errorf("list contacts: %w", err)
	}
	orgs, err := r.store.ListOrganizations(ctx, workspaceID)
	if err != nil {
		return Index{}, fmt.Errorf("list organizations: %w", err)
	}

	index := Index{
		ContactEmailPairs: []Pair{},
		ContactNamePairs:  []Pair{},
		OrganizationPairs: []Pair{},
	}

	byEmail := make(map[string][]uuid.UUID)
	byName := make(map[string][]uuid.UUID)
	for _, c := range contacts {
		seen := make(map[string]struct{})
		for _, candidate := range append([]string{c.Email}, c.Emails...) {
			email := textkit.NormalizeEmail(candidate)
			if email == "" {
				continue
			}
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			byEmail[email] = append(byEmail[email], c.ID)
		}
		if key := textkit.NormalizeKey(c.Name); key != "" {
			byName[key] = append(byName[key], c.ID)
		}
	}
	index.ContactEmailPairs = collectPairs(byEmail)
	index.ContactNamePairs = collectPairs(byName)

	byOrgKey := make(map[string][]uuid.UUID)
	for _, o := range orgs {
		if o.NormalizedKey != "" {
			byOrgKey[o.NormalizedKey] = append(byOrgKey[o.NormalizedKey], o.ID)
		}
	}
	index.OrganizationPairs = collectPairs(byOrgKey)

	return index, nil
}

func collectPairs(byKey map[string][]uuid.UUID) []Pair {
	pairs := []Pair{}
	for key, ids := range byKey {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs = append(pairs, Pair{A: ids[i], B: ids[j], Key: key})
			}
		}
	}
	return pairs
}

// MergeContacts folds the duplicate's emails, phones, sources, tags and lead
// ids into the primary by set union and removes the duplicate. Merging a
// pair whose duplicate is already gone is a no-op, so the operation is
// idempotent.
func (r *Resolver) MergeContacts(ctx context.Context, workspaceID, primaryID, duplicateID uuid.UUID) (domain.Contact, error) {
	if primaryID == duplicateID {
		return domain.Contact{}, apperr.Validation("cannot merge a contact into itself")
	}

	contacts, err := r.store.ListContacts(ctx, workspaceID)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("list contacts: %w", err)
	}

	var primary, duplicate domain.Contact
	var havePrimary, haveDuplicate bool
	for _, c := range contacts {
		switch c.ID {
		case primaryID:
			primary, havePrimary = c, true
		case duplicateID:
			duplicate, haveDuplicate = c, true
		}
	}
	if !havePrimary {
		return domain.Contact{}, apperr.NotFound(fmt.Sprintf("contact %s not found", primaryID))
	}
	if !haveDuplicate {
		// Already merged.
		return primary, nil
	}

	primary.Emails = domain.UnionStrings(primary.Emails, append([]string{duplicate.Email}, duplicate.Emails...))
	primary.Phones = domain.UnionStrings(primary.Phones, append([]string{duplicate.Phone}, duplicate.Phones...))
	primary.Sources = domain.UnionStrings(primary.Sources, duplicate.Sources)
	primary.Tags = domain.UnionStrings(primary.Tags, duplicate.Tags)
	primary.LeadIDs = domain.UnionIDs(primary.LeadIDs, duplicate.LeadIDs)
	if primary.Email == "" {
		primary.Email = duplicate.Email
	}
	if primary.Phone == "" {
		primary.Phone = duplicate.Phone
	}
	if primary.OrganizationID == nil {
		primary.OrganizationID = duplicate.OrganizationID
	}
	primary.UpdatedAt = r.now()

	if err := r.store.SaveContact(ctx, primary); err != nil {
		return domain.Contact{}, fmt.Errorf("save contact: %w", err)
	}
	if err := r.store.DeleteContact(ctx, duplicate.ID); err != nil {
		return domain.Contact{}, fmt.Errorf("delete duplicate: %w", err)
	}
	return primary, nil
}
