package repository

import (
	"context"
	"sort"
	"sync"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Memory is an in-memory Store with whole-document semantics: reads copy,
// saves replace, the last writer wins. It backs tests and local runs.
type Memory struct {
	mu sync.RWMutex

	leads     map[uuid.UUID]domain.Lead
	leadOrder []uuid.UUID
	pipelines map[uuid.UUID]domain.Pipeline
	pipeOrder []uuid.UUID
	auts      map[uuid.UUID]domain.Automation
	execs     []domain.AutomationExecution
	tasks     map[uuid.UUID]domain.Task
	contacts  map[uuid.UUID]domain.Contact
	orgs      map[uuid.UUID]domain.Organization
	timeline  []domain.TimelineEvent
	settings  map[uuid.UUID]domain.Settings
	users     map[uuid.UUID]domain.User
}

func NewMemory() *Memory {
	return &Memory{
		leads:     map[uuid.UUID]domain.Lead{},
		pipelines: map[uuid.UUID]domain.Pipeline{},
		auts:      map[uuid.UUID]domain.Automation{},
		tasks:     map[uuid.UUID]domain.Task{},
		contacts:  map[uuid.UUID]domain.Contact{},
		orgs:      map[uuid.UUID]domain.Organization{},
		settings:  map[uuid.UUID]domain.Settings{},
		users:     map[uuid.UUID]domain.User{},
	}
}

var _ Store = (*Memory)(nil)

// ---- leads ----

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return cloneLead(lead), nil
}

func (m *Memory) ListLeads(_ context.Context, workspaceID uuid.UUID) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Lead{}
	for _, id := range m.leadOrder {
		lead := m.leads[id]
		if lead.WorkspaceID == workspaceID {
			out = append(out, cloneLead(lead))
		}
	}
	return out, nil
}

func (m *Memory) ListLeadsPage(ctx context.Context, workspaceID uuid.UUID, cursor uuid.UUID, limit int) ([]domain.Lead, error) {
	all, err := m.ListLeads(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	start := 0
	if cursor != uuid.Nil {
		for i, lead := range all {
			if lead.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return []domain.Lead{}, nil
	}
	end := start + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *Memory) ListFollowUpsDue(_ context.Context, day string) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Lead{}
	for _, id := range m.leadOrder {
		lead := m.leads[id]
		if lead.Archived || lead.FollowUpDate == nil {
			continue
		}
		if lead.FollowUpDate.UTC().Format("2006-01-02") == day {
			out = append(out, cloneLead(lead))
		}
	}
	return out, nil
}

func (m *Memory) SaveLead(_ context.Context, lead domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.leads[lead.ID]; !exists {
		m.leadOrder = append(m.leadOrder, lead.ID)
	}
	m.leads[lead.ID] = cloneLead(lead)
	return nil
}

// ---- pipelines ----

func (m *Memory) GetPipeline(_ context.Context, id uuid.UUID) (domain.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[id]
	if !ok {
		return domain.Pipeline{}, ErrNotFound
	}
	return clonePipeline(p), nil
}

func (m *Memory) ListPipelines(_ context.Context, workspaceID uuid.UUID) ([]domain.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Pipeline{}
	for _, id := range m.pipeOrder {
		p := m.pipelines[id]
		if p.WorkspaceID == workspaceID {
			out = append(out, clonePipeline(p))
		}
	}
	return out, nil
}

func (m *Memory) SavePipeline(_ context.Context, pipeline domain.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pipelines[pipeline.ID]; !exists {
		m.pipeOrder = append(m.pipeOrder, pipeline.ID)
	}
	m.pipelines[pipeline.ID] = clonePipeline(pipeline)
	return nil
}

// ---- automations ----

func (m *Memory) ListAutomations(_ context.Context, workspaceID uuid.UUID) ([]domain.Automation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Automation{}
	for _, a := range m.auts {
		if a.WorkspaceID == workspaceID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) SaveAutomation(_ context.Context, automation domain.Automation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auts[automation.ID] = automation
	return nil
}

func (m *Memory) RecordExecution(_ context.Context, execution domain.AutomationExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, execution)
	return nil
}

func (m *Memory) ListExecutions(_ context.Context, workspaceID uuid.UUID, limit int) ([]domain.AutomationExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.AutomationExecution{}
	for i := len(m.execs) - 1; i >= 0; i-- {
		if m.execs[i].WorkspaceID != workspaceID {
			continue
		}
		out = append(out, m.execs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- tasks ----

func (m *Memory) CreateTask(_ context.Context, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *Memory) CountOpenTasks(_ context.Context, leadID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.tasks {
		if t.IsOpen() && t.LeadID != nil && *t.LeadID == leadID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListOpenTasks(_ context.Context, workspaceID uuid.UUID) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Task{}
	for _, t := range m.tasks {
		if t.WorkspaceID == workspaceID && t.IsOpen() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- directory ----

func (m *Memory) ListContacts(_ context.Context, workspaceID uuid.UUID) ([]domain.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Contact{}
	for _, c := range m.contacts {
		if c.WorkspaceID == workspaceID {
			out = append(out, cloneContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveContact(_ context.Context, contact domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[contact.ID] = cloneContact(contact)
	return nil
}

func (m *Memory) DeleteContact(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contacts, id)
	return nil
}

func (m *Memory) ListOrganizations(_ context.Context, workspaceID uuid.UUID) ([]domain.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Organization{}
	for _, o := range m.orgs {
		if o.WorkspaceID == workspaceID {
			out = append(out, cloneOrganization(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveOrganization(_ context.Context, org domain.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = cloneOrganization(org)
	return nil
}

// ---- timeline ----

func (m *Memory) RecordActivity(_ context.Context, event domain.TimelineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline = append(m.timeline, event)
	return nil
}

func (m *Memory) ListActivity(_ context.Context, leadID uuid.UUID, limit int) ([]domain.TimelineEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.TimelineEvent{}
	for i := len(m.timeline) - 1; i >= 0; i-- {
		if m.timeline[i].LeadID != leadID {
			continue
		}
		out = append(out, m.timeline[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- settings & users ----

func (m *Memory) GetSettings(_ context.Context, workspaceID uuid.UUID) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[workspaceID]
	if !ok {
		// A workspace without stored settings runs on defaults.
		return domain.Settings{WorkspaceID: workspaceID}, nil
	}
	return s, nil
}

// PutSettings seeds workspace settings. Memory-only, used by tests and the
// local bootstrap.
func (m *Memory) PutSettings(settings domain.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settings.WorkspaceID] = settings
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

// PutUser seeds a user record. Memory-only.
func (m *Memory) PutUser(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// ---- metrics ----

func (m *Memory) GetLeadMetrics(_ context.Context, workspaceID uuid.UUID) (LeadMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics := LeadMetrics{ByStatus: map[string]int{}}
	for _, lead := range m.leads {
		if lead.WorkspaceID != workspaceID || lead.Archived {
			continue
		}
		metrics.Total++
		metrics.ByStatus[lead.Status]++
		if lead.IsClosed() {
			metrics.Closed++
		} else {
			metrics.Active++
			metrics.ForecastUnits += float64(lead.EstimatedQuantity) * lead.Probability
		}
		if lead.Priority >= 80 {
			metrics.HighPriority++
		}
	}
	return metrics, nil
}

// ---- copy helpers ----

func cloneLead(lead domain.Lead) domain.Lead {
	out := lead
	out.PersonaTags = append([]string(nil), lead.PersonaTags...)
	out.StageHistory = append([]domain.StageChange(nil), lead.StageHistory...)
	out.AuditTrail = append([]domain.AuditEvent(nil), lead.AuditTrail...)
	return out
}

func clonePipeline(p domain.Pipeline) domain.Pipeline {
	out := p
	out.Stages = append([]domain.Stage(nil), p.Stages...)
	return out
}

func cloneContact(c domain.Contact) domain.Contact {
	out := c
	out.Emails = append([]string(nil), c.Emails...)
	out.Phones = append([]string(nil), c.Phones...)
	out.Sources = append([]string(nil), c.Sources...)
	out.Tags = append([]string(nil), c.Tags...)
	out.LeadIDs = append([]uuid.UUID(nil), c.LeadIDs...)
	return out
}

func cloneOrganization(o domain.Organization) domain.Organization {
	out := o
	out.Tags = append([]string(nil), o.Tags...)
	out.FocusAreas = append([]string(nil), o.FocusAreas...)
	out.LeadIDs = append([]uuid.UUID(nil), o.LeadIDs...)
	return out
}
