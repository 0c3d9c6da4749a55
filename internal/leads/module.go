// Package leads provides the donation lead lifecycle module.
package leads

import (
	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads/automation"
	"donation_portal_backend/internal/leads/dedupe"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/leads/service"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"
	"donation_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the leads domain module
type Module struct {
	store   repository.Store
	Service *service.Service
}

// NewModule creates a new leads module with all dependencies wired
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, cfg config.EngineConfig, log *logger.Logger) *Module {
	store := repository.NewPostgres(pool)
	return newModule(store, bus, val, cfg, log)
}

// NewModuleWithStore wires the module against an explicit store. The worker
// binaries use this with the pgx store; tests use it with the in-memory one.
func NewModuleWithStore(store repository.Store, bus events.Bus, val *validator.Validator, cfg config.EngineConfig, log *logger.Logger) *Module {
	return newModule(store, bus, val, cfg, log)
}

func newModule(store repository.Store, bus events.Bus, val *validator.Validator, cfg config.EngineConfig, log *logger.Logger) *Module {
	resolver := dedupe.NewResolver(store)
	engine := automation.NewEngine(store, store, store, log)
	svc := service.New(store, resolver, engine, val, bus, cfg, log)

	return &Module{
		store:   store,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes the backing store for other modules that need
// read access to leads (notification fan-out, scheduler scans).
func (m *Module) Repository() repository.Store {
	return m.store
}
