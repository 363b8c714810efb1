// Package followups provides the follow-up lifecycle bounded context module.
// This file wires the outcome taxonomy, the state machine, the store and the
// orchestrator, and mounts the HTTP routes.
package followups

import (
	"fmt"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/handler"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/followups/repository"
	"followup_backend/internal/followups/service"
	"followup_backend/internal/followups/transport"
	apphttp "followup_backend/internal/http"
	"followup_backend/platform/config"
	"followup_backend/platform/logger"
	"followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration the module reads.
type Config interface {
	config.FollowUpConfig
	config.PhoneConfig
}

// Module is the follow-ups bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the module backed by Postgres.
func NewModule(pool *pgxpool.Pool, directory ports.Directory, notifier ports.Notifier, val *validator.Validator, cfg Config, log *logger.Logger) (*Module, error) {
	return newModule(repository.NewPGStore(pool), directory, notifier, val, cfg, log)
}

func newModule(store repository.Store, directory ports.Directory, notifier ports.Notifier, val *validator.Validator, cfg Config, log *logger.Logger) (*Module, error) {
	taxonomy, err := domain.LoadTaxonomy(cfg.GetRulesFile())
	if err != nil {
		return nil, fmt.Errorf("load outcome rules: %w", err)
	}
	if err := transport.RegisterValidators(val); err != nil {
		return nil, fmt.Errorf("register follow-up validators: %w", err)
	}

	machine := domain.NewMachine(domain.NewResolver(taxonomy, cfg.GetFollowUpLocation()))
	svc := service.New(store, machine, directory, notifier, log, service.Options{
		Location:          cfg.GetFollowUpLocation(),
		DependencyTimeout: cfg.GetDependencyTimeout(),
		BulkConcurrency:   cfg.GetBulkConcurrency(),
		BulkRatePerSecond: cfg.GetBulkRatePerSecond(),
		ListFetchLimit:    cfg.GetListFetchLimit(),
		PhoneRegion:       cfg.GetPhoneDefaultRegion(),
	})

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string { return "followups" }

// Service exposes the orchestrator to the scheduler worker and adapters.
func (m *Module) Service() *service.Service { return m.service }

// SetReminderScheduler enables due-date reminders.
func (m *Module) SetReminderScheduler(reminders ports.ReminderScheduler) {
	m.service.SetReminderScheduler(reminders)
}

// SetPurgeArchiver enables snapshots of purged follow-ups.
func (m *Module) SetPurgeArchiver(archiver ports.PurgeArchiver) {
	m.service.SetPurgeArchiver(archiver)
}

// RegisterRoutes mounts the follow-up routes under /api/v1/followups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/followups"))
}

var _ apphttp.Module = (*Module)(nil)
