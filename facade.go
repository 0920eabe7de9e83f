package crebain

import (
	"fmt"

	crebaincommand "github.com/goliatone/go-crebain/command"
	crebainquery "github.com/goliatone/go-crebain/query"
)

// CommandQueryService is the surface the command/query layer needs. The
// Client satisfies it; callers with custom wiring can substitute their own.
type CommandQueryService interface {
	crebaincommand.MutatingService
	crebainquery.ReadService
}

type Commands struct {
	CheckEntity   *crebaincommand.CheckEntityCommand
	IngestFiles   *crebaincommand.IngestFilesCommand
	CreateWebhook *crebaincommand.CreateWebhookCommand
	DeleteWebhook *crebaincommand.DeleteWebhookCommand
}

type Queries struct {
	ListEntities *crebainquery.ListEntitiesQuery
	ListWebhooks *crebainquery.ListWebhooksQuery
}

// Facade bundles the typed command and query handlers around one service
// so dispatcher-style callers register them in one place.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("crebain: command/query service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		CheckEntity:   crebaincommand.NewCheckEntityCommand(service),
		IngestFiles:   crebaincommand.NewIngestFilesCommand(service),
		CreateWebhook: crebaincommand.NewCreateWebhookCommand(service),
		DeleteWebhook: crebaincommand.NewDeleteWebhookCommand(service),
	}
	facade.queries = Queries{
		ListEntities: crebainquery.NewListEntitiesQuery(service),
		ListWebhooks: crebainquery.NewListWebhooksQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Client)(nil)
