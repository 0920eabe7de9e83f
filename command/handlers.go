package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-crebain/core"
	"github.com/goliatone/go-crebain/idempotency"
)

// MutatingService is the slice of the client the commands delegate to.
type MutatingService interface {
	CheckEntity(ctx context.Context, req core.CheckEntityRequest, key idempotency.Key) (core.CheckEntityResult, error)
	IngestFiles(ctx context.Context, req core.IngestFilesRequest, key idempotency.Key) (core.IngestFilesResult, error)
	CreateWebhook(ctx context.Context, req core.CreateWebhookRequest, key idempotency.Key) (core.WebhookSubscription, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

type CheckEntityCommand struct {
	service MutatingService
}

func NewCheckEntityCommand(service MutatingService) *CheckEntityCommand {
	return &CheckEntityCommand{service: service}
}

func (c *CheckEntityCommand) Execute(ctx context.Context, msg CheckEntityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: entity service is required")
	}
	out, err := c.service.CheckEntity(ctx, msg.Request, msg.IdempotencyKey)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestFilesCommand struct {
	service MutatingService
}

func NewIngestFilesCommand(service MutatingService) *IngestFilesCommand {
	return &IngestFilesCommand{service: service}
}

func (c *IngestFilesCommand) Execute(ctx context.Context, msg IngestFilesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: file ingestion service is required")
	}
	out, err := c.service.IngestFiles(ctx, msg.Request, msg.IdempotencyKey)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateWebhookCommand struct {
	service MutatingService
}

func NewCreateWebhookCommand(service MutatingService) *CreateWebhookCommand {
	return &CreateWebhookCommand{service: service}
}

func (c *CreateWebhookCommand) Execute(ctx context.Context, msg CreateWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.CreateWebhook(ctx, msg.Request, msg.IdempotencyKey)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteWebhookCommand struct {
	service MutatingService
}

func NewDeleteWebhookCommand(service MutatingService) *DeleteWebhookCommand {
	return &DeleteWebhookCommand{service: service}
}

func (c *DeleteWebhookCommand) Execute(ctx context.Context, msg DeleteWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	return c.service.DeleteWebhook(ctx, msg.WebhookID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
