// Package command exposes the client's mutating operations as go-command
// messages so hosts can route them through their own dispatchers.
package command

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-crebain/core"
	"github.com/goliatone/go-crebain/idempotency"
)

const (
	TypeCheckEntity   = "crebain.command.entity.check"
	TypeIngestFiles   = "crebain.command.files.ingest"
	TypeCreateWebhook = "crebain.command.webhook.create"
	TypeDeleteWebhook = "crebain.command.webhook.delete"
)

type CheckEntityMessage struct {
	Request        core.CheckEntityRequest
	IdempotencyKey idempotency.Key
}

func (CheckEntityMessage) Type() string { return TypeCheckEntity }

func (m CheckEntityMessage) Validate() error {
	if strings.TrimSpace(m.Request.Name) == "" {
		return commandInvalidInputError("command: entity name is required")
	}
	if err := validateIdempotencyKey(m.IdempotencyKey); err != nil {
		return err
	}
	return nil
}

type IngestFilesMessage struct {
	Request        core.IngestFilesRequest
	IdempotencyKey idempotency.Key
}

func (IngestFilesMessage) Type() string { return TypeIngestFiles }

func (m IngestFilesMessage) Validate() error {
	if len(m.Request.URLs) == 0 {
		return commandInvalidInputError("command: at least one file url is required")
	}
	for _, raw := range m.Request.URLs {
		if strings.TrimSpace(raw) == "" {
			return commandInvalidInputError("command: file urls must not be empty")
		}
	}
	if err := validateIdempotencyKey(m.IdempotencyKey); err != nil {
		return err
	}
	return nil
}

type CreateWebhookMessage struct {
	Request        core.CreateWebhookRequest
	IdempotencyKey idempotency.Key
}

func (CreateWebhookMessage) Type() string { return TypeCreateWebhook }

func (m CreateWebhookMessage) Validate() error {
	target := strings.TrimSpace(m.Request.URL)
	if target == "" {
		return commandInvalidInputError("command: webhook url is required")
	}
	parsed, err := url.Parse(target)
	if err != nil || !parsed.IsAbs() {
		return commandInvalidInputError("command: webhook url must be absolute")
	}
	if len(m.Request.Events) == 0 {
		return commandInvalidInputError("command: at least one event type is required")
	}
	if err := validateIdempotencyKey(m.IdempotencyKey); err != nil {
		return err
	}
	return nil
}

type DeleteWebhookMessage struct {
	WebhookID string
}

func (DeleteWebhookMessage) Type() string { return TypeDeleteWebhook }

func (m DeleteWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandInvalidInputError("command: webhook id is required")
	}
	return nil
}

func validateIdempotencyKey(key idempotency.Key) error {
	if key.IsZero() {
		return nil
	}
	if err := key.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid idempotency key")
	}
	return nil
}
